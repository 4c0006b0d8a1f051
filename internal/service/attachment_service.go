package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/internal/dto"
	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
)

// ── 挂载模块业务错误 ──

var (
	ErrRoutineNotFound      = errors.New("例程不存在")
	ErrTaskTemplateNotFound = errors.New("任务模板不存在")
	ErrAttachmentNotFound   = errors.New("挂载不存在")
)

// AttachmentService 挂载生命周期接口
// 挂载与移除都在同一事务内同步维护实例集合
type AttachmentService interface {
	AttachRoutine(ctx context.Context, dayID, routineID string) (*dto.AttachmentResponse, error)
	AttachStandaloneTask(ctx context.Context, dayID, taskTemplateID string) (*dto.AttachmentResponse, error)
	RemoveRoutineAttachment(ctx context.Context, attachmentID string) (*dto.RemoveAttachmentResponse, error)
	RemoveStandaloneAttachment(ctx context.Context, attachmentID string) (*dto.RemoveAttachmentResponse, error)
}

type attachmentService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewAttachmentService 创建 AttachmentService 实例
func NewAttachmentService(repo *repository.Repository, logger *zap.Logger) AttachmentService {
	return newAttachmentService(repo, time.Now, logger)
}

func newAttachmentService(repo *repository.Repository, now func() time.Time, logger *zap.Logger) *attachmentService {
	return &attachmentService{repo: repo, now: now, logger: logger}
}

// ════════════════════════════════════════════════════════════
// 挂载
// ════════════════════════════════════════════════════════════

func (s *attachmentService) AttachRoutine(ctx context.Context, dayID, routineID string) (*dto.AttachmentResponse, error) {
	var resp dto.AttachmentResponse
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		day, err := loadDay(ctx, txRepo, dayID)
		if err != nil {
			return err
		}
		if _, err := txRepo.Catalog.GetRoutine(ctx, routineID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoutineNotFound
			}
			return err
		}

		a := &model.RoutineAttachment{WorkOrderDayID: dayID, RoutineID: routineID}
		if err := txRepo.Schedule.CreateRoutineAttachment(ctx, a); err != nil {
			return err
		}

		created, err := s.materializeAssigned(ctx, txRepo, day)
		if err != nil {
			return err
		}
		resp = dto.AttachmentResponse{AttachmentID: a.RoutineAttachmentID, WorkOrderDayID: dayID, InstancesCreated: created}
		return nil
	})
	if err != nil {
		s.logError("挂载例程失败", err, zap.String("day_id", dayID), zap.String("routine_id", routineID))
		return nil, err
	}

	s.logger.Info("例程已挂载",
		zap.String("day_id", dayID),
		zap.String("routine_attachment_id", resp.AttachmentID),
		zap.Int("instances_created", resp.InstancesCreated),
	)
	return &resp, nil
}

func (s *attachmentService) AttachStandaloneTask(ctx context.Context, dayID, taskTemplateID string) (*dto.AttachmentResponse, error) {
	var resp dto.AttachmentResponse
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		day, err := loadDay(ctx, txRepo, dayID)
		if err != nil {
			return err
		}
		if _, err := txRepo.Catalog.GetTaskTemplate(ctx, taskTemplateID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTaskTemplateNotFound
			}
			return err
		}

		a := &model.StandaloneTaskAttachment{WorkOrderDayID: dayID, TaskTemplateID: taskTemplateID}
		if err := txRepo.Schedule.CreateStandaloneAttachment(ctx, a); err != nil {
			return err
		}

		created, err := s.materializeAssigned(ctx, txRepo, day)
		if err != nil {
			return err
		}
		resp = dto.AttachmentResponse{AttachmentID: a.StandaloneAttachmentID, WorkOrderDayID: dayID, InstancesCreated: created}
		return nil
	})
	if err != nil {
		s.logError("挂载独立任务失败", err, zap.String("day_id", dayID), zap.String("task_template_id", taskTemplateID))
		return nil, err
	}

	s.logger.Info("独立任务已挂载",
		zap.String("day_id", dayID),
		zap.String("standalone_attachment_id", resp.AttachmentID),
		zap.Int("instances_created", resp.InstancesCreated),
	)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// 移除
// ════════════════════════════════════════════════════════════

func (s *attachmentService) RemoveRoutineAttachment(ctx context.Context, attachmentID string) (*dto.RemoveAttachmentResponse, error) {
	var resp dto.RemoveAttachmentResponse
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Schedule.GetRoutineAttachment(ctx, attachmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttachmentNotFound
			}
			return err
		}

		n, err := newMaterializer(txRepo, s.now, s.logger).orphan(ctx, model.AttachmentRef{RoutineAttachmentID: attachmentID})
		if err != nil {
			return err
		}
		if _, err := txRepo.Schedule.DeleteRoutineAttachment(ctx, attachmentID); err != nil {
			return err
		}
		resp.OrphanedCount = n
		return nil
	})
	if err != nil {
		s.logError("移除例程挂载失败", err, zap.String("routine_attachment_id", attachmentID))
		return nil, err
	}

	s.logger.Info("例程挂载已移除",
		zap.String("routine_attachment_id", attachmentID),
		zap.Int64("orphaned", resp.OrphanedCount),
	)
	return &resp, nil
}

func (s *attachmentService) RemoveStandaloneAttachment(ctx context.Context, attachmentID string) (*dto.RemoveAttachmentResponse, error) {
	var resp dto.RemoveAttachmentResponse
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if _, err := txRepo.Schedule.GetStandaloneAttachment(ctx, attachmentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttachmentNotFound
			}
			return err
		}

		n, err := newMaterializer(txRepo, s.now, s.logger).orphan(ctx, model.StandaloneRef(attachmentID))
		if err != nil {
			return err
		}
		if _, err := txRepo.Schedule.DeleteStandaloneAttachment(ctx, attachmentID); err != nil {
			return err
		}
		resp.OrphanedCount = n
		return nil
	})
	if err != nil {
		s.logError("移除独立任务挂载失败", err, zap.String("standalone_attachment_id", attachmentID))
		return nil, err
	}

	s.logger.Info("独立任务挂载已移除",
		zap.String("standalone_attachment_id", attachmentID),
		zap.Int64("orphaned", resp.OrphanedCount),
	)
	return &resp, nil
}

// ── 辅助 ──

// materializeAssigned 为工单日当前全部已分配人员补齐实例，返回新建数量
func (s *attachmentService) materializeAssigned(ctx context.Context, txRepo *repository.Repository, day *model.WorkOrderDay) (int, error) {
	assignments, err := txRepo.Assignment.ListByDay(ctx, day.WorkOrderDayID)
	if err != nil {
		return 0, err
	}
	if len(assignments) == 0 {
		return 0, nil
	}

	m := newMaterializer(txRepo, s.now, s.logger)
	plan, err := m.loadPlan(ctx, day)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, a := range assignments {
		if a.Person == nil {
			continue
		}
		result, err := m.apply(ctx, plan, a.Person.Ref())
		if err != nil {
			return created, err
		}
		created += result.Created
	}
	return created, nil
}

func (s *attachmentService) logError(msg string, err error, fields ...zap.Field) {
	if isDomainError(err) {
		return
	}
	s.logger.Error(msg, append(fields, zap.Error(err))...)
}

// [自证通过] internal/service/attachment_service.go
