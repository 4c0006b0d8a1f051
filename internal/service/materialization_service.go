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
	"github.com/MarcoNaik/tectramin-sub001/pkg/metrics"
)

// ── 物化模块业务错误 ──

var (
	ErrDayNotFound             = errors.New("工单日不存在")
	ErrPersonNotFound          = errors.New("人员不存在")
	ErrNotAssigned             = errors.New("该人员未分配到此工单日")
	ErrMaterializationConflict = errors.New("任务实例已由并发写入者创建")
)

// MaterializationService 物化业务接口
//
// 设计说明：
//   - 决策逻辑集中在纯函数 planDay / missingInstances，不依赖存储
//   - 实例身份 (day, xid, attachment_key) 由唯一索引保证；读取已有实例只是预检
//   - 插入使用 ON CONFLICT DO NOTHING，影响行数为 0 即并发写入者已胜出，计为冲突并丢弃
//   - 从不删除实例；挂载移除时实例转为 orphaned
type MaterializationService interface {
	// Materialize 为已分配人员补齐工单日应有的实例（修复入口）
	Materialize(ctx context.Context, dayID, personID string) (*dto.MaterializeResponse, error)
	// HandleAttachmentRemoved 孤立挂载下所有 active 实例，返回数量
	HandleAttachmentRemoved(ctx context.Context, ref model.AttachmentRef) (int64, error)
}

type materializationService struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewMaterializationService 创建 MaterializationService 实例
func NewMaterializationService(repo *repository.Repository, logger *zap.Logger) MaterializationService {
	return newMaterializationService(repo, time.Now, logger)
}

func newMaterializationService(repo *repository.Repository, now func() time.Time, logger *zap.Logger) *materializationService {
	return &materializationService{repo: repo, now: now, logger: logger}
}

func (s *materializationService) Materialize(ctx context.Context, dayID, personID string) (*dto.MaterializeResponse, error) {
	var result dto.MaterializeResponse
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		day, err := loadDay(ctx, txRepo, dayID)
		if err != nil {
			return err
		}
		person, err := loadPerson(ctx, txRepo, personID)
		if err != nil {
			return err
		}
		if _, err := txRepo.Assignment.GetByDayAndPerson(ctx, dayID, personID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotAssigned
			}
			return err
		}

		m := newMaterializer(txRepo, s.now, s.logger)
		plan, err := m.loadPlan(ctx, day)
		if err != nil {
			return err
		}
		result, err = m.apply(ctx, plan, person.Ref())
		return err
	})
	if err != nil {
		if !isDomainError(err) {
			s.logger.Error("物化失败", zap.String("day_id", dayID), zap.String("person_id", personID), zap.Error(err))
		}
		return nil, err
	}
	return &result, nil
}

func (s *materializationService) HandleAttachmentRemoved(ctx context.Context, ref model.AttachmentRef) (int64, error) {
	var n int64
	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		var err error
		n, err = newMaterializer(txRepo, s.now, s.logger).orphan(ctx, ref)
		return err
	})
	if err != nil {
		s.logger.Error("孤立实例失败", zap.String("attachment_key", ref.Key()), zap.Error(err))
		return 0, err
	}
	return n, nil
}

// ═══════════════════════════════════════════════════════════
// 纯决策逻辑
// ═══════════════════════════════════════════════════════════

// plannedTask 工单日上应存在的一项任务
type plannedTask struct {
	Ref            model.AttachmentRef
	TaskTemplateID string
	Label          string // 物化时的模板名称快照
	RoutineName    string
	Template       *model.TaskTemplate
}

// dayPlan 工单日的任务计划，对该日所有人员相同
type dayPlan struct {
	Day   *model.WorkOrderDay
	Tasks []plannedTask
}

// planDay 计算工单日适用的例程任务与独立任务
// 例程任务仅在 DayNumber 为空或等于工单日序号时适用；非本日的挂载被忽略
func planDay(day *model.WorkOrderDay, routines []model.RoutineAttachment, standalones []model.StandaloneTaskAttachment) dayPlan {
	plan := dayPlan{Day: day}

	for i := range routines {
		ra := &routines[i]
		if ra.WorkOrderDayID != day.WorkOrderDayID || ra.Routine == nil {
			continue
		}
		for j := range ra.Routine.Tasks {
			task := &ra.Routine.Tasks[j]
			if !task.AppliesTo(day.DayNumber) {
				continue
			}
			plan.Tasks = append(plan.Tasks, plannedTask{
				Ref:            model.RoutineTaskRef(ra.RoutineAttachmentID, task.RoutineTaskTemplateID),
				TaskTemplateID: task.TaskTemplateID,
				Label:          templateName(task.TaskTemplate),
				RoutineName:    ra.Routine.Name,
				Template:       task.TaskTemplate,
			})
		}
	}

	for i := range standalones {
		sa := &standalones[i]
		if sa.WorkOrderDayID != day.WorkOrderDayID {
			continue
		}
		plan.Tasks = append(plan.Tasks, plannedTask{
			Ref:            model.StandaloneRef(sa.StandaloneAttachmentID),
			TaskTemplateID: sa.TaskTemplateID,
			Label:          templateName(sa.TaskTemplate),
			Template:       sa.TaskTemplate,
		})
	}

	return plan
}

// missingInstances 返回计划中尚无实例的任务
// 已孤立的实例同样占用身份键
func missingInstances(plan dayPlan, existing []model.TaskInstance) []plannedTask {
	have := make(map[string]struct{}, len(existing))
	for i := range existing {
		if existing[i].WorkOrderDayID == plan.Day.WorkOrderDayID {
			have[existing[i].AttachmentKey] = struct{}{}
		}
	}

	var missing []plannedTask
	for _, task := range plan.Tasks {
		key := task.Ref.Key()
		if _, ok := have[key]; ok {
			continue
		}
		have[key] = struct{}{}
		missing = append(missing, task)
	}
	return missing
}

func templateName(t *model.TaskTemplate) string {
	if t == nil {
		return ""
	}
	return t.Name
}

// ═══════════════════════════════════════════════════════════
// materializer 绑定事务的执行器
// ═══════════════════════════════════════════════════════════

type materializer struct {
	repo   *repository.Repository
	now    func() time.Time
	logger *zap.Logger
}

// newMaterializer repo 必须是事务绑定的聚合
func newMaterializer(repo *repository.Repository, now func() time.Time, logger *zap.Logger) *materializer {
	return &materializer{repo: repo, now: now, logger: logger}
}

func (m *materializer) loadPlan(ctx context.Context, day *model.WorkOrderDay) (dayPlan, error) {
	dayIDs := []string{day.WorkOrderDayID}

	routines, err := m.repo.Schedule.ListRoutineAttachments(ctx, dayIDs)
	if err != nil {
		return dayPlan{}, err
	}
	standalones, err := m.repo.Schedule.ListStandaloneAttachments(ctx, dayIDs)
	if err != nil {
		return dayPlan{}, err
	}
	return planDay(day, routines, standalones), nil
}

func (m *materializer) apply(ctx context.Context, plan dayPlan, person model.PersonRef) (dto.MaterializeResponse, error) {
	var result dto.MaterializeResponse

	existing, err := m.repo.TaskInstance.ListByDayAndPerson(ctx, plan.Day.WorkOrderDayID, person.XID)
	if err != nil {
		return result, err
	}
	missing := missingInstances(plan, existing)
	result.Existing = len(plan.Tasks) - len(missing)

	nowMs := m.now().UnixMilli()
	for _, task := range missing {
		inst := &model.TaskInstance{
			WorkOrderDayID: plan.Day.WorkOrderDayID,
			PersonXID:      person.XID,
			TaskTemplateID: task.TaskTemplateID,
			Label:          task.Label,
			Status:         model.InstanceStatusDraft,
			State:          model.InstanceStateActive,
			CreatedAt:      nowMs,
			UpdatedAt:      nowMs,
		}
		inst.SetRef(task.Ref)

		created, err := m.repo.TaskInstance.Insert(ctx, inst)
		if err != nil {
			return result, err
		}
		if !created {
			result.Conflicts++
			m.logger.Debug("物化冲突，丢弃本次插入",
				zap.String("day_id", plan.Day.WorkOrderDayID),
				zap.String("person_xid", person.XID),
				zap.String("attachment_key", inst.AttachmentKey),
				zap.Error(ErrMaterializationConflict),
			)
			continue
		}
		result.Created++
	}

	metrics.RecordMaterialization("created", result.Created)
	metrics.RecordMaterialization("existing", result.Existing)
	metrics.RecordMaterialization("conflict", result.Conflicts)
	return result, nil
}

func (m *materializer) orphan(ctx context.Context, ref model.AttachmentRef) (int64, error) {
	n, err := m.repo.TaskInstance.OrphanByAttachment(ctx, ref, m.now().UnixMilli())
	if err != nil {
		return 0, err
	}
	metrics.RecordMaterialization("orphaned", int(n))
	return n, nil
}

// ── 公共加载 ──

func loadDay(ctx context.Context, repo *repository.Repository, dayID string) (*model.WorkOrderDay, error) {
	day, err := repo.Schedule.GetDay(ctx, dayID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDayNotFound
		}
		return nil, err
	}
	return day, nil
}

func loadPerson(ctx context.Context, repo *repository.Repository, personID string) (*model.Person, error) {
	person, err := repo.Person.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonNotFound
		}
		return nil, err
	}
	return person, nil
}

// [自证通过] internal/service/materialization_service.go
