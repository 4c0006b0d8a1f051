package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
	"github.com/MarcoNaik/tectramin-sub001/internal/testutil"
)

// ── 测试辅助 ──

// fakeClock 可控时钟，毫秒精度
type fakeClock struct {
	mu sync.Mutex
	ms int64
}

func newFakeClock() *fakeClock {
	return &fakeClock{ms: time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC).UnixMilli()}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.UnixMilli(c.ms)
}

func (c *fakeClock) nowMs() int64 {
	return c.now().UnixMilli()
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ms += d.Milliseconds()
}

// dispatchFixture 两天工单：
//   - 例程 "Safety Check"：T1 不限天，T2 仅第 1 天；挂载到第 2 天
//   - 独立任务 S1 挂载到第 2 天
type dispatchFixture struct {
	db    *gorm.DB
	repo  *repository.Repository
	clock *fakeClock

	days    []model.WorkOrderDay
	worker  *model.Person
	other   *model.Person
	t1      *model.TaskTemplate
	t2      *model.TaskTemplate
	s1      *model.TaskTemplate
	routine *model.Routine
	ra      *model.RoutineAttachment
	sa      *model.StandaloneTaskAttachment
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)

	f := &dispatchFixture{
		db:    db,
		repo:  repository.NewRepository(db),
		clock: newFakeClock(),
	}
	_, f.days = testutil.SeedWorkOrder(t, db, "Mantención chancador", 2)
	f.worker = testutil.SeedPerson(t, db, "xid-worker", "Juan Pérez")
	f.other = testutil.SeedPerson(t, db, "xid-other", "Ana Rojas")

	f.t1 = testutil.SeedTaskTemplate(t, db, "T1", "Observación")
	f.t2 = testutil.SeedTaskTemplate(t, db, "T2", "Firma")
	f.s1 = testutil.SeedTaskTemplate(t, db, "S1", "Foto", "Comentario")
	f.routine = testutil.SeedRoutine(t, db, "Safety Check",
		testutil.RoutineTask{Template: f.t1},
		testutil.RoutineTask{Template: f.t2, DayNumber: testutil.IntPtr(1)},
	)
	f.ra = testutil.SeedRoutineAttachment(t, db, f.day2().WorkOrderDayID, f.routine.RoutineID)
	f.sa = testutil.SeedStandaloneAttachment(t, db, f.day2().WorkOrderDayID, f.s1.TaskTemplateID)
	return f
}

func (f *dispatchFixture) day1() *model.WorkOrderDay { return &f.days[0] }
func (f *dispatchFixture) day2() *model.WorkOrderDay { return &f.days[1] }

func (f *dispatchFixture) assignmentService() *assignmentService {
	return newAssignmentService(f.repo, nil, f.clock.now, zap.NewNop())
}

func (f *dispatchFixture) materializationService() *materializationService {
	return newMaterializationService(f.repo, f.clock.now, zap.NewNop())
}

func (f *dispatchFixture) attachmentService() *attachmentService {
	return newAttachmentService(f.repo, f.clock.now, zap.NewNop())
}

func (f *dispatchFixture) syncService() *syncService {
	return newSyncService(f.repo, 50, f.clock.now, zap.NewNop())
}

// instances 返回 (day, xid) 下全部实例
func (f *dispatchFixture) instances(t *testing.T, dayID, xid string) []model.TaskInstance {
	t.Helper()
	list, err := f.repo.TaskInstance.ListByDayAndPerson(context.Background(), dayID, xid)
	if err != nil {
		t.Fatalf("查询实例失败: %v", err)
	}
	return list
}

// instanceByKey 按身份键取实例
func (f *dispatchFixture) instanceByKey(t *testing.T, dayID, xid string, ref model.AttachmentRef) *model.TaskInstance {
	t.Helper()
	inst, err := f.repo.TaskInstance.GetByIdentity(context.Background(), dayID, xid, ref.Key())
	if err != nil {
		t.Fatalf("查询实例 %s 失败: %v", ref.Key(), err)
	}
	return inst
}

func (f *dispatchFixture) t1Ref() model.AttachmentRef {
	return model.RoutineTaskRef(f.ra.RoutineAttachmentID, f.routine.Tasks[0].RoutineTaskTemplateID)
}

func (f *dispatchFixture) t2Ref() model.AttachmentRef {
	return model.RoutineTaskRef(f.ra.RoutineAttachmentID, f.routine.Tasks[1].RoutineTaskTemplateID)
}

func (f *dispatchFixture) s1Ref() model.AttachmentRef {
	return model.StandaloneRef(f.sa.StandaloneAttachmentID)
}

func int64Ptr(n int64) *int64 { return &n }
