package service

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
)

// ── planDay / missingInstances 纯函数测试 ──

func planFixture() (*model.WorkOrderDay, []model.RoutineAttachment, []model.StandaloneTaskAttachment) {
	day1 := 1
	day := &model.WorkOrderDay{WorkOrderDayID: "day-2", DayNumber: 2}
	t1 := &model.TaskTemplate{TaskTemplateID: "tmpl-t1", Name: "T1"}
	t2 := &model.TaskTemplate{TaskTemplateID: "tmpl-t2", Name: "T2"}
	s1 := &model.TaskTemplate{TaskTemplateID: "tmpl-s1", Name: "S1"}

	routines := []model.RoutineAttachment{
		{
			RoutineAttachmentID: "ra-1",
			WorkOrderDayID:      "day-2",
			RoutineID:           "routine-1",
			Routine: &model.Routine{
				RoutineID: "routine-1",
				Name:      "Safety Check",
				Tasks: []model.RoutineTaskTemplate{
					{RoutineTaskTemplateID: "rtt-1", TaskTemplateID: "tmpl-t1", TaskTemplate: t1},
					{RoutineTaskTemplateID: "rtt-2", TaskTemplateID: "tmpl-t2", DayNumber: &day1, TaskTemplate: t2},
				},
			},
		},
		// 其他工单日的挂载应被忽略
		{RoutineAttachmentID: "ra-other", WorkOrderDayID: "day-1", Routine: &model.Routine{
			Tasks: []model.RoutineTaskTemplate{{RoutineTaskTemplateID: "rtt-x", TaskTemplate: t1}},
		}},
	}
	standalones := []model.StandaloneTaskAttachment{
		{StandaloneAttachmentID: "sa-1", WorkOrderDayID: "day-2", TaskTemplateID: "tmpl-s1", TaskTemplate: s1},
	}
	return day, routines, standalones
}

func TestPlanDay_AppliesDayScopedTasks(t *testing.T) {
	day, routines, standalones := planFixture()

	plan := planDay(day, routines, standalones)
	if len(plan.Tasks) != 2 {
		t.Fatalf("期望 2 项任务，实际 %d", len(plan.Tasks))
	}
	if plan.Tasks[0].Ref.Key() != "r:ra-1:rtt-1" || plan.Tasks[0].Label != "T1" || plan.Tasks[0].RoutineName != "Safety Check" {
		t.Errorf("第一项应为例程任务 T1，实际 %+v", plan.Tasks[0])
	}
	if plan.Tasks[1].Ref.Key() != "s:sa-1" || plan.Tasks[1].TaskTemplateID != "tmpl-s1" {
		t.Errorf("第二项应为独立任务 S1，实际 %+v", plan.Tasks[1])
	}
}

func TestPlanDay_DayOneIncludesScopedTask(t *testing.T) {
	_, routines, _ := planFixture()
	routines[0].WorkOrderDayID = "day-1"
	day := &model.WorkOrderDay{WorkOrderDayID: "day-1", DayNumber: 1}

	plan := planDay(day, routines[:1], nil)
	if len(plan.Tasks) != 2 {
		t.Fatalf("第 1 天应包含 T1、T2，实际 %d 项", len(plan.Tasks))
	}
}

func TestMissingInstances_SkipsExistingAndOrphaned(t *testing.T) {
	day, routines, standalones := planFixture()
	plan := planDay(day, routines, standalones)

	existing := []model.TaskInstance{
		{WorkOrderDayID: "day-2", AttachmentKey: "r:ra-1:rtt-1", State: model.InstanceStateOrphaned},
	}
	missing := missingInstances(plan, existing)
	if len(missing) != 1 || missing[0].Ref.Key() != "s:sa-1" {
		t.Fatalf("期望只缺 S1，实际 %+v", missing)
	}

	existing = append(existing, model.TaskInstance{WorkOrderDayID: "day-2", AttachmentKey: "s:sa-1"})
	if missing := missingInstances(plan, existing); len(missing) != 0 {
		t.Errorf("全部已存在时不应有缺失，实际 %d", len(missing))
	}
}

func TestMissingInstances_DeduplicatesPlan(t *testing.T) {
	day, _, standalones := planFixture()
	plan := planDay(day, nil, append(standalones, standalones...))

	if missing := missingInstances(plan, nil); len(missing) != 1 {
		t.Errorf("重复的计划项只应物化一次，实际 %d", len(missing))
	}
}

// ── Materialize ──

func TestMaterializationService_Materialize_RepairsMissing(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	if _, err := f.assignmentService().Assign(ctx, f.day2().WorkOrderDayID, f.worker.PersonID); err != nil {
		t.Fatalf("Assign 应成功: %v", err)
	}

	// 模拟缺失的实例
	lost := f.instanceByKey(t, f.day2().WorkOrderDayID, f.worker.XID, f.s1Ref())
	if err := f.db.Delete(&model.TaskInstance{}, "task_instance_id = ?", lost.TaskInstanceID).Error; err != nil {
		t.Fatalf("删除实例失败: %v", err)
	}

	result, err := f.materializationService().Materialize(ctx, f.day2().WorkOrderDayID, f.worker.PersonID)
	if err != nil {
		t.Fatalf("Materialize 应成功: %v", err)
	}
	if result.Created != 1 || result.Existing != 1 || result.Conflicts != 0 {
		t.Errorf("期望 created=1 existing=1，实际 %+v", result)
	}

	again, err := f.materializationService().Materialize(ctx, f.day2().WorkOrderDayID, f.worker.PersonID)
	if err != nil {
		t.Fatalf("重复 Materialize 应成功: %v", err)
	}
	if again.Created != 0 || again.Existing != 2 {
		t.Errorf("重复物化不应新建，实际 %+v", again)
	}
}

func TestMaterializationService_Materialize_NotAssigned(t *testing.T) {
	f := newDispatchFixture(t)

	_, err := f.materializationService().Materialize(context.Background(), f.day2().WorkOrderDayID, f.worker.PersonID)
	if !errors.Is(err, ErrNotAssigned) {
		t.Errorf("期望 ErrNotAssigned，实际: %v", err)
	}
	if n := len(f.instances(t, f.day2().WorkOrderDayID, f.worker.XID)); n != 0 {
		t.Errorf("未分配时不应创建实例，实际 %d", n)
	}
}

func TestMaterializationService_Materialize_DayNotFound(t *testing.T) {
	f := newDispatchFixture(t)

	_, err := f.materializationService().Materialize(context.Background(), "00000000-0000-0000-0000-000000000000", f.worker.PersonID)
	if !errors.Is(err, ErrDayNotFound) {
		t.Errorf("期望 ErrDayNotFound，实际: %v", err)
	}
}

// staleSnapshotRepo 模拟读取到过期快照：预检看不到已有实例
type staleSnapshotRepo struct {
	repository.TaskInstanceRepository
}

func (staleSnapshotRepo) ListByDayAndPerson(context.Context, string, string) ([]model.TaskInstance, error) {
	return nil, nil
}

func TestMaterializer_Apply_LostRaceCountsConflicts(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	day := f.day2()
	if _, err := f.assignmentService().Assign(ctx, day.WorkOrderDayID, f.worker.PersonID); err != nil {
		t.Fatalf("Assign 应成功: %v", err)
	}

	var result struct{ created, conflicts int }
	err := f.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		txRepo.TaskInstance = staleSnapshotRepo{txRepo.TaskInstance}
		m := newMaterializer(txRepo, f.clock.now, zap.NewNop())
		plan, err := m.loadPlan(ctx, day)
		if err != nil {
			return err
		}
		res, err := m.apply(ctx, plan, f.worker.Ref())
		result.created, result.conflicts = res.Created, res.Conflicts
		return err
	})
	if err != nil {
		t.Fatalf("并发插入失败不应报错: %v", err)
	}
	if result.created != 0 || result.conflicts != 2 {
		t.Errorf("期望 created=0 conflicts=2，实际 %+v", result)
	}
	if n := len(f.instances(t, day.WorkOrderDayID, f.worker.XID)); n != 2 {
		t.Errorf("不应产生重复实例，期望 2，实际 %d", n)
	}
}

func TestMaterializationService_HandleAttachmentRemoved(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	day := f.day2()
	for _, p := range []*model.Person{f.worker, f.other} {
		if _, err := f.assignmentService().Assign(ctx, day.WorkOrderDayID, p.PersonID); err != nil {
			t.Fatalf("Assign 应成功: %v", err)
		}
	}

	n, err := f.materializationService().HandleAttachmentRemoved(ctx, f.s1Ref())
	if err != nil {
		t.Fatalf("HandleAttachmentRemoved 应成功: %v", err)
	}
	if n != 2 {
		t.Errorf("期望孤立 2 个实例，实际 %d", n)
	}

	inst := f.instanceByKey(t, day.WorkOrderDayID, f.worker.XID, f.s1Ref())
	if !inst.IsOrphaned() || inst.OrphanedAt == nil || *inst.OrphanedAt != f.clock.nowMs() {
		t.Errorf("实例应被孤立并记录时间，实际 %+v", inst)
	}
	if t1 := f.instanceByKey(t, day.WorkOrderDayID, f.worker.XID, f.t1Ref()); t1.IsOrphaned() {
		t.Error("其他挂载的实例不应受影响")
	}

	again, err := f.materializationService().HandleAttachmentRemoved(ctx, f.s1Ref())
	if err != nil || again != 0 {
		t.Errorf("重复孤立应为空操作，实际 n=%d err=%v", again, err)
	}
}
