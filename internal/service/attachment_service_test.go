package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/testutil"
)

func TestAttachmentService_AttachRoutine_MaterializesAssigned(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	dayID := f.day1().WorkOrderDayID
	testutil.SeedAssignment(t, f.db, dayID, f.worker.PersonID)
	testutil.SeedAssignment(t, f.db, dayID, f.other.PersonID)

	result, err := f.attachmentService().AttachRoutine(ctx, dayID, f.routine.RoutineID)
	if err != nil {
		t.Fatalf("AttachRoutine 应成功: %v", err)
	}
	// 第 1 天 T1、T2 均适用
	if result.InstancesCreated != 4 || result.AttachmentID == "" {
		t.Errorf("期望为 2 人各物化 2 个实例，实际 %+v", result)
	}
	for _, p := range []*model.Person{f.worker, f.other} {
		if n := testutil.CountInstances(t, f.db, dayID, p.XID); n != 2 {
			t.Errorf("%s 期望 2 个实例，实际 %d", p.XID, n)
		}
	}
}

func TestAttachmentService_AttachRoutine_NotFound(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	_, err := f.attachmentService().AttachRoutine(ctx, f.day1().WorkOrderDayID, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrRoutineNotFound) {
		t.Errorf("期望 ErrRoutineNotFound，实际: %v", err)
	}
	_, err = f.attachmentService().AttachStandaloneTask(ctx, f.day1().WorkOrderDayID, "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrTaskTemplateNotFound) {
		t.Errorf("期望 ErrTaskTemplateNotFound，实际: %v", err)
	}
}

func TestAttachmentService_RemoveAndReattach_PreservesHistory(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	dayID := f.day2().WorkOrderDayID
	if _, err := f.assignmentService().Assign(ctx, dayID, f.worker.PersonID); err != nil {
		t.Fatalf("Assign 应成功: %v", err)
	}

	// S1 实例上已有一条响应
	orig := f.instanceByKey(t, dayID, f.worker.XID, f.s1Ref())
	resp := &model.FieldResponse{
		ClientID:        "fr-photo",
		TaskInstanceID:  orig.TaskInstanceID,
		FieldTemplateID: f.s1.Fields[0].FieldTemplateID,
		PersonXID:       f.worker.XID,
		Value:           datatypes.JSON(`"foto-1.jpg"`),
		CreatedAt:       f.clock.nowMs(),
		UpdatedAt:       f.clock.nowMs(),
	}
	if _, err := f.repo.FieldResponse.Insert(ctx, resp); err != nil {
		t.Fatalf("写入响应失败: %v", err)
	}

	f.clock.advance(time.Minute)
	removed, err := f.attachmentService().RemoveStandaloneAttachment(ctx, f.sa.StandaloneAttachmentID)
	if err != nil {
		t.Fatalf("RemoveStandaloneAttachment 应成功: %v", err)
	}
	if removed.OrphanedCount != 1 {
		t.Errorf("期望孤立 1 个实例，实际 %d", removed.OrphanedCount)
	}

	orphaned, err := f.repo.TaskInstance.GetByID(ctx, orig.TaskInstanceID)
	if err != nil {
		t.Fatalf("孤立实例应保留: %v", err)
	}
	if !orphaned.IsOrphaned() || orphaned.UpdatedAt <= orig.UpdatedAt {
		t.Errorf("实例应为 orphaned 且游标前移，实际 %+v", orphaned)
	}
	if _, err := f.repo.FieldResponse.GetByClientID(ctx, "fr-photo"); err != nil {
		t.Errorf("孤立不应删除响应: %v", err)
	}
	if _, err := f.repo.Schedule.GetStandaloneAttachment(ctx, f.sa.StandaloneAttachmentID); err == nil {
		t.Error("挂载应已删除")
	}

	// 重新挂载得到新的挂载标识与新实例
	attached, err := f.attachmentService().AttachStandaloneTask(ctx, dayID, f.s1.TaskTemplateID)
	if err != nil {
		t.Fatalf("AttachStandaloneTask 应成功: %v", err)
	}
	if attached.InstancesCreated != 1 || attached.AttachmentID == f.sa.StandaloneAttachmentID {
		t.Errorf("期望新挂载并新建 1 个实例，实际 %+v", attached)
	}
	fresh := f.instanceByKey(t, dayID, f.worker.XID, model.StandaloneRef(attached.AttachmentID))
	if fresh.TaskInstanceID == orig.TaskInstanceID || fresh.IsOrphaned() {
		t.Errorf("新实例不应复用孤立实例: %+v", fresh)
	}
	if n := testutil.CountInstances(t, f.db, dayID, f.worker.XID); n != 3 {
		t.Errorf("期望 T1 + 孤立 S1 + 新 S1 共 3 个实例，实际 %d", n)
	}
}

func TestAttachmentService_RemoveRoutineAttachment(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	dayID := f.day2().WorkOrderDayID
	if _, err := f.assignmentService().Assign(ctx, dayID, f.worker.PersonID); err != nil {
		t.Fatalf("Assign 应成功: %v", err)
	}

	removed, err := f.attachmentService().RemoveRoutineAttachment(ctx, f.ra.RoutineAttachmentID)
	if err != nil {
		t.Fatalf("RemoveRoutineAttachment 应成功: %v", err)
	}
	if removed.OrphanedCount != 1 {
		t.Errorf("第 2 天只有 T1 来自例程，期望孤立 1，实际 %d", removed.OrphanedCount)
	}
	if s1 := f.instanceByKey(t, dayID, f.worker.XID, f.s1Ref()); s1.IsOrphaned() {
		t.Error("独立任务实例不应受影响")
	}

	if _, err := f.attachmentService().RemoveRoutineAttachment(ctx, f.ra.RoutineAttachmentID); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("重复移除期望 ErrAttachmentNotFound，实际: %v", err)
	}
}
