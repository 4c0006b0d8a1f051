package repository_test

import (
	"context"
	"testing"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
	"github.com/MarcoNaik/tectramin-sub001/internal/testutil"
)

func TestAssignment_InsertIsIdempotent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	_, days := testutil.SeedWorkOrder(t, db, "WO-A", 1)
	p := testutil.SeedPerson(t, db, "xid-1", "Bea")
	dayID := days[0].WorkOrderDayID

	created, err := repo.Assignment.Insert(ctx, &model.Assignment{WorkOrderDayID: dayID, PersonID: p.PersonID})
	if err != nil || !created {
		t.Fatalf("首次分配应成功: created=%v err=%v", created, err)
	}
	created, err = repo.Assignment.Insert(ctx, &model.Assignment{WorkOrderDayID: dayID, PersonID: p.PersonID})
	if err != nil || created {
		t.Fatalf("重复分配应返回 created=false: created=%v err=%v", created, err)
	}

	list, err := repo.Assignment.ListByDay(ctx, dayID)
	if err != nil || len(list) != 1 {
		t.Fatalf("期望 1 条分配，实际 %d (err=%v)", len(list), err)
	}
	if list[0].Person == nil || list[0].Person.XID != "xid-1" {
		t.Error("ListByDay 应预加载人员")
	}

	n, err := repo.Assignment.Delete(ctx, dayID, p.PersonID)
	if err != nil || n != 1 {
		t.Fatalf("删除分配失败: n=%d err=%v", n, err)
	}
	n, _ = repo.Assignment.Delete(ctx, dayID, p.PersonID)
	if n != 0 {
		t.Errorf("重复删除应影响 0 行")
	}
}

func TestAssignment_ListByPersonPreloadsDay(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	_, days := testutil.SeedWorkOrder(t, db, "WO-B", 2)
	p := testutil.SeedPerson(t, db, "xid-2", "Carla")
	for _, d := range days {
		testutil.SeedAssignment(t, db, d.WorkOrderDayID, p.PersonID)
	}

	list, err := repo.Assignment.ListByPerson(ctx, p.PersonID)
	if err != nil || len(list) != 2 {
		t.Fatalf("期望 2 条分配，实际 %d (err=%v)", len(list), err)
	}
	for _, a := range list {
		if a.Day == nil || a.Day.WorkOrder == nil || a.Day.WorkOrder.Faena == nil {
			t.Fatalf("应预加载 Day.WorkOrder.Faena: %+v", a)
		}
	}
}

func TestSchedule_ListRoutineAttachmentsOrdersTasks(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := repository.NewRepository(db)
	ctx := context.Background()

	_, days := testutil.SeedWorkOrder(t, db, "WO-C", 1)
	t1 := testutil.SeedTaskTemplate(t, db, "T1", "f1", "f2")
	t2 := testutil.SeedTaskTemplate(t, db, "T2")
	r := testutil.SeedRoutine(t, db, "Safety Check",
		testutil.RoutineTask{Template: t1},
		testutil.RoutineTask{Template: t2, DayNumber: testutil.IntPtr(1)},
	)
	testutil.SeedRoutineAttachment(t, db, days[0].WorkOrderDayID, r.RoutineID)

	list, err := repo.Schedule.ListRoutineAttachments(ctx, []string{days[0].WorkOrderDayID})
	if err != nil || len(list) != 1 {
		t.Fatalf("期望 1 个挂载，实际 %d (err=%v)", len(list), err)
	}
	tasks := list[0].Routine.Tasks
	if len(tasks) != 2 || tasks[0].TaskTemplate.Name != "T1" || tasks[1].TaskTemplate.Name != "T2" {
		t.Fatalf("例程任务应按 position 排序并预加载模板")
	}
	if fields := tasks[0].TaskTemplate.Fields; len(fields) != 2 || fields[0].Label != "f1" {
		t.Errorf("应预加载并排序字段模板")
	}
}

func TestFieldResponse_CountByInstances(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()

	inst := f.newInstance(1000)
	if _, err := f.repo.TaskInstance.Insert(ctx, inst); err != nil {
		t.Fatalf("插入实例失败: %v", err)
	}
	field := f.tmpl.Fields[0]
	for i, cid := range []string{"fr-1", "fr-2"} {
		resp := &model.FieldResponse{
			ClientID:        cid,
			TaskInstanceID:  inst.TaskInstanceID,
			FieldTemplateID: field.FieldTemplateID,
			PersonXID:       f.person.XID,
			Value:           []byte(`"ok"`),
			CreatedAt:       int64(1000 + i),
			UpdatedAt:       int64(1000 + i),
		}
		if created, err := f.repo.FieldResponse.Insert(ctx, resp); err != nil || !created {
			t.Fatalf("插入响应失败: created=%v err=%v", created, err)
		}
	}

	counts, err := f.repo.FieldResponse.CountByInstances(ctx, []string{inst.TaskInstanceID, "other"})
	if err != nil {
		t.Fatalf("CountByInstances 失败: %v", err)
	}
	if counts[inst.TaskInstanceID] != 2 || counts["other"] != 0 {
		t.Errorf("统计不正确: %v", counts)
	}

	dup := &model.FieldResponse{
		ClientID:        "fr-1",
		TaskInstanceID:  inst.TaskInstanceID,
		FieldTemplateID: field.FieldTemplateID,
		PersonXID:       f.person.XID,
		CreatedAt:       5000,
		UpdatedAt:       5000,
	}
	if created, err := f.repo.FieldResponse.Insert(ctx, dup); err != nil || created {
		t.Errorf("重复 client_id 应返回 created=false: created=%v err=%v", created, err)
	}
}
