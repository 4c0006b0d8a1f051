package repository_test

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
	"github.com/MarcoNaik/tectramin-sub001/internal/testutil"
	pkgerrors "github.com/MarcoNaik/tectramin-sub001/pkg/errors"
)

type instanceFixture struct {
	db     *gorm.DB
	repo   *repository.Repository
	day    model.WorkOrderDay
	tmpl   *model.TaskTemplate
	sa     *model.StandaloneTaskAttachment
	person *model.Person
}

func newInstanceFixture(t *testing.T) *instanceFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	_, days := testutil.SeedWorkOrder(t, db, "WO-1", 1)
	tmpl := testutil.SeedTaskTemplate(t, db, "Inspección", "Observaciones")
	return &instanceFixture{
		db:     db,
		repo:   repository.NewRepository(db),
		day:    days[0],
		tmpl:   tmpl,
		sa:     testutil.SeedStandaloneAttachment(t, db, days[0].WorkOrderDayID, tmpl.TaskTemplateID),
		person: testutil.SeedPerson(t, db, "xid-ana", "Ana"),
	}
}

func (f *instanceFixture) newInstance(updatedAt int64) *model.TaskInstance {
	inst := &model.TaskInstance{
		WorkOrderDayID: f.day.WorkOrderDayID,
		PersonXID:      f.person.XID,
		TaskTemplateID: f.tmpl.TaskTemplateID,
		Label:          f.tmpl.Name,
		Status:         model.InstanceStatusDraft,
		State:          model.InstanceStateActive,
		CreatedAt:      updatedAt,
		UpdatedAt:      updatedAt,
	}
	inst.SetRef(model.StandaloneRef(f.sa.StandaloneAttachmentID))
	return inst
}

func TestTaskInstance_InsertDoNothingOnIdentityConflict(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()

	first := f.newInstance(1000)
	created, err := f.repo.TaskInstance.Insert(ctx, first)
	if err != nil || !created {
		t.Fatalf("首次插入应成功: created=%v err=%v", created, err)
	}
	if first.ClientID == "" {
		t.Error("服务端创建的实例应生成 client_id")
	}

	second := f.newInstance(2000)
	created, err = f.repo.TaskInstance.Insert(ctx, second)
	if err != nil {
		t.Fatalf("重复身份键插入不应报错: %v", err)
	}
	if created {
		t.Fatal("重复身份键插入应返回 created=false")
	}

	if n := testutil.CountInstances(t, f.db, f.day.WorkOrderDayID, f.person.XID); n != 1 {
		t.Errorf("期望 1 个实例，实际 %d", n)
	}

	got, err := f.repo.TaskInstance.GetByIdentity(ctx, f.day.WorkOrderDayID, f.person.XID, first.AttachmentKey)
	if err != nil {
		t.Fatalf("GetByIdentity 失败: %v", err)
	}
	if got.TaskInstanceID != first.TaskInstanceID {
		t.Errorf("期望保留首个写入者 %s，实际 %s", first.TaskInstanceID, got.TaskInstanceID)
	}
}

func TestTaskInstance_UpdateMutableDetectsConcurrentWrite(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()

	inst := f.newInstance(1000)
	if _, err := f.repo.TaskInstance.Insert(ctx, inst); err != nil {
		t.Fatalf("插入失败: %v", err)
	}

	copy1, _ := f.repo.TaskInstance.GetByID(ctx, inst.TaskInstanceID)
	copy2, _ := f.repo.TaskInstance.GetByID(ctx, inst.TaskInstanceID)

	copy1.Status = model.InstanceStatusCompleted
	copy1.UpdatedAt = 2000
	if err := f.repo.TaskInstance.UpdateMutable(ctx, copy1, 1000); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}

	copy2.Label = "otro"
	copy2.UpdatedAt = 3000
	err := f.repo.TaskInstance.UpdateMutable(ctx, copy2, 1000)
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Fatalf("期望 ErrOptimisticLock，实际: %v", err)
	}

	final, _ := f.repo.TaskInstance.GetByID(ctx, inst.TaskInstanceID)
	if final.Status != model.InstanceStatusCompleted || final.UpdatedAt != 2000 {
		t.Errorf("期望保留第一次更新，实际 status=%s updated_at=%d", final.Status, final.UpdatedAt)
	}
}

func TestTaskInstance_OrphanIsOneWayAndSkipsUpdates(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()

	inst := f.newInstance(1000)
	if _, err := f.repo.TaskInstance.Insert(ctx, inst); err != nil {
		t.Fatalf("插入失败: %v", err)
	}

	ref := model.StandaloneRef(f.sa.StandaloneAttachmentID)
	n, err := f.repo.TaskInstance.OrphanByAttachment(ctx, ref, 5000)
	if err != nil || n != 1 {
		t.Fatalf("期望孤立 1 个实例: n=%d err=%v", n, err)
	}

	// 再次孤立不改变 orphaned_at
	n, err = f.repo.TaskInstance.OrphanByAttachment(ctx, ref, 9000)
	if err != nil || n != 0 {
		t.Fatalf("重复孤立应影响 0 行: n=%d err=%v", n, err)
	}

	got, _ := f.repo.TaskInstance.GetByID(ctx, inst.TaskInstanceID)
	if !got.IsOrphaned() || got.OrphanedAt == nil || *got.OrphanedAt != 5000 || got.UpdatedAt != 5000 {
		t.Fatalf("孤立状态不正确: %+v", got)
	}

	got.Status = model.InstanceStatusCompleted
	got.UpdatedAt = 6000
	if err := f.repo.TaskInstance.UpdateMutable(ctx, got, 5000); !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("孤立实例不可更新，期望 ErrOptimisticLock，实际: %v", err)
	}
}

func TestTaskInstance_ListSinceIsStrictAndOrdered(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()

	tmpl2 := testutil.SeedTaskTemplate(t, f.db, "Cierre")
	sa2 := testutil.SeedStandaloneAttachment(t, f.db, f.day.WorkOrderDayID, tmpl2.TaskTemplateID)

	a := f.newInstance(3000)
	b := f.newInstance(2000)
	b.TaskTemplateID = tmpl2.TaskTemplateID
	b.SetRef(model.StandaloneRef(sa2.StandaloneAttachmentID))
	for _, inst := range []*model.TaskInstance{a, b} {
		if _, err := f.repo.TaskInstance.Insert(ctx, inst); err != nil {
			t.Fatalf("插入失败: %v", err)
		}
	}

	list, err := f.repo.TaskInstance.ListSince(ctx, f.person.XID, 2000)
	if err != nil {
		t.Fatalf("ListSince 失败: %v", err)
	}
	if len(list) != 1 || list[0].TaskInstanceID != a.TaskInstanceID {
		t.Fatalf("updated_at > 2000 应只返回 a，实际 %d 条", len(list))
	}

	list, _ = f.repo.TaskInstance.ListSince(ctx, f.person.XID, 0)
	if len(list) != 2 || list[0].UpdatedAt > list[1].UpdatedAt {
		t.Errorf("应按 updated_at 升序返回 2 条")
	}

	list, _ = f.repo.TaskInstance.ListSince(ctx, "xid-someone-else", 0)
	if len(list) != 0 {
		t.Errorf("其他人员不应看到实例")
	}
}

func TestTaskInstance_AliasResolves(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()

	inst := f.newInstance(1000)
	if _, err := f.repo.TaskInstance.Insert(ctx, inst); err != nil {
		t.Fatalf("插入失败: %v", err)
	}

	alias := &model.TaskInstanceAlias{ClientID: "offline-1", TaskInstanceID: inst.TaskInstanceID, CreatedAt: 1000}
	if created, err := f.repo.TaskInstance.CreateAlias(ctx, alias); err != nil || !created {
		t.Fatalf("CreateAlias 失败: created=%v err=%v", created, err)
	}
	if created, err := f.repo.TaskInstance.CreateAlias(ctx, alias); err != nil || created {
		t.Fatalf("重复别名应返回 created=false: created=%v err=%v", created, err)
	}

	got, err := f.repo.TaskInstance.GetByAlias(ctx, "offline-1")
	if err != nil || got.TaskInstanceID != inst.TaskInstanceID {
		t.Fatalf("GetByAlias 失败: %v", err)
	}

	if _, err := f.repo.TaskInstance.GetByAlias(ctx, "missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("未知别名期望 ErrRecordNotFound，实际: %v", err)
	}
}

func TestTransaction_SavepointRollsBackInnerOnly(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if _, err := txRepo.TaskInstance.Insert(ctx, f.newInstance(1000)); err != nil {
			return err
		}
		innerErr := txRepo.Transaction(ctx, func(inner *repository.Repository) error {
			tmpl2 := &model.TaskTemplate{Name: "Temporal"}
			if err := inner.Catalog.CreateTaskTemplate(ctx, tmpl2); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(innerErr, boom) {
			t.Errorf("内层事务应返回 boom，实际: %v", innerErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("外层事务失败: %v", err)
	}

	if n := testutil.CountInstances(t, f.db, f.day.WorkOrderDayID, f.person.XID); n != 1 {
		t.Errorf("外层写入应提交，实际实例数 %d", n)
	}
	var templates int64
	f.db.Model(&model.TaskTemplate{}).Where("name = ?", "Temporal").Count(&templates)
	if templates != 0 {
		t.Error("内层写入应回滚")
	}
}

func TestTransaction_RollbackOnError(t *testing.T) {
	f := newInstanceFixture(t)
	ctx := context.Background()

	_ = f.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if _, err := txRepo.TaskInstance.Insert(ctx, f.newInstance(1000)); err != nil {
			return err
		}
		return errors.New("abort")
	})

	if n := testutil.CountInstances(t, f.db, f.day.WorkOrderDayID, f.person.XID); n != 0 {
		t.Errorf("回滚后不应有实例，实际 %d", n)
	}
}
