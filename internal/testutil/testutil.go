// Package testutil 提供基于内存 SQLite 的测试数据库与种子数据
// 仅供 _test.go 引用
package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
)

// AllModels 参与 AutoMigrate 的模型，顺序与迁移脚本一致
func AllModels() []interface{} {
	return []interface{}{
		&model.Person{},
		&model.TaskTemplate{},
		&model.FieldTemplate{},
		&model.Routine{},
		&model.RoutineTaskTemplate{},
		&model.Faena{},
		&model.WorkOrder{},
		&model.WorkOrderDay{},
		&model.RoutineAttachment{},
		&model.StandaloneTaskAttachment{},
		&model.Assignment{},
		&model.TaskInstance{},
		&model.TaskInstanceAlias{},
		&model.FieldResponse{},
	}
}

// NewSQLiteDB 创建内存数据库并自动迁移
// 内存库按连接隔离，因此连接池固定为 1；事务内必须使用事务绑定的 Repository
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("打开 SQLite 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("AutoMigrate 失败: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// IntPtr 返回 n 的指针
func IntPtr(n int) *int { return &n }

func mustCreate(t testing.TB, db *gorm.DB, value interface{}, what string) {
	t.Helper()
	if err := db.Create(value).Error; err != nil {
		t.Fatalf("创建%s失败: %v", what, err)
	}
}

// SeedPerson 创建人员
func SeedPerson(t testing.TB, db *gorm.DB, xid, name string) *model.Person {
	t.Helper()
	p := &model.Person{XID: xid, Name: name, Role: "worker"}
	mustCreate(t, db, p, "人员")
	return p
}

// SeedWorkOrder 创建现场、工单及连续的 days 个工单日
func SeedWorkOrder(t testing.TB, db *gorm.DB, title string, days int) (*model.WorkOrder, []model.WorkOrderDay) {
	t.Helper()

	faena := &model.Faena{Name: "Faena " + title, CustomerName: "Minera Norte"}
	mustCreate(t, db, faena, "现场")

	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	wo := &model.WorkOrder{FaenaID: faena.FaenaID, Title: title, Status: "planned", StartDate: start}
	mustCreate(t, db, wo, "工单")
	wo.Faena = faena

	list := make([]model.WorkOrderDay, 0, days)
	for i := 1; i <= days; i++ {
		d := model.WorkOrderDay{
			WorkOrderID:    wo.WorkOrderID,
			DayNumber:      i,
			Date:           start.AddDate(0, 0, i-1),
			Status:         "pending",
			RequiredPeople: 2,
		}
		mustCreate(t, db, &d, fmt.Sprintf("工单日 %d ", i))
		list = append(list, d)
	}
	return wo, list
}

// SeedTaskTemplate 创建任务模板及其字段（按给定顺序编号）
func SeedTaskTemplate(t testing.TB, db *gorm.DB, name string, fieldLabels ...string) *model.TaskTemplate {
	t.Helper()
	tmpl := &model.TaskTemplate{Name: name}
	for i, label := range fieldLabels {
		tmpl.Fields = append(tmpl.Fields, model.FieldTemplate{
			Label:     label,
			FieldType: "text",
			Position:  i,
		})
	}
	mustCreate(t, db, tmpl, "任务模板")
	return tmpl
}

// RoutineTask 例程任务种子
type RoutineTask struct {
	Template  *model.TaskTemplate
	DayNumber *int
}

// SeedRoutine 创建例程及其任务
func SeedRoutine(t testing.TB, db *gorm.DB, name string, tasks ...RoutineTask) *model.Routine {
	t.Helper()
	r := &model.Routine{Name: name}
	mustCreate(t, db, r, "例程")

	for i, task := range tasks {
		rtt := model.RoutineTaskTemplate{
			RoutineID:      r.RoutineID,
			TaskTemplateID: task.Template.TaskTemplateID,
			Position:       i,
			DayNumber:      task.DayNumber,
		}
		mustCreate(t, db, &rtt, "例程任务")
		rtt.TaskTemplate = task.Template
		r.Tasks = append(r.Tasks, rtt)
	}
	return r
}

// SeedRoutineAttachment 将例程挂载到工单日
func SeedRoutineAttachment(t testing.TB, db *gorm.DB, dayID, routineID string) *model.RoutineAttachment {
	t.Helper()
	a := &model.RoutineAttachment{WorkOrderDayID: dayID, RoutineID: routineID}
	mustCreate(t, db, a, "例程挂载")
	return a
}

// SeedStandaloneAttachment 将任务模板直接挂载到工单日
func SeedStandaloneAttachment(t testing.TB, db *gorm.DB, dayID, taskTemplateID string) *model.StandaloneTaskAttachment {
	t.Helper()
	a := &model.StandaloneTaskAttachment{WorkOrderDayID: dayID, TaskTemplateID: taskTemplateID}
	mustCreate(t, db, a, "独立任务挂载")
	return a
}

// SeedAssignment 直接写入分配（不触发物化）
func SeedAssignment(t testing.TB, db *gorm.DB, dayID, personID string) *model.Assignment {
	t.Helper()
	a := &model.Assignment{WorkOrderDayID: dayID, PersonID: personID}
	mustCreate(t, db, a, "分配")
	return a
}

// CountInstances 统计 (day, xid) 下的实例数
func CountInstances(t testing.TB, db *gorm.DB, dayID, personXID string) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.TaskInstance{}).
		Where("work_order_day_id = ? AND person_xid = ?", dayID, personXID).
		Count(&n).Error; err != nil {
		t.Fatalf("统计实例失败: %v", err)
	}
	return n
}
