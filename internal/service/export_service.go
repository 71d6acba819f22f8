package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/model"
	"skillbridge/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var ErrExportGenerateFail = errors.New("生成 Excel 文件失败")

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportAppeals 按状态/课程导出申诉为 Excel，无数据时只有表头
	ExportAppeals(ctx context.Context, req *dto.AppealExportRequest) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

var appealExportHeaders = []string{
	"申诉ID", "候选人", "课程", "课次", "课次日期",
	"原考勤状态", "期望状态", "当前考勤状态", "申诉状态",
	"申诉理由", "提交时间", "审核时间", "审核意见",
}

// ═══════════════════════════════════════════════════════════
// ExportAppeals：导出申诉为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：单个 Sheet，第一行表头，每条申诉一行（按提交时间升序）
// 返回值：buf（Excel 内容）, filename（建议文件名）, error

func (s *exportService) ExportAppeals(ctx context.Context, req *dto.AppealExportRequest) (*bytes.Buffer, string, error) {
	filter := repository.AppealFilter{CourseID: req.CourseID}
	if req.Status != "" {
		st := model.AppealStatus(req.Status)
		filter.Status = &st
	}

	appeals, err := s.repo.Appeal.ListAll(ctx, filter)
	if err != nil {
		s.logger.Error("查询申诉失败", zap.Error(err))
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "考勤申诉"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 38)
	f.SetColWidth(sheetName, "B", "I", 14)
	f.SetColWidth(sheetName, "J", "J", 40)
	f.SetColWidth(sheetName, "K", "L", 22)
	f.SetColWidth(sheetName, "M", "M", 30)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range appealExportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(appealExportHeaders)-1), 1), headerStyle)

	row := 2
	for i := range appeals {
		for col, v := range appealExportRow(&appeals[i]) {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
		row++
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("考勤申诉_%s.xlsx", time.Now().Format("20060102"))
	return buf, filename, nil
}

func appealExportRow(a *model.AttendanceAppeal) []interface{} {
	r := toAppealResponse(a)

	course := "-"
	if r.Course != nil {
		course = r.Course.Code + " " + r.Course.Title
	}
	candidate := r.Candidate.Name
	if candidate == "" {
		candidate = r.Candidate.ID
	}

	return []interface{}{
		r.ID,
		candidate,
		course,
		r.SessionNumber,
		r.SessionDate,
		r.OriginalStatus,
		strOrDash(r.RequestedStatus),
		r.AttendanceStatus,
		r.Status,
		r.Reason,
		r.CreatedAt,
		strOrDash(r.ReviewedAt),
		r.ReviewerComments,
	}
}

// ── 辅助函数 ──

func strOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
