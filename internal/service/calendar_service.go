package service

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"go.uber.org/zap"

	"skillbridge/backend/internal/model"
	"skillbridge/backend/internal/repository"
)

// CalendarService 考勤日历业务接口
type CalendarService interface {
	// CandidateCalendar 生成候选人的考勤日历（iCalendar），每条考勤记录一个全天事件
	CandidateCalendar(ctx context.Context, caller model.Caller) (string, error)
}

type calendarService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, logger *zap.Logger) CalendarService {
	return &calendarService{repo: repo, logger: logger}
}

func (s *calendarService) CandidateCalendar(ctx context.Context, caller model.Caller) (string, error) {
	records, err := s.repo.Attendance.List(ctx, repository.AttendanceFilter{CandidateID: caller.UserID})
	if err != nil {
		s.logger.Error("查询候选人考勤失败", zap.Error(err))
		return "", err
	}

	appeals, err := s.repo.Appeal.ListAll(ctx, repository.AppealFilter{CandidateID: caller.UserID})
	if err != nil {
		s.logger.Error("查询候选人申诉失败", zap.Error(err))
		return "", err
	}
	// 同一记录只展示活动申诉；无活动申诉时展示最近一条
	appealByRecord := make(map[string]model.AppealStatus, len(appeals))
	for _, a := range appeals {
		if prev, ok := appealByRecord[a.AttendanceID]; ok && prev.Active() {
			continue
		}
		appealByRecord[a.AttendanceID] = a.Status
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//SkillBridge//Attendance//ZH")
	cal.SetXWRCalName("SkillBridge 考勤")

	now := time.Now().UTC()
	for _, rec := range records {
		event := cal.AddEvent(rec.AttendanceID + "@skillbridge")
		event.SetDtStampTime(now)
		event.SetAllDayStartAt(rec.SessionDate)
		event.SetAllDayEndAt(rec.SessionDate.AddDate(0, 0, 1))

		title := "课程"
		if rec.Enrollment != nil && rec.Enrollment.Course != nil {
			title = rec.Enrollment.Course.Title
		}
		event.SetSummary(fmt.Sprintf("%s 第%d次课", title, rec.SessionNumber))

		desc := "考勤状态: " + string(rec.Status)
		if st, ok := appealByRecord[rec.AttendanceID]; ok {
			desc += "\n申诉状态: " + string(st)
		}
		event.SetDescription(desc)
	}

	return cal.Serialize(), nil
}
