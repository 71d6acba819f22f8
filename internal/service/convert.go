package service

import (
	"time"

	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/model"
)

const (
	timeLayout = "2006-01-02T15:04:05Z"
	dateLayout = "2006-01-02"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func statusPtr(s *model.AttendanceStatus) *string {
	if s == nil {
		return nil
	}
	v := string(*s)
	return &v
}

func toCourseBrief(c *model.Course) *dto.CourseBrief {
	if c == nil {
		return nil
	}
	return &dto.CourseBrief{ID: c.CourseID, Code: c.Code, Title: c.Title}
}

func toAppealResponse(a *model.AttendanceAppeal) dto.AppealResponse {
	resp := dto.AppealResponse{
		ID:                  a.AppealID,
		AttendanceID:        a.AttendanceID,
		Candidate:           dto.UserBrief{ID: a.CandidateID},
		OriginalStatus:      string(a.OriginalStatus),
		RequestedStatus:     statusPtr(a.RequestedStatus),
		Reason:              a.Reason,
		SupportingDocuments: []string(a.SupportingDocuments),
		Status:              string(a.Status),
		ReviewedBy:          a.ReviewedBy,
		ReviewedAt:          formatTimePtr(a.ReviewedAt),
		ReviewerComments:    a.ReviewerComments,
		OverriddenBy:        a.OverriddenBy,
		OverriddenAt:        formatTimePtr(a.OverriddenAt),
		CreatedAt:           formatTime(a.CreatedAt),
		UpdatedAt:           formatTime(a.UpdatedAt),
	}
	if resp.SupportingDocuments == nil {
		resp.SupportingDocuments = []string{}
	}
	if a.Candidate != nil {
		resp.Candidate.Name = a.Candidate.Name
	}
	if rec := a.Attendance; rec != nil {
		resp.SessionDate = rec.SessionDate.Format(dateLayout)
		resp.SessionNumber = rec.SessionNumber
		resp.AttendanceStatus = string(rec.Status)
		if rec.Enrollment != nil {
			resp.Course = toCourseBrief(rec.Enrollment.Course)
		}
	}
	return resp
}

func toAppealResponses(appeals []model.AttendanceAppeal) []dto.AppealResponse {
	result := make([]dto.AppealResponse, 0, len(appeals))
	for i := range appeals {
		result = append(result, toAppealResponse(&appeals[i]))
	}
	return result
}

func toAppealActionResponse(l *model.AppealActionLog) dto.AppealActionResponse {
	resp := dto.AppealActionResponse{
		ID:               l.ActionLogID,
		Action:           string(l.Action),
		ToStatus:         string(l.ToStatus),
		AttendanceBefore: statusPtr(l.AttendanceBefore),
		AttendanceAfter:  statusPtr(l.AttendanceAfter),
		OperatorID:       l.OperatorID,
		Comments:         l.Comments,
		CreatedAt:        formatTime(l.CreatedAt),
	}
	if l.FromStatus != nil {
		from := string(*l.FromStatus)
		resp.FromStatus = &from
	}
	return resp
}

func toAttendanceResponse(r *model.AttendanceRecord) dto.AttendanceResponse {
	resp := dto.AttendanceResponse{
		ID:            r.AttendanceID,
		EnrollmentID:  r.EnrollmentID,
		SessionDate:   r.SessionDate.Format(dateLayout),
		SessionNumber: r.SessionNumber,
		Status:        string(r.Status),
		MarkedBy:      r.MarkedBy,
		Notes:         r.Notes,
		Version:       r.Version,
		UpdatedAt:     formatTime(r.UpdatedAt),
	}
	if e := r.Enrollment; e != nil {
		resp.Course = toCourseBrief(e.Course)
		if e.Candidate != nil {
			resp.Candidate = &dto.UserBrief{ID: e.Candidate.UserID, Name: e.Candidate.Name}
		}
	}
	return resp
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.NotificationID,
		Type:        n.Type,
		Title:       n.Title,
		Content:     n.Content,
		IsRead:      n.IsRead,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		CreatedAt:   formatTime(n.CreatedAt),
	}
}
