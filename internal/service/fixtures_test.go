package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"skillbridge/backend/config"
	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/model"
)

// ── 测试辅助 ──

var (
	candidate      = model.Caller{UserID: "cand-1", Role: model.RoleCandidate}
	otherCandidate = model.Caller{UserID: "cand-2", Role: model.RoleCandidate}
	trainer        = model.Caller{UserID: "trainer-1", Role: model.RoleTrainer}
	otherTrainer   = model.Caller{UserID: "trainer-2", Role: model.RoleTrainer}
	admin          = model.Caller{UserID: "admin-1", Role: model.RoleAdmin}
	recruiter      = model.Caller{UserID: "recruiter-1", Role: model.RoleRecruiter}
)

const validReason = "当天因病就医，附有医院证明"

func testAppealConfig() *config.AppealConfig {
	return &config.AppealConfig{
		MinReasonLength: 10,
		MaxDocuments:    10,
		StatsCacheTTL:   30 * time.Second,
		ReminderCron:    "@hourly",
		ReminderAfter:   48 * time.Hour,
	}
}

// seedStore 预置用户、课程 course-1（trainer-1 授课）、两份选课与 cand-1 的四条考勤
func seedStore() *mockStore {
	st := newMockStore()

	for _, u := range []*model.User{
		{UserID: "cand-1", Name: "张三", Email: "zhangsan@test.local", Role: model.RoleCandidate},
		{UserID: "cand-2", Name: "李四", Email: "lisi@test.local", Role: model.RoleCandidate},
		{UserID: "trainer-1", Name: "王老师", Email: "wang@test.local", Role: model.RoleTrainer},
		{UserID: "trainer-2", Name: "赵老师", Email: "zhao@test.local", Role: model.RoleTrainer},
		{UserID: "admin-1", Name: "管理员", Email: "admin@test.local", Role: model.RoleAdmin},
	} {
		st.users[u.UserID] = u
	}

	st.courses["course-1"] = &model.Course{CourseID: "course-1", Code: "GO-101", Title: "Go 后端开发", TrainerID: "trainer-1"}
	st.courses["course-2"] = &model.Course{CourseID: "course-2", Code: "PY-101", Title: "Python 基础", TrainerID: "trainer-2"}
	st.enrollments["enr-1"] = &model.Enrollment{EnrollmentID: "enr-1", CandidateID: "cand-1", CourseID: "course-1", Status: "active"}
	st.enrollments["enr-2"] = &model.Enrollment{EnrollmentID: "enr-2", CandidateID: "cand-2", CourseID: "course-1", Status: "active"}
	st.enrollments["enr-3"] = &model.Enrollment{EnrollmentID: "enr-3", CandidateID: "cand-1", CourseID: "course-2", Status: "withdrawn"}

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	for i, s := range []struct {
		id     string
		status model.AttendanceStatus
	}{
		{"att-absent", model.AttendanceAbsent},
		{"att-late", model.AttendanceLate},
		{"att-present", model.AttendancePresent},
		{"att-excused", model.AttendanceExcused},
	} {
		rec := &model.AttendanceRecord{
			AttendanceID:  s.id,
			EnrollmentID:  "enr-1",
			SessionDate:   day.AddDate(0, 0, 7*i),
			SessionNumber: i + 1,
			Status:        s.status,
			MarkedBy:      "trainer-1",
		}
		rec.Version = 1
		st.records[s.id] = rec
	}
	st.records["att-other"] = &model.AttendanceRecord{
		AttendanceID: "att-other", EnrollmentID: "enr-2", SessionDate: day, SessionNumber: 1,
		Status: model.AttendanceAbsent, MarkedBy: "trainer-1",
		VersionedModel: model.VersionedModel{Version: 1},
	}
	return st
}

type appealEnv struct {
	st     *mockStore
	svc    AppealService
	mailer *mockMailer
	cache  *mockCache
}

func setupAppealEnv(withCache bool) *appealEnv {
	st := seedStore()
	repo := st.repository()
	mailer := &mockMailer{}
	logger := zap.NewNop()

	env := &appealEnv{st: st, mailer: mailer}
	var cache StatsCache
	if withCache {
		env.cache = newMockCache()
		cache = env.cache
	}
	env.svc = NewAppealService(testAppealConfig(), repo, cache, NewNotifier(repo, mailer, logger), logger)
	return env
}

func strPtr(s string) *string { return &s }

// submit 以 cand-1 身份提交申诉，失败时终止测试
func (e *appealEnv) submit(t *testing.T, attendanceID string, requested *string) *dto.AppealResponse {
	t.Helper()
	resp, err := e.svc.Submit(context.Background(), candidate, attendanceID, &dto.SubmitAppealRequest{
		Reason:          validReason,
		RequestedStatus: requested,
	})
	if err != nil {
		t.Fatalf("Submit 应成功: %v", err)
	}
	return resp
}

func (e *appealEnv) approve(t *testing.T, appealID string, newStatus *string) *dto.AppealResponse {
	t.Helper()
	resp, err := e.svc.Review(context.Background(), trainer, appealID, &dto.ReviewAppealRequest{
		Decision:  "APPROVE",
		NewStatus: newStatus,
	})
	if err != nil {
		t.Fatalf("Review APPROVE 应成功: %v", err)
	}
	return resp
}

func (e *appealEnv) reject(t *testing.T, appealID string) *dto.AppealResponse {
	t.Helper()
	resp, err := e.svc.Review(context.Background(), trainer, appealID, &dto.ReviewAppealRequest{
		Decision:         "REJECT",
		ReviewerComments: "证明材料不足",
	})
	if err != nil {
		t.Fatalf("Review REJECT 应成功: %v", err)
	}
	return resp
}

func (e *appealEnv) notificationsFor(userID, typ string) int {
	n := 0
	for _, x := range e.st.notifications {
		if x.UserID == userID && x.Type == typ {
			n++
		}
	}
	return n
}
