package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"skillbridge/backend/internal/api/middleware"
	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/model"
	"skillbridge/backend/internal/service"
	"skillbridge/backend/pkg/response"
	"skillbridge/backend/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validator.Register(); err != nil {
		panic(err)
	}
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock AppealService ──

type mockAppealService struct {
	result     *dto.AppealResponse
	err        error
	list       []dto.AppealResponse
	total      int64
	listErr    error
	stats      *dto.AppealStatistics
	statsErr   error
	detail     *dto.AppealDetailResponse
	lastCaller model.Caller
	lastID     string
}

func (m *mockAppealService) Submit(_ context.Context, caller model.Caller, id string, _ *dto.SubmitAppealRequest) (*dto.AppealResponse, error) {
	m.lastCaller, m.lastID = caller, id
	return m.result, m.err
}
func (m *mockAppealService) Review(_ context.Context, caller model.Caller, id string, _ *dto.ReviewAppealRequest) (*dto.AppealResponse, error) {
	m.lastCaller, m.lastID = caller, id
	return m.result, m.err
}
func (m *mockAppealService) Cancel(_ context.Context, caller model.Caller, id string) (*dto.AppealResponse, error) {
	m.lastCaller, m.lastID = caller, id
	return m.result, m.err
}
func (m *mockAppealService) Override(_ context.Context, caller model.Caller, id string, _ *dto.OverrideAppealRequest) (*dto.AppealResponse, error) {
	m.lastCaller, m.lastID = caller, id
	return m.result, m.err
}
func (m *mockAppealService) ListCandidate(_ context.Context, caller model.Caller, _ *dto.AppealListRequest) ([]dto.AppealResponse, int64, error) {
	m.lastCaller = caller
	return m.list, m.total, m.listErr
}
func (m *mockAppealService) ListTrainer(_ context.Context, caller model.Caller, _ *dto.AppealListRequest) ([]dto.AppealResponse, int64, error) {
	m.lastCaller = caller
	return m.list, m.total, m.listErr
}
func (m *mockAppealService) ListAll(_ context.Context, _ *dto.AppealListRequest) ([]dto.AppealResponse, int64, error) {
	return m.list, m.total, m.listErr
}
func (m *mockAppealService) Statistics(_ context.Context, _ string) (*dto.AppealStatistics, error) {
	return m.stats, m.statsErr
}
func (m *mockAppealService) Get(_ context.Context, caller model.Caller, id string) (*dto.AppealDetailResponse, error) {
	m.lastCaller, m.lastID = caller, id
	return m.detail, m.err
}

// ── Mock AttendanceService ──

type mockAttendanceService struct {
	result *dto.AttendanceResponse
	list   []dto.AttendanceResponse
	err    error
}

func (m *mockAttendanceService) Mark(_ context.Context, _ model.Caller, _ *dto.MarkAttendanceRequest) (*dto.AttendanceResponse, error) {
	return m.result, m.err
}
func (m *mockAttendanceService) Update(_ context.Context, _ model.Caller, _ string, _ *dto.UpdateAttendanceRequest) (*dto.AttendanceResponse, error) {
	return m.result, m.err
}
func (m *mockAttendanceService) ListCandidate(_ context.Context, _ model.Caller, _ string) ([]dto.AttendanceResponse, error) {
	return m.list, m.err
}
func (m *mockAttendanceService) ListCourse(_ context.Context, _ model.Caller, _ string, _ *int) ([]dto.AttendanceResponse, error) {
	return m.list, m.err
}

// ── Mock NotificationService ──

type mockNotificationService struct {
	list   []dto.NotificationResponse
	total  int64
	unread int64
	err    error
}

func (m *mockNotificationService) List(_ context.Context, _ string, _ *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, int64, error) {
	return m.list, m.total, m.unread, m.err
}
func (m *mockNotificationService) MarkRead(_ context.Context, _, _ string) error { return m.err }
func (m *mockNotificationService) MarkAllRead(_ context.Context, _ string) (int64, error) {
	return m.total, m.err
}

// ── Mock ExportService / CalendarService ──

type mockExportService struct {
	buf      *bytes.Buffer
	filename string
	err      error
}

func (m *mockExportService) ExportAppeals(_ context.Context, _ *dto.AppealExportRequest) (*bytes.Buffer, string, error) {
	return m.buf, m.filename, m.err
}

type mockCalendarService struct {
	ics string
	err error
}

func (m *mockCalendarService) CandidateCalendar(_ context.Context, _ model.Caller) (string, error) {
	return m.ics, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

const testUUID = "3f9c2d3e-8b1a-4c5e-9d7f-0a1b2c3d4e5f"

var (
	candidateCaller = model.Caller{UserID: "cand-1", Role: model.RoleCandidate}
	trainerCaller   = model.Caller{UserID: "trainer-1", Role: model.RoleTrainer}
	adminCaller     = model.Caller{UserID: "admin-1", Role: model.RoleAdmin}
)

// withCaller 模拟认证中间件注入调用方
func withCaller(caller model.Caller, h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CallerKey, caller)
		h(c)
	}
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

func serve(r *gin.Engine, method, path string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

// ═══════════════════════════════════════════════════════════
// AppealHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAppealHandler_Submit_Success(t *testing.T) {
	mock := &mockAppealService{result: &dto.AppealResponse{ID: "appeal-1", Status: "PENDING"}}
	h := NewAppealHandler(mock)

	r := gin.New()
	r.POST("/candidate/attendance/:attendanceId/appeal", withCaller(candidateCaller, h.Submit))
	w := serve(r, "POST", "/candidate/attendance/att-1/appeal", jsonBody(dto.SubmitAppealRequest{
		Reason:          "当天因病就医，附有医院证明",
		RequestedStatus: strPtr("excused"),
	}))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastID != "att-1" || mock.lastCaller != candidateCaller {
		t.Errorf("路径参数或调用方未透传: id=%s caller=%+v", mock.lastID, mock.lastCaller)
	}
}

func TestAppealHandler_Submit_ValidationDetails(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{})

	r := gin.New()
	r.POST("/candidate/attendance/:attendanceId/appeal", withCaller(candidateCaller, h.Submit))
	w := serve(r, "POST", "/candidate/attendance/att-1/appeal", jsonBody(map[string]interface{}{
		"reason":           "",
		"requested_status": "HOLIDAY",
	}))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := parseResponse(w)
	if resp.Code != 10001 {
		t.Errorf("expected code 10001, got %d", resp.Code)
	}
	if !strings.Contains(resp.Details, "reason") || !strings.Contains(resp.Details, "requested_status") {
		t.Errorf("详情应列出字段，实际: %s", resp.Details)
	}
}

func TestAppealHandler_Submit_BadJSON(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{})

	r := gin.New()
	r.POST("/a/:attendanceId", withCaller(candidateCaller, h.Submit))
	w := serve(r, "POST", "/a/att-1", bytes.NewReader([]byte("invalid json")))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAppealHandler_Submit_Unauthenticated(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{})

	r := gin.New()
	r.POST("/a/:attendanceId", h.Submit)
	w := serve(r, "POST", "/a/att-1", jsonBody(dto.SubmitAppealRequest{Reason: "当天因病就医，附有医院证明"}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAppealHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"考勤不存在", service.ErrAttendanceNotFound, http.StatusNotFound, 20001},
		{"申诉不存在", service.ErrAppealNotFound, http.StatusNotFound, 20002},
		{"理由过短", service.ErrAppealReasonTooShort, http.StatusBadRequest, 20003},
		{"不可申诉", service.ErrAttendanceNotAppealable, http.StatusBadRequest, 20004},
		{"已有进行中申诉", service.ErrAppealActiveExists, http.StatusConflict, 20007},
		{"非待审核", service.ErrAppealNotPending, http.StatusConflict, 20008},
		{"并发修改", service.ErrAppealConcurrentUpdate, http.StatusConflict, 20010},
		{"非本人", service.ErrAppealNotOwner, http.StatusForbidden, 10003},
		{"非授课培训师", service.ErrAppealNotCourseTrainer, http.StatusForbidden, 10003},
		{"附件过多", service.ErrTooManyDocuments, http.StatusBadRequest, 10001},
		{"未知错误", errors.New("db down"), http.StatusInternalServerError, 50000},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAppealHandler(&mockAppealService{err: tc.err})

			r := gin.New()
			r.DELETE("/appeals/:appealId", withCaller(candidateCaller, h.Cancel))
			w := serve(r, "DELETE", "/appeals/appeal-1", nil)

			if w.Code != tc.status {
				t.Errorf("expected %d, got %d", tc.status, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tc.code {
				t.Errorf("expected code %d, got %d", tc.code, resp.Code)
			}
		})
	}
}

func TestAppealHandler_Review_InvalidDecision(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{})

	r := gin.New()
	r.PUT("/appeals/:appealId/review", withCaller(trainerCaller, h.Review))
	w := serve(r, "PUT", "/appeals/appeal-1/review", jsonBody(map[string]string{"decision": "MAYBE"}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAppealHandler_Review_Success(t *testing.T) {
	mock := &mockAppealService{result: &dto.AppealResponse{ID: "appeal-1", Status: "APPROVED"}}
	h := NewAppealHandler(mock)

	r := gin.New()
	r.PUT("/appeals/:appealId/review", withCaller(trainerCaller, h.Review))
	w := serve(r, "PUT", "/appeals/appeal-1/review", jsonBody(dto.ReviewAppealRequest{Decision: "approve"}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.lastCaller != trainerCaller {
		t.Error("调用方未透传")
	}
}

func TestAppealHandler_ListMine_Pagination(t *testing.T) {
	mock := &mockAppealService{list: []dto.AppealResponse{{ID: "a1"}, {ID: "a2"}}, total: 45}
	h := NewAppealHandler(mock)

	r := gin.New()
	r.GET("/appeals", withCaller(candidateCaller, h.ListMine))
	w := serve(r, "GET", "/appeals?status=PENDING&page=2&page_size=20", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Data response.PageData `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Pagination.Total != 45 || body.Data.Pagination.TotalPages != 3 || body.Data.Pagination.Page != 2 {
		t.Errorf("分页信息不正确: %+v", body.Data.Pagination)
	}
}

func TestAppealHandler_ListMine_InvalidStatus(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{})

	r := gin.New()
	r.GET("/appeals", withCaller(candidateCaller, h.ListMine))
	w := serve(r, "GET", "/appeals?status=UNKNOWN", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAppealHandler_ListAdmin_WithStatistics(t *testing.T) {
	mock := &mockAppealService{
		list:  []dto.AppealResponse{{ID: "a1"}},
		total: 1,
		stats: &dto.AppealStatistics{Total: 1, Pending: 1},
	}
	h := NewAppealHandler(mock)

	r := gin.New()
	r.GET("/admin/appeals", withCaller(adminCaller, h.ListAdmin))
	w := serve(r, "GET", "/admin/appeals?course_id="+testUUID, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Data dto.AdminAppealListResponse `json:"data"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Data.Statistics == nil || body.Data.Statistics.Pending != 1 {
		t.Errorf("应包含统计信息: %s", w.Body.String())
	}
	if body.Data.Pagination.Total != 1 {
		t.Errorf("应包含分页信息: %s", w.Body.String())
	}
}

func TestAppealHandler_ListAdmin_InvalidCourseID(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{})

	r := gin.New()
	r.GET("/admin/appeals", withCaller(adminCaller, h.ListAdmin))
	w := serve(r, "GET", "/admin/appeals?course_id=not-a-uuid", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAppealHandler_Override_InvalidDecision(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{})

	r := gin.New()
	r.PUT("/appeals/:appealId/override", withCaller(adminCaller, h.Override))
	w := serve(r, "PUT", "/appeals/appeal-1/override", jsonBody(map[string]string{
		"new_decision": "CANCELLED",
		"comments":     "改判",
	}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAppealHandler_Get_Forbidden(t *testing.T) {
	h := NewAppealHandler(&mockAppealService{err: service.ErrAppealForbidden})

	r := gin.New()
	r.GET("/appeals/:appealId", withCaller(candidateCaller, h.Get))
	w := serve(r, "GET", "/appeals/appeal-1", nil)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// AttendanceHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAttendanceHandler_Mark_Success(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{result: &dto.AttendanceResponse{ID: "att-1", Status: "PRESENT"}})

	r := gin.New()
	r.POST("/trainer/attendance", withCaller(trainerCaller, h.Mark))
	w := serve(r, "POST", "/trainer/attendance", jsonBody(dto.MarkAttendanceRequest{
		EnrollmentID:  testUUID,
		SessionNumber: 1,
		SessionDate:   "2026-03-02",
		Status:        "PRESENT",
	}))

	if w.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAttendanceHandler_Mark_InvalidDate(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{})

	r := gin.New()
	r.POST("/trainer/attendance", withCaller(trainerCaller, h.Mark))
	w := serve(r, "POST", "/trainer/attendance", jsonBody(dto.MarkAttendanceRequest{
		EnrollmentID:  testUUID,
		SessionNumber: 1,
		SessionDate:   "02/03/2026",
		Status:        "PRESENT",
	}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAttendanceHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{service.ErrAttendanceExists, http.StatusConflict, 21004},
		{service.ErrNotCourseTrainer, http.StatusForbidden, 21007},
		{service.ErrCourseNotFound, http.StatusNotFound, 21002},
		{service.ErrAttendanceConcurrent, http.StatusConflict, 21006},
	}

	for _, tc := range cases {
		h := NewAttendanceHandler(&mockAttendanceService{err: tc.err})

		r := gin.New()
		r.GET("/courses/:courseId/attendance", withCaller(trainerCaller, h.ListCourse))
		w := serve(r, "GET", "/courses/course-1/attendance?session_number=2", nil)

		if w.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, w.Code)
		}
		if resp := parseResponse(w); resp.Code != tc.code {
			t.Errorf("%v: expected code %d, got %d", tc.err, tc.code, resp.Code)
		}
	}
}

func TestAttendanceHandler_ListMine(t *testing.T) {
	h := NewAttendanceHandler(&mockAttendanceService{list: []dto.AttendanceResponse{{ID: "att-1"}}})

	r := gin.New()
	r.GET("/candidate/attendance", withCaller(candidateCaller, h.ListMine))
	w := serve(r, "GET", "/candidate/attendance", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"att-1"`) {
		t.Errorf("应返回考勤列表: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// NotificationHandler Tests
// ═══════════════════════════════════════════════════════════

func TestNotificationHandler_List(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationService{
		list:   []dto.NotificationResponse{{ID: "n1"}},
		total:  1,
		unread: 1,
	})

	r := gin.New()
	r.GET("/notifications", withCaller(candidateCaller, h.List))
	w := serve(r, "GET", "/notifications?unread_only=true", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"unread_count":1`) {
		t.Errorf("应返回未读数: %s", w.Body.String())
	}
}

func TestNotificationHandler_MarkRead_NotFound(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationService{err: service.ErrNotificationNotFound})

	r := gin.New()
	r.PUT("/notifications/:id/read", withCaller(candidateCaller, h.MarkRead))
	w := serve(r, "PUT", "/notifications/n1/read", nil)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 22001 {
		t.Errorf("expected code 22001, got %d", resp.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_ExportAppeals_Success(t *testing.T) {
	h := NewExportHandler(&mockExportService{
		buf:      bytes.NewBufferString("PK-fake-xlsx"),
		filename: "考勤申诉_20260315.xlsx",
	}, &mockCalendarService{})

	r := gin.New()
	r.GET("/export", withCaller(adminCaller, h.ExportAppeals))
	w := serve(r, "GET", "/export?status=PENDING", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("unexpected Content-Type: %s", ct)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
		t.Error("expected attachment Content-Disposition")
	}
}

func TestExportHandler_ExportAppeals_GenerateFail(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrExportGenerateFail}, &mockCalendarService{})

	r := gin.New()
	r.GET("/export", withCaller(adminCaller, h.ExportAppeals))
	w := serve(r, "GET", "/export", nil)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 23001 {
		t.Errorf("expected code 23001, got %d", resp.Code)
	}
}

func TestExportHandler_CandidateCalendar(t *testing.T) {
	h := NewExportHandler(&mockExportService{}, &mockCalendarService{ics: "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"})

	r := gin.New()
	r.GET("/calendar.ics", withCaller(candidateCaller, h.CandidateCalendar))
	w := serve(r, "GET", "/calendar.ics", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar") {
		t.Errorf("unexpected Content-Type: %s", w.Header().Get("Content-Type"))
	}
}

// ═══════════════════════════════════════════════════════════
// HealthHandler Tests
// ═══════════════════════════════════════════════════════════

func TestHealthHandler(t *testing.T) {
	ok := HealthCheck{Name: "db", Ping: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	r := gin.New()
	r.GET("/health", NewHealthHandler(ok).Check)
	if w := serve(r, "GET", "/health", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	r = gin.New()
	r.GET("/health", NewHealthHandler(ok, down).Check)
	w := serve(r, "GET", "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "connection refused") {
		t.Errorf("应包含失败原因: %s", w.Body.String())
	}
}

func strPtr(s string) *string { return &s }
