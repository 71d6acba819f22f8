package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"skillbridge/backend/internal/model"
	"skillbridge/backend/internal/repository"
	pkgerrors "skillbridge/backend/pkg/errors"
)

// ── 内存数据集（所有 mock repo 共享，读取时返回副本以模拟数据库行） ──

type mockStore struct {
	seq int

	users         map[string]*model.User
	courses       map[string]*model.Course
	enrollments   map[string]*model.Enrollment
	records       map[string]*model.AttendanceRecord
	appeals       map[string]*model.AttendanceAppeal
	logs          []model.AppealActionLog
	notifications []*model.Notification

	// 故障注入
	hideActive      bool  // FindActiveByAttendance 始终返回未找到（模拟并发竞争）
	staleAppealLock bool  // GetByIDForUpdate 返回过期 version
	notificationErr error // Notification.Create 返回该错误
}

func newMockStore() *mockStore {
	return &mockStore{
		users:       make(map[string]*model.User),
		courses:     make(map[string]*model.Course),
		enrollments: make(map[string]*model.Enrollment),
		records:     make(map[string]*model.AttendanceRecord),
		appeals:     make(map[string]*model.AttendanceAppeal),
	}
}

func (st *mockStore) nextID(prefix string) string {
	st.seq++
	return fmt.Sprintf("%s-%d", prefix, st.seq)
}

func (st *mockStore) repository() *repository.Repository {
	return &repository.Repository{
		User:         &mockUserRepo{st: st},
		Course:       &mockCourseRepo{st: st},
		Enrollment:   &mockEnrollmentRepo{st: st},
		Attendance:   &mockAttendanceRepo{st: st},
		Appeal:       &mockAppealRepo{st: st},
		AppealLog:    &mockAppealLogRepo{st: st},
		Notification: &mockNotificationRepo{st: st},
	}
}

// hydrateEnrollment 返回带课程与候选人关联的选课副本
func (st *mockStore) hydrateEnrollment(id string) *model.Enrollment {
	e, ok := st.enrollments[id]
	if !ok {
		return nil
	}
	cp := *e
	cp.Course = st.courses[e.CourseID]
	cp.Candidate = st.users[e.CandidateID]
	return &cp
}

func (st *mockStore) hydrateRecord(id string) *model.AttendanceRecord {
	r, ok := st.records[id]
	if !ok {
		return nil
	}
	cp := *r
	cp.Enrollment = st.hydrateEnrollment(r.EnrollmentID)
	return &cp
}

func (st *mockStore) hydrateAppeal(id string) *model.AttendanceAppeal {
	a, ok := st.appeals[id]
	if !ok {
		return nil
	}
	cp := *a
	cp.Attendance = st.hydrateRecord(a.AttendanceID)
	cp.Candidate = st.users[a.CandidateID]
	return &cp
}

func (st *mockStore) otherActive(attendanceID, excludeID string) *model.AttendanceAppeal {
	for _, a := range st.appeals {
		if a.AttendanceID == attendanceID && a.AppealID != excludeID && a.Status.Active() {
			return a
		}
	}
	return nil
}

func (st *mockStore) appealTrainer(a *model.AttendanceAppeal) string {
	rec := st.records[a.AttendanceID]
	if rec == nil {
		return ""
	}
	e := st.enrollments[rec.EnrollmentID]
	if e == nil || st.courses[e.CourseID] == nil {
		return ""
	}
	return st.courses[e.CourseID].TrainerID
}

func (st *mockStore) appealCourse(a *model.AttendanceAppeal) string {
	rec := st.records[a.AttendanceID]
	if rec == nil || st.enrollments[rec.EnrollmentID] == nil {
		return ""
	}
	return st.enrollments[rec.EnrollmentID].CourseID
}

func (st *mockStore) matchAppeal(a *model.AttendanceAppeal, f repository.AppealFilter) bool {
	if f.CandidateID != "" && a.CandidateID != f.CandidateID {
		return false
	}
	if f.TrainerID != "" && st.appealTrainer(a) != f.TrainerID {
		return false
	}
	if f.CourseID != "" && st.appealCourse(a) != f.CourseID {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	return true
}

// ── Mock UserRepository ──

type mockUserRepo struct{ st *mockStore }

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = m.st.nextID("user")
	}
	m.st.users[user.UserID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.st.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var result []model.User
	for _, id := range ids {
		if u, ok := m.st.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

// ── Mock CourseRepository / EnrollmentRepository ──

type mockCourseRepo struct{ st *mockStore }

func (m *mockCourseRepo) Create(_ context.Context, course *model.Course) error {
	if course.CourseID == "" {
		course.CourseID = m.st.nextID("course")
	}
	m.st.courses[course.CourseID] = course
	return nil
}

func (m *mockCourseRepo) GetByID(_ context.Context, id string) (*model.Course, error) {
	if c, ok := m.st.courses[id]; ok {
		cp := *c
		cp.Trainer = m.st.users[c.TrainerID]
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCourseRepo) ListByTrainer(_ context.Context, trainerID string) ([]model.Course, error) {
	var result []model.Course
	for _, c := range m.st.courses {
		if c.TrainerID == trainerID {
			result = append(result, *c)
		}
	}
	return result, nil
}

type mockEnrollmentRepo struct{ st *mockStore }

func (m *mockEnrollmentRepo) Create(_ context.Context, e *model.Enrollment) error {
	if e.EnrollmentID == "" {
		e.EnrollmentID = m.st.nextID("enr")
	}
	if e.Status == "" {
		e.Status = "active"
	}
	m.st.enrollments[e.EnrollmentID] = e
	return nil
}

func (m *mockEnrollmentRepo) GetByID(_ context.Context, id string) (*model.Enrollment, error) {
	if e := m.st.hydrateEnrollment(id); e != nil {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockEnrollmentRepo) ListByCandidate(_ context.Context, candidateID string) ([]model.Enrollment, error) {
	var result []model.Enrollment
	for id, e := range m.st.enrollments {
		if e.CandidateID == candidateID {
			result = append(result, *m.st.hydrateEnrollment(id))
		}
	}
	return result, nil
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct{ st *mockStore }

func (m *mockAttendanceRepo) Create(_ context.Context, r *model.AttendanceRecord) error {
	for _, existing := range m.st.records {
		if existing.EnrollmentID == r.EnrollmentID && existing.SessionNumber == r.SessionNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	if r.AttendanceID == "" {
		r.AttendanceID = m.st.nextID("att")
	}
	r.Version = 1
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	cp.Enrollment = nil
	m.st.records[r.AttendanceID] = &cp
	return nil
}

func (m *mockAttendanceRepo) GetByID(_ context.Context, id string) (*model.AttendanceRecord, error) {
	if r := m.st.hydrateRecord(id); r != nil {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAttendanceRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceRecord, error) {
	return m.GetByID(ctx, id)
}

func (m *mockAttendanceRepo) UpdateStatus(_ context.Context, r *model.AttendanceRecord) error {
	stored, ok := m.st.records[r.AttendanceID]
	if !ok || stored.Version != r.Version {
		return pkgerrors.ErrOptimisticLock
	}
	stored.Status = r.Status
	stored.Notes = r.Notes
	stored.UpdatedBy = r.UpdatedBy
	stored.Version++
	stored.UpdatedAt = time.Now()
	r.Version = stored.Version
	return nil
}

func (m *mockAttendanceRepo) List(_ context.Context, f repository.AttendanceFilter) ([]model.AttendanceRecord, error) {
	var result []model.AttendanceRecord
	for id, r := range m.st.records {
		e := m.st.enrollments[r.EnrollmentID]
		if e == nil {
			continue
		}
		if f.CandidateID != "" && e.CandidateID != f.CandidateID {
			continue
		}
		if f.CourseID != "" && e.CourseID != f.CourseID {
			continue
		}
		if f.SessionNumber != nil && r.SessionNumber != *f.SessionNumber {
			continue
		}
		result = append(result, *m.st.hydrateRecord(id))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SessionNumber < result[j].SessionNumber })
	return result, nil
}

// ── Mock AppealRepository ──

type mockAppealRepo struct{ st *mockStore }

func (m *mockAppealRepo) Create(_ context.Context, a *model.AttendanceAppeal) error {
	if a.Status.Active() && m.st.otherActive(a.AttendanceID, "") != nil {
		return gorm.ErrDuplicatedKey
	}
	if a.AppealID == "" {
		a.AppealID = m.st.nextID("appeal")
	}
	a.Version = 1
	// 保证同一测试内创建时间严格递增
	a.CreatedAt = time.Now().Add(time.Duration(m.st.seq) * time.Millisecond)
	a.UpdatedAt = a.CreatedAt
	cp := *a
	cp.Attendance = nil
	cp.Candidate = nil
	m.st.appeals[a.AppealID] = &cp
	return nil
}

func (m *mockAppealRepo) GetByID(_ context.Context, id string) (*model.AttendanceAppeal, error) {
	if a := m.st.hydrateAppeal(id); a != nil {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAppealRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.AttendanceAppeal, error) {
	a, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.st.staleAppealLock {
		a.Version--
	}
	return a, nil
}

func (m *mockAppealRepo) FindActiveByAttendance(_ context.Context, attendanceID, excludeID string) (*model.AttendanceAppeal, error) {
	if m.st.hideActive {
		return nil, gorm.ErrRecordNotFound
	}
	if a := m.st.otherActive(attendanceID, excludeID); a != nil {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAppealRepo) UpdateDecision(_ context.Context, a *model.AttendanceAppeal) error {
	stored, ok := m.st.appeals[a.AppealID]
	if !ok || stored.Version != a.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if a.Status.Active() && m.st.otherActive(a.AttendanceID, a.AppealID) != nil {
		return gorm.ErrDuplicatedKey
	}
	stored.Status = a.Status
	stored.ReviewedBy = a.ReviewedBy
	stored.ReviewedAt = a.ReviewedAt
	stored.ReviewerComments = a.ReviewerComments
	stored.OverriddenBy = a.OverriddenBy
	stored.OverriddenAt = a.OverriddenAt
	stored.UpdatedBy = a.UpdatedBy
	stored.UpdatedAt = time.Now()
	stored.Version++
	a.Version = stored.Version
	return nil
}

func (m *mockAppealRepo) filtered(f repository.AppealFilter) []model.AttendanceAppeal {
	var result []model.AttendanceAppeal
	for id, a := range m.st.appeals {
		if m.st.matchAppeal(a, f) {
			result = append(result, *m.st.hydrateAppeal(id))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (m *mockAppealRepo) List(_ context.Context, f repository.AppealFilter, offset, limit int) ([]model.AttendanceAppeal, int64, error) {
	all := m.filtered(f)
	// 按创建时间倒序
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []model.AttendanceAppeal{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockAppealRepo) ListAll(_ context.Context, f repository.AppealFilter) ([]model.AttendanceAppeal, error) {
	return m.filtered(f), nil
}

func (m *mockAppealRepo) CountByStatus(_ context.Context, f repository.AppealFilter) (map[model.AppealStatus]int64, error) {
	counts := make(map[model.AppealStatus]int64)
	for _, a := range m.st.appeals {
		if m.st.matchAppeal(a, f) {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (m *mockAppealRepo) ListStalePending(_ context.Context, before time.Time, limit int) ([]model.AttendanceAppeal, error) {
	var result []model.AttendanceAppeal
	for _, a := range m.filtered(repository.AppealFilter{}) {
		if a.Status != model.AppealPending || !a.CreatedAt.Before(before) {
			continue
		}
		if a.LastRemindedAt != nil && !a.LastRemindedAt.Before(before) {
			continue
		}
		result = append(result, a)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *mockAppealRepo) MarkReminded(_ context.Context, id string, at time.Time) error {
	if a, ok := m.st.appeals[id]; ok {
		a.LastRemindedAt = &at
	}
	return nil
}

// ── Mock AppealActionLogRepository ──

type mockAppealLogRepo struct{ st *mockStore }

func (m *mockAppealLogRepo) Create(_ context.Context, l *model.AppealActionLog) error {
	if l.ActionLogID == "" {
		l.ActionLogID = m.st.nextID("log")
	}
	l.CreatedAt = time.Now()
	m.st.logs = append(m.st.logs, *l)
	return nil
}

func (m *mockAppealLogRepo) ListByAppeal(_ context.Context, appealID string) ([]model.AppealActionLog, error) {
	var result []model.AppealActionLog
	for _, l := range m.st.logs {
		if l.AppealID == appealID {
			result = append(result, l)
		}
	}
	return result, nil
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct{ st *mockStore }

func (m *mockNotificationRepo) Create(_ context.Context, n *model.Notification) error {
	if m.st.notificationErr != nil {
		return m.st.notificationErr
	}
	if n.NotificationID == "" {
		n.NotificationID = m.st.nextID("ntf")
	}
	n.CreatedAt = time.Now()
	m.st.notifications = append(m.st.notifications, n)
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var all []model.Notification
	for _, n := range m.st.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		all = append(all, *n)
	}
	total := int64(len(all))
	if offset >= len(all) {
		return []model.Notification{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockNotificationRepo) CountUnread(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, x := range m.st.notifications {
		if x.UserID == userID && !x.IsRead {
			n++
		}
	}
	return n, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, userID, id string) (bool, error) {
	for _, x := range m.st.notifications {
		if x.NotificationID == id && x.UserID == userID {
			x.IsRead = true
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var n int64
	for _, x := range m.st.notifications {
		if x.UserID == userID && !x.IsRead {
			x.IsRead = true
			n++
		}
	}
	return n, nil
}

// ── Mock Mailer / StatsCache ──

type sentMail struct {
	To      string
	Subject string
}

type mockMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *mockMailer) Send(_ context.Context, _, toAddress, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{To: toAddress, Subject: subject})
	return nil
}

type mockCache struct {
	data    map[string][]byte
	deleted []string
	getErr  error
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) GetJSON(_ context.Context, key string, dest interface{}) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *mockCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func (c *mockCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.data, k)
		c.deleted = append(c.deleted, k)
	}
	return nil
}
