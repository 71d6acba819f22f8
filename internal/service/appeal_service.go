package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"skillbridge/backend/config"
	"skillbridge/backend/internal/dto"
	"skillbridge/backend/internal/model"
	"skillbridge/backend/internal/repository"
	pkgerrors "skillbridge/backend/pkg/errors"
)

// maxReasonLength 申诉理由最大字符数（与表结构一致）
const maxReasonLength = 1000

// ── 申诉模块业务错误 ──

var (
	ErrAttendanceNotFound      = fmt.Errorf("%w: 考勤记录不存在", pkgerrors.ErrNotFound)
	ErrAppealNotFound          = fmt.Errorf("%w: 申诉不存在", pkgerrors.ErrNotFound)
	ErrAppealReasonTooShort    = fmt.Errorf("%w: 申诉理由过短", pkgerrors.ErrValidation)
	ErrAppealReasonTooLong     = fmt.Errorf("%w: 申诉理由过长", pkgerrors.ErrValidation)
	ErrAttendanceNotAppealable = fmt.Errorf("%w: 仅缺勤或迟到的考勤可以申诉", pkgerrors.ErrValidation)
	ErrRequestedStatusInvalid  = fmt.Errorf("%w: 期望状态无效或与当前状态相同", pkgerrors.ErrValidation)
	ErrAttendanceStatusInvalid = fmt.Errorf("%w: 考勤状态无效", pkgerrors.ErrValidation)
	ErrTooManyDocuments        = fmt.Errorf("%w: 证明材料数量超出上限", pkgerrors.ErrValidation)
	ErrAppealDecisionInvalid   = fmt.Errorf("%w: 审核结论无效", pkgerrors.ErrValidation)
	ErrAppealCommentsRequired  = fmt.Errorf("%w: 驳回或改判必须填写意见", pkgerrors.ErrValidation)
	ErrAppealActiveExists      = fmt.Errorf("%w: 该考勤记录已有待审核或已通过的申诉", pkgerrors.ErrConflict)
	ErrAppealNotPending        = fmt.Errorf("%w: 申诉非待审核状态", pkgerrors.ErrState)
	ErrAppealNotDecided        = fmt.Errorf("%w: 仅已通过或已驳回的申诉可以改判", pkgerrors.ErrState)
	ErrAppealConcurrentUpdate  = fmt.Errorf("%w: 申诉已被其他操作处理，请刷新后重试", pkgerrors.ErrState)
	ErrAppealNotOwner          = fmt.Errorf("%w: 只能操作本人提交的申诉", pkgerrors.ErrAuthorization)
	ErrAppealNotCourseTrainer  = fmt.Errorf("%w: 只能审核本人授课课程的申诉", pkgerrors.ErrAuthorization)
	ErrAppealForbidden         = fmt.Errorf("%w: 无权查看该申诉", pkgerrors.ErrAuthorization)
	ErrAdminRequired           = fmt.Errorf("%w: 仅管理员可以改判", pkgerrors.ErrAuthorization)
	ErrCandidateRequired       = fmt.Errorf("%w: 仅候选人可以提交申诉", pkgerrors.ErrAuthorization)
)

// StatsCache 申诉统计缓存（由 Redis 客户端实现）
type StatsCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// AppealService 考勤申诉业务接口
type AppealService interface {
	// Submit 候选人对本人的缺勤/迟到记录提交申诉
	Submit(ctx context.Context, caller model.Caller, attendanceID string, req *dto.SubmitAppealRequest) (*dto.AppealResponse, error)
	// Review 授课培训师审核待审核申诉
	Review(ctx context.Context, caller model.Caller, appealID string, req *dto.ReviewAppealRequest) (*dto.AppealResponse, error)
	// Cancel 候选人撤回本人待审核申诉
	Cancel(ctx context.Context, caller model.Caller, appealID string) (*dto.AppealResponse, error)
	// Override 管理员改判已通过/已驳回的申诉
	Override(ctx context.Context, caller model.Caller, appealID string, req *dto.OverrideAppealRequest) (*dto.AppealResponse, error)

	ListCandidate(ctx context.Context, caller model.Caller, req *dto.AppealListRequest) ([]dto.AppealResponse, int64, error)
	ListTrainer(ctx context.Context, caller model.Caller, req *dto.AppealListRequest) ([]dto.AppealResponse, int64, error)
	ListAll(ctx context.Context, req *dto.AppealListRequest) ([]dto.AppealResponse, int64, error)
	// Statistics 按状态统计申诉数量，courseID 为空时统计全部
	Statistics(ctx context.Context, courseID string) (*dto.AppealStatistics, error)
	// Get 申诉详情（含操作日志），仅候选人本人、授课培训师与管理员可见
	Get(ctx context.Context, caller model.Caller, appealID string) (*dto.AppealDetailResponse, error)
}

type appealService struct {
	cfg      *config.AppealConfig
	repo     *repository.Repository
	cache    StatsCache
	notifier Notifier
	logger   *zap.Logger
}

// NewAppealService 创建 AppealService 实例
func NewAppealService(
	cfg *config.AppealConfig,
	repo *repository.Repository,
	cache StatsCache,
	notifier Notifier,
	logger *zap.Logger,
) AppealService {
	return &appealService{cfg: cfg, repo: repo, cache: cache, notifier: notifier, logger: logger}
}

// ────────────────────── Submit ──────────────────────

func (s *appealService) Submit(ctx context.Context, caller model.Caller, attendanceID string, req *dto.SubmitAppealRequest) (*dto.AppealResponse, error) {
	if caller.Role != model.RoleCandidate {
		return nil, ErrCandidateRequired
	}

	// 1. 入参校验
	reason := strings.TrimSpace(req.Reason)
	n := utf8.RuneCountInString(reason)
	if n < s.cfg.MinReasonLength {
		return nil, ErrAppealReasonTooShort
	}
	if n > maxReasonLength {
		return nil, ErrAppealReasonTooLong
	}
	if len(req.SupportingDocuments) > s.cfg.MaxDocuments {
		return nil, ErrTooManyDocuments
	}

	var appeal *model.AttendanceAppeal

	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		// 2. 锁定考勤记录，串行化同一记录上的并发提交
		record, err := txRepo.Attendance.GetByIDForUpdate(ctx, attendanceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAttendanceNotFound
			}
			s.logger.Error("查询考勤记录失败", zap.String("attendance_id", attendanceID), zap.Error(err))
			return err
		}
		// 非本人记录按不存在处理
		if record.Enrollment == nil || record.Enrollment.CandidateID != caller.UserID {
			return ErrAttendanceNotFound
		}
		if !record.Status.Appealable() {
			return ErrAttendanceNotAppealable
		}

		requested, err := parseOptionalStatus(req.RequestedStatus)
		if err != nil || (requested != nil && *requested == record.Status) {
			return ErrRequestedStatusInvalid
		}

		// 3. 同一记录至多一条 PENDING/APPROVED 申诉
		if _, err := txRepo.Appeal.FindActiveByAttendance(ctx, record.AttendanceID, ""); err == nil {
			return ErrAppealActiveExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Error("查询活动申诉失败", zap.Error(err))
			return err
		}

		docs := req.SupportingDocuments
		if docs == nil {
			docs = []string{}
		}
		appeal = &model.AttendanceAppeal{
			AttendanceID:        record.AttendanceID,
			CandidateID:         caller.UserID,
			OriginalStatus:      record.Status,
			RequestedStatus:     requested,
			Reason:              reason,
			SupportingDocuments: docs,
			Status:              model.AppealPending,
		}
		appeal.CreatedBy = &caller.UserID
		appeal.UpdatedBy = &caller.UserID

		if err := txRepo.Appeal.Create(ctx, appeal); err != nil {
			// 部分唯一索引兜底并发提交
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAppealActiveExists
			}
			s.logger.Error("创建申诉失败", zap.Error(err))
			return err
		}
		appeal.Attendance = record

		return s.writeLog(ctx, txRepo, &model.AppealActionLog{
			AppealID:         appeal.AppealID,
			Action:           model.ActionSubmit,
			ToStatus:         model.AppealPending,
			AttendanceBefore: &record.Status,
			AttendanceAfter:  &record.Status,
			OperatorID:       caller.UserID,
			Comments:         reason,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, appeal)
	s.notifier.AppealSubmitted(ctx, appeal)

	s.logger.Info("申诉已提交",
		zap.String("appeal_id", appeal.AppealID),
		zap.String("attendance_id", appeal.AttendanceID),
		zap.String("candidate_id", caller.UserID),
	)

	resp := toAppealResponse(appeal)
	return &resp, nil
}

// ────────────────────── Review ──────────────────────

func (s *appealService) Review(ctx context.Context, caller model.Caller, appealID string, req *dto.ReviewAppealRequest) (*dto.AppealResponse, error) {
	decision := model.ReviewDecision(strings.ToUpper(strings.TrimSpace(req.Decision)))
	if decision != model.DecisionApprove && decision != model.DecisionReject {
		return nil, ErrAppealDecisionInvalid
	}
	comments := strings.TrimSpace(req.ReviewerComments)
	if decision == model.DecisionReject && comments == "" {
		return nil, ErrAppealCommentsRequired
	}
	newStatus, err := parseOptionalStatus(req.NewStatus)
	if err != nil {
		return nil, err
	}

	var appeal *model.AttendanceAppeal

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		a, err := s.lockAppeal(ctx, txRepo, appealID)
		if err != nil {
			return err
		}
		if a.Attendance.Enrollment.Course == nil || a.Attendance.Enrollment.Course.TrainerID != caller.UserID {
			return ErrAppealNotCourseTrainer
		}
		// 行锁下再次确认状态
		if a.Status != model.AppealPending {
			return ErrAppealNotPending
		}

		record := a.Attendance
		before := record.Status
		to := model.AppealRejected
		if decision == model.DecisionApprove {
			to = model.AppealApproved
			if err := s.applyAttendance(ctx, txRepo, record, resolveAttendanceStatus(newStatus, a.RequestedStatus), caller.UserID); err != nil {
				return err
			}
		}

		now := time.Now()
		a.Status = to
		a.ReviewedBy = &caller.UserID
		a.ReviewedAt = &now
		a.ReviewerComments = comments
		a.UpdatedBy = &caller.UserID
		if err := s.updateDecision(ctx, txRepo, a); err != nil {
			return err
		}

		from := model.AppealPending
		after := record.Status
		appeal = a
		return s.writeLog(ctx, txRepo, &model.AppealActionLog{
			AppealID:         a.AppealID,
			Action:           model.ActionReview,
			FromStatus:       &from,
			ToStatus:         to,
			AttendanceBefore: &before,
			AttendanceAfter:  &after,
			OperatorID:       caller.UserID,
			Comments:         comments,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, appeal)
	s.notifier.AppealDecided(ctx, appeal)

	s.logger.Info("申诉已审核",
		zap.String("appeal_id", appeal.AppealID),
		zap.String("status", string(appeal.Status)),
		zap.String("reviewer_id", caller.UserID),
	)

	resp := toAppealResponse(appeal)
	return &resp, nil
}

// ────────────────────── Cancel ──────────────────────

func (s *appealService) Cancel(ctx context.Context, caller model.Caller, appealID string) (*dto.AppealResponse, error) {
	var appeal *model.AttendanceAppeal

	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		a, err := s.lockAppeal(ctx, txRepo, appealID)
		if err != nil {
			return err
		}
		if a.CandidateID != caller.UserID {
			return ErrAppealNotOwner
		}
		if a.Status != model.AppealPending {
			return ErrAppealNotPending
		}

		a.Status = model.AppealCancelled
		a.UpdatedBy = &caller.UserID
		if err := s.updateDecision(ctx, txRepo, a); err != nil {
			return err
		}

		from := model.AppealPending
		appeal = a
		return s.writeLog(ctx, txRepo, &model.AppealActionLog{
			AppealID:   a.AppealID,
			Action:     model.ActionCancel,
			FromStatus: &from,
			ToStatus:   model.AppealCancelled,
			OperatorID: caller.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, appeal)

	s.logger.Info("申诉已撤回", zap.String("appeal_id", appeal.AppealID), zap.String("candidate_id", caller.UserID))

	resp := toAppealResponse(appeal)
	return &resp, nil
}

// ────────────────────── Override ──────────────────────

func (s *appealService) Override(ctx context.Context, caller model.Caller, appealID string, req *dto.OverrideAppealRequest) (*dto.AppealResponse, error) {
	if !caller.IsAdmin() {
		return nil, ErrAdminRequired
	}
	to := model.AppealStatus(strings.ToUpper(strings.TrimSpace(req.NewDecision)))
	if !to.Decided() {
		return nil, ErrAppealDecisionInvalid
	}
	comments := strings.TrimSpace(req.Comments)
	if comments == "" {
		return nil, ErrAppealCommentsRequired
	}
	newStatus, err := parseOptionalStatus(req.NewStatus)
	if err != nil {
		return nil, err
	}

	var appeal *model.AttendanceAppeal

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		a, err := s.lockAppeal(ctx, txRepo, appealID)
		if err != nil {
			return err
		}
		if !a.Status.Decided() {
			return ErrAppealNotDecided
		}
		from := a.Status

		// 驳回改为通过时重新占用考勤记录
		if from == model.AppealRejected && to == model.AppealApproved {
			if _, err := txRepo.Appeal.FindActiveByAttendance(ctx, a.AttendanceID, a.AppealID); err == nil {
				return ErrAppealActiveExists
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				s.logger.Error("查询活动申诉失败", zap.Error(err))
				return err
			}
		}

		record := a.Attendance
		before := record.Status
		// 改为驳回时不回滚考勤，如需更正由管理员直接修改考勤记录
		if to == model.AppealApproved {
			if err := s.applyAttendance(ctx, txRepo, record, resolveAttendanceStatus(newStatus, a.RequestedStatus), caller.UserID); err != nil {
				return err
			}
		}

		now := time.Now()
		a.Status = to
		a.ReviewerComments = comments
		a.OverriddenBy = &caller.UserID
		a.OverriddenAt = &now
		a.UpdatedBy = &caller.UserID
		if err := s.updateDecision(ctx, txRepo, a); err != nil {
			return err
		}

		after := record.Status
		appeal = a
		return s.writeLog(ctx, txRepo, &model.AppealActionLog{
			AppealID:         a.AppealID,
			Action:           model.ActionOverride,
			FromStatus:       &from,
			ToStatus:         to,
			AttendanceBefore: &before,
			AttendanceAfter:  &after,
			OperatorID:       caller.UserID,
			Comments:         comments,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx, appeal)
	s.notifier.AppealDecided(ctx, appeal)

	s.logger.Info("申诉已改判",
		zap.String("appeal_id", appeal.AppealID),
		zap.String("status", string(appeal.Status)),
		zap.String("admin_id", caller.UserID),
	)

	resp := toAppealResponse(appeal)
	return &resp, nil
}

// ────────────────────── Queries ──────────────────────

func (s *appealService) ListCandidate(ctx context.Context, caller model.Caller, req *dto.AppealListRequest) ([]dto.AppealResponse, int64, error) {
	filter := buildAppealFilter(req)
	filter.CandidateID = caller.UserID
	return s.list(ctx, filter, req)
}

func (s *appealService) ListTrainer(ctx context.Context, caller model.Caller, req *dto.AppealListRequest) ([]dto.AppealResponse, int64, error) {
	filter := buildAppealFilter(req)
	filter.TrainerID = caller.UserID
	return s.list(ctx, filter, req)
}

func (s *appealService) ListAll(ctx context.Context, req *dto.AppealListRequest) ([]dto.AppealResponse, int64, error) {
	return s.list(ctx, buildAppealFilter(req), req)
}

func (s *appealService) list(ctx context.Context, filter repository.AppealFilter, req *dto.AppealListRequest) ([]dto.AppealResponse, int64, error) {
	appeals, total, err := s.repo.Appeal.List(ctx, filter, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询申诉列表失败", zap.Error(err))
		return nil, 0, err
	}
	return toAppealResponses(appeals), total, nil
}

func (s *appealService) Statistics(ctx context.Context, courseID string) (*dto.AppealStatistics, error) {
	key := statsCacheKey(courseID)

	if s.cache != nil {
		var cached dto.AppealStatistics
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("读取申诉统计缓存失败，降级查库", zap.Error(err))
		} else if hit {
			return &cached, nil
		}
	}

	counts, err := s.repo.Appeal.CountByStatus(ctx, repository.AppealFilter{CourseID: courseID})
	if err != nil {
		s.logger.Error("统计申诉失败", zap.Error(err))
		return nil, err
	}

	stats := &dto.AppealStatistics{
		Pending:   counts[model.AppealPending],
		Approved:  counts[model.AppealApproved],
		Rejected:  counts[model.AppealRejected],
		Cancelled: counts[model.AppealCancelled],
	}
	stats.Total = stats.Pending + stats.Approved + stats.Rejected + stats.Cancelled

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, stats, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("写入申诉统计缓存失败", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *appealService) Get(ctx context.Context, caller model.Caller, appealID string) (*dto.AppealDetailResponse, error) {
	appeal, err := s.repo.Appeal.GetByID(ctx, appealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppealNotFound
		}
		s.logger.Error("查询申诉失败", zap.String("appeal_id", appealID), zap.Error(err))
		return nil, err
	}
	if !canViewAppeal(caller, appeal) {
		return nil, ErrAppealForbidden
	}

	logs, err := s.repo.AppealLog.ListByAppeal(ctx, appeal.AppealID)
	if err != nil {
		s.logger.Error("查询申诉操作日志失败", zap.String("appeal_id", appealID), zap.Error(err))
		return nil, err
	}

	actions := make([]dto.AppealActionResponse, 0, len(logs))
	for i := range logs {
		actions = append(actions, toAppealActionResponse(&logs[i]))
	}
	return &dto.AppealDetailResponse{
		AppealResponse: toAppealResponse(appeal),
		Actions:        actions,
	}, nil
}

// ════════════════════════════════════════════════════════════
// 内部辅助
// ════════════════════════════════════════════════════════════

// lockAppeal 在事务连接上锁定申诉及其考勤记录
func (s *appealService) lockAppeal(ctx context.Context, txRepo *repository.Repository, appealID string) (*model.AttendanceAppeal, error) {
	a, err := txRepo.Appeal.GetByIDForUpdate(ctx, appealID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAppealNotFound
		}
		s.logger.Error("锁定申诉失败", zap.String("appeal_id", appealID), zap.Error(err))
		return nil, err
	}
	if a.Attendance == nil || a.Attendance.Enrollment == nil {
		s.logger.Error("申诉关联的考勤记录缺失", zap.String("appeal_id", appealID))
		return nil, ErrAttendanceNotFound
	}
	return a, nil
}

// applyAttendance 将考勤记录更新为 target；target 为 nil 或与当前一致时不写库
func (s *appealService) applyAttendance(ctx context.Context, txRepo *repository.Repository, record *model.AttendanceRecord, target *model.AttendanceStatus, operatorID string) error {
	if target == nil || *target == record.Status {
		return nil
	}
	record.Status = *target
	record.UpdatedBy = &operatorID
	if err := txRepo.Attendance.UpdateStatus(ctx, record); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return ErrAppealConcurrentUpdate
		}
		s.logger.Error("更新考勤状态失败", zap.String("attendance_id", record.AttendanceID), zap.Error(err))
		return err
	}
	return nil
}

func (s *appealService) updateDecision(ctx context.Context, txRepo *repository.Repository, a *model.AttendanceAppeal) error {
	if err := txRepo.Appeal.UpdateDecision(ctx, a); err != nil {
		switch {
		case errors.Is(err, pkgerrors.ErrOptimisticLock):
			return ErrAppealConcurrentUpdate
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return ErrAppealActiveExists
		}
		s.logger.Error("更新申诉失败", zap.String("appeal_id", a.AppealID), zap.Error(err))
		return err
	}
	return nil
}

func (s *appealService) writeLog(ctx context.Context, txRepo *repository.Repository, log *model.AppealActionLog) error {
	if err := txRepo.AppealLog.Create(ctx, log); err != nil {
		s.logger.Error("写入申诉操作日志失败", zap.String("appeal_id", log.AppealID), zap.Error(err))
		return err
	}
	return nil
}

// invalidateStats 写操作后清除全局及课程维度的统计缓存
func (s *appealService) invalidateStats(ctx context.Context, appeal *model.AttendanceAppeal) {
	if s.cache == nil {
		return
	}
	keys := []string{statsCacheKey("")}
	if rec := appeal.Attendance; rec != nil && rec.Enrollment != nil {
		keys = append(keys, statsCacheKey(rec.Enrollment.CourseID))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("清除申诉统计缓存失败", zap.Error(err))
	}
}

func statsCacheKey(courseID string) string {
	if courseID == "" {
		return "appeal:stats:all"
	}
	return "appeal:stats:course:" + courseID
}

// resolveAttendanceStatus 通过后的考勤状态：审核指定 > 申诉期望 > 不变
func resolveAttendanceStatus(newStatus, requested *model.AttendanceStatus) *model.AttendanceStatus {
	if newStatus != nil {
		return newStatus
	}
	return requested
}

func parseOptionalStatus(raw *string) (*model.AttendanceStatus, error) {
	if raw == nil {
		return nil, nil
	}
	st := model.AttendanceStatus(strings.ToUpper(strings.TrimSpace(*raw)))
	if !st.Valid() {
		return nil, ErrAttendanceStatusInvalid
	}
	return &st, nil
}

func buildAppealFilter(req *dto.AppealListRequest) repository.AppealFilter {
	filter := repository.AppealFilter{CourseID: req.CourseID}
	if req.Status != "" {
		st := model.AppealStatus(req.Status)
		filter.Status = &st
	}
	return filter
}

func canViewAppeal(caller model.Caller, a *model.AttendanceAppeal) bool {
	switch caller.Role {
	case model.RoleAdmin:
		return true
	case model.RoleCandidate:
		return a.CandidateID == caller.UserID
	case model.RoleTrainer:
		return a.Attendance != nil &&
			a.Attendance.Enrollment != nil &&
			a.Attendance.Enrollment.Course != nil &&
			a.Attendance.Enrollment.Course.TrainerID == caller.UserID
	}
	return false
}
