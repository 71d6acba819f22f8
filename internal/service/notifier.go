package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"skillbridge/backend/config"
	"skillbridge/backend/internal/model"
	"skillbridge/backend/internal/repository"
)

// ════════════════════════════════════════════════════════════
// Mailer：邮件投递
// ════════════════════════════════════════════════════════════

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, toName, toAddress, subject, body string) error
}

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type sendgridMailer struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
}

type logMailer struct {
	logger *zap.Logger
}

// NewMailer 按配置创建 Mailer：配置了 SendGrid Key 时真实投递，否则仅记录日志
func NewMailer(cfg *config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.SendGridAPIKey == "" {
		logger.Info("未配置 SendGrid，邮件仅写入日志")
		return &logMailer{logger: logger}
	}
	return &sendgridMailer{
		key:        cfg.SendGridAPIKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: cfg.SubjectPrefix,
	}
}

func (m *sendgridMailer) Send(ctx context.Context, toName, toAddress, subject, body string) error {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + subject
	p.AddTos(sgmail.NewEmail(toName, toAddress))

	msg := sgmail.NewV3Mail()
	msg.SetFrom(m.from)
	msg.AddPersonalizations(p)
	msg.AddContent(sgmail.NewContent("text/plain", body))

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(msg)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("发送邮件失败: status=%d body=%s", res.StatusCode, res.Body)
	}
	return nil
}

func (m *logMailer) Send(_ context.Context, toName, toAddress, subject, body string) error {
	m.logger.Info("邮件（未投递）",
		zap.String("to", toAddress),
		zap.String("to_name", toName),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// ════════════════════════════════════════════════════════════
// Notifier：申诉事件通知（站内通知 + 邮件）
// ════════════════════════════════════════════════════════════

// Notifier 申诉事件通知接口
// 在事务提交后调用，投递失败只记录日志，不影响业务结果
type Notifier interface {
	// AppealSubmitted 通知授课培训师有新申诉
	AppealSubmitted(ctx context.Context, appeal *model.AttendanceAppeal)
	// AppealDecided 通知候选人申诉已审核或改判
	AppealDecided(ctx context.Context, appeal *model.AttendanceAppeal)
	// AppealReminder 提醒授课培训师处理积压申诉
	AppealReminder(ctx context.Context, appeal *model.AttendanceAppeal) error
}

type notifier struct {
	repo   *repository.Repository
	mailer Mailer
	logger *zap.Logger
}

// NewNotifier 创建 Notifier 实例
func NewNotifier(repo *repository.Repository, mailer Mailer, logger *zap.Logger) Notifier {
	return &notifier{repo: repo, mailer: mailer, logger: logger}
}

func (n *notifier) AppealSubmitted(ctx context.Context, appeal *model.AttendanceAppeal) {
	trainerID := appealTrainerID(appeal)
	if trainerID == "" {
		n.logger.Warn("申诉缺少课程信息，跳过通知", zap.String("appeal_id", appeal.AppealID))
		return
	}
	title := "收到新的考勤申诉"
	content := fmt.Sprintf("%s 的考勤申诉待审核：%s", appealSessionLabel(appeal), appeal.Reason)
	if err := n.notify(ctx, trainerID, model.NotificationAppealSubmitted, title, content, appeal.AppealID); err != nil {
		n.logger.Warn("发送申诉提交通知失败", zap.String("appeal_id", appeal.AppealID), zap.Error(err))
	}
}

func (n *notifier) AppealDecided(ctx context.Context, appeal *model.AttendanceAppeal) {
	title := "考勤申诉已处理"
	content := fmt.Sprintf("%s 的考勤申诉结果：%s", appealSessionLabel(appeal), appeal.Status)
	if appeal.ReviewerComments != "" {
		content += "，意见：" + appeal.ReviewerComments
	}
	if err := n.notify(ctx, appeal.CandidateID, model.NotificationAppealDecided, title, content, appeal.AppealID); err != nil {
		n.logger.Warn("发送申诉结果通知失败", zap.String("appeal_id", appeal.AppealID), zap.Error(err))
	}
}

func (n *notifier) AppealReminder(ctx context.Context, appeal *model.AttendanceAppeal) error {
	trainerID := appealTrainerID(appeal)
	if trainerID == "" {
		return fmt.Errorf("申诉 %s 缺少课程信息", appeal.AppealID)
	}
	title := "考勤申诉待处理提醒"
	content := fmt.Sprintf("%s 的考勤申诉自 %s 起仍待审核", appealSessionLabel(appeal), formatTime(appeal.CreatedAt))
	return n.notify(ctx, trainerID, model.NotificationAppealReminder, title, content, appeal.AppealID)
}

// notify 写站内通知并尝试发送邮件；站内通知失败返回错误，邮件失败只记录日志
func (n *notifier) notify(ctx context.Context, userID, typ, title, content, appealID string) error {
	relatedType := "attendance_appeal"
	row := &model.Notification{
		UserID:      userID,
		Type:        typ,
		Title:       title,
		Content:     content,
		RelatedType: &relatedType,
		RelatedID:   &appealID,
	}
	if err := n.repo.Notification.Create(ctx, row); err != nil {
		return err
	}

	if n.mailer == nil {
		return nil
	}
	user, err := n.repo.User.GetByID(ctx, userID)
	if err != nil {
		n.logger.Warn("查询通知收件人失败", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	if err := n.mailer.Send(ctx, user.Name, user.Email, title, content); err != nil {
		n.logger.Warn("邮件投递失败", zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func appealTrainerID(a *model.AttendanceAppeal) string {
	if a.Attendance == nil || a.Attendance.Enrollment == nil || a.Attendance.Enrollment.Course == nil {
		return ""
	}
	return a.Attendance.Enrollment.Course.TrainerID
}

func appealSessionLabel(a *model.AttendanceAppeal) string {
	rec := a.Attendance
	if rec == nil {
		return "考勤记录"
	}
	label := fmt.Sprintf("第 %d 次课（%s）", rec.SessionNumber, rec.SessionDate.Format(dateLayout))
	if rec.Enrollment != nil && rec.Enrollment.Course != nil {
		label = rec.Enrollment.Course.Title + " " + label
	}
	return label
}
