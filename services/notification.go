package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/uday169/split-it-app-backend/models"
)

// Mailer delivers one HTML email.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, html string) error
}

// Pusher delivers one push notification to a device token.
type Pusher interface {
	Push(ctx context.Context, token, title, body string, data map[string]string) error
}

// ============================================================
// EMAIL via SendGrid
// ============================================================

type SendGridMailer struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridMailer(apiKey, fromEmail, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

func (m *SendGridMailer) Send(ctx context.Context, toEmail, toName, subject, html string) error {
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail(toName, toEmail), "", html)
	resp, err := m.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// ============================================================
// PUSH via Firebase Cloud Messaging
// ============================================================

type FCMPusher struct {
	client *messaging.Client
}

// NewFCMPusher builds a messaging client from a service account file.
func NewFCMPusher(ctx context.Context, credentialsFile string) (*FCMPusher, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return &FCMPusher{client: client}, nil
}

func (p *FCMPusher) Push(ctx context.Context, token, title, body string, data map[string]string) error {
	_, err := p.client.Send(ctx, &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{Sound: "default"},
		},
	})
	return err
}

// logMailer and logPusher stand in when no provider is configured.
type logMailer struct{ log *zap.Logger }

func (m logMailer) Send(_ context.Context, toEmail, _, subject, _ string) error {
	m.log.Info("email provider not configured, skipping", zap.String("to", toEmail), zap.String("subject", subject))
	return nil
}

type logPusher struct{ log *zap.Logger }

func (p logPusher) Push(_ context.Context, _, title, _ string, _ map[string]string) error {
	p.log.Debug("push provider not configured, skipping", zap.String("title", title))
	return nil
}

func NewLogMailer(log *zap.Logger) Mailer { return logMailer{log: log} }
func NewLogPusher(log *zap.Logger) Pusher { return logPusher{log: log} }

// ============================================================
// NOTIFICATION SERVICE
// ============================================================

// NotificationService fans events out to email and push. Event methods
// return immediately; delivery happens in the background and failures are
// only logged.
type NotificationService struct {
	users   UserRepository
	mailer  Mailer
	pusher  Pusher
	appName string
	appURL  string
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewNotificationService(users UserRepository, mailer Mailer, pusher Pusher, appName, appURL string, log *zap.Logger) *NotificationService {
	return &NotificationService{
		users:   users,
		mailer:  mailer,
		pusher:  pusher,
		appName: appName,
		appURL:  appURL,
		log:     log.Named("notify"),
		timeout: 15 * time.Second,
	}
}

// Wait blocks until every queued delivery has finished.
func (ns *NotificationService) Wait() {
	ns.wg.Wait()
}

func (ns *NotificationService) dispatch(event string, fn func(ctx context.Context)) {
	ns.wg.Add(1)
	go func() {
		defer ns.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				ns.log.Error("notification panicked", zap.String("event", event), zap.Any("panic", r))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), ns.timeout)
		defer cancel()
		fn(ctx)
	}()
}

func (ns *NotificationService) sendPush(ctx context.Context, user models.User, title, body string, data map[string]string) {
	if user.FCMToken == "" {
		return
	}
	if err := ns.pusher.Push(ctx, user.FCMToken, title, body, data); err != nil {
		ns.log.Warn("push failed", zap.String("user_id", user.ID.String()), zap.Error(err))
	}
}

func (ns *NotificationService) sendEmail(ctx context.Context, toEmail, toName, subject, html string) {
	if err := ns.mailer.Send(ctx, toEmail, toName, subject, html); err != nil {
		ns.log.Warn("email failed", zap.String("to", toEmail), zap.Error(err))
	}
}

// SendOTP delivers a login code synchronously; the caller needs to know
// whether it went out.
func (ns *NotificationService) SendOTP(ctx context.Context, email, code string, ttl time.Duration) error {
	html := render(otpTemplate, map[string]interface{}{
		"AppName": ns.appName,
		"Code":    code,
		"Minutes": int(ttl.Minutes()),
	})
	return ns.mailer.Send(ctx, email, "", fmt.Sprintf("Your %s login code", ns.appName), html)
}

// NotifyExpenseAdded tells every participant except the payer what they owe.
func (ns *NotificationService) NotifyExpenseAdded(expense models.Expense, payer models.User, group models.Group) {
	ns.dispatch("expense_added", func(ctx context.Context) {
		ids := make([]uuid.UUID, 0, len(expense.Splits))
		for _, s := range expense.Splits {
			ids = append(ids, s.UserID)
		}
		users, err := ns.users.GetUsers(ctx, ids)
		if err != nil {
			ns.log.Warn("load participants", zap.Error(err))
			return
		}

		for _, split := range expense.Splits {
			if split.UserID == expense.PaidBy {
				continue
			}
			user, ok := users[split.UserID]
			if !ok {
				continue
			}

			title := fmt.Sprintf("%s added an expense", displayName(payer))
			body := fmt.Sprintf("You owe %s %s for \"%s\" in %s", expense.Currency, split.OwedAmount, expense.Description, group.Name)
			ns.sendPush(ctx, user, title, body, map[string]string{
				"type":       models.ActivityExpenseAdded,
				"expense_id": expense.ID.String(),
				"group_id":   expense.GroupID.String(),
			})

			html := render(expenseTemplate, map[string]interface{}{
				"AppName":     ns.appName,
				"PayerName":   displayName(payer),
				"UserName":    displayName(user),
				"Description": expense.Description,
				"TotalAmount": expense.Amount.String(),
				"OwedAmount":  split.OwedAmount.String(),
				"Currency":    expense.Currency,
				"GroupName":   group.Name,
			})
			ns.sendEmail(ctx, user.Email, user.Name, fmt.Sprintf("%s added \"%s\" in %s", displayName(payer), expense.Description, group.Name), html)
		}
	})
}

// NotifySettlement tells the counterparty of actor about a recorded or
// confirmed payment.
func (ns *NotificationService) NotifySettlement(settlement models.Settlement, actor, other models.User, group models.Group, confirmed bool) {
	ns.dispatch("settlement", func(ctx context.Context) {
		headline := "Payment recorded"
		title := fmt.Sprintf("%s recorded a payment", displayName(actor))
		eventType := models.ActivitySettlementCreated
		if confirmed {
			headline = "Payment confirmed"
			title = fmt.Sprintf("%s confirmed a payment", displayName(actor))
			eventType = models.ActivitySettlementConfirmed
		}
		body := fmt.Sprintf("%s %s from %s to %s in %s", settlement.Currency, settlement.Amount,
			displayName(settlement.Payer), displayName(settlement.Payee), group.Name)

		ns.sendPush(ctx, other, title, body, map[string]string{
			"type":          eventType,
			"settlement_id": settlement.ID.String(),
			"group_id":      settlement.GroupID.String(),
		})

		html := render(settlementTemplate, map[string]interface{}{
			"AppName":   ns.appName,
			"Headline":  headline,
			"UserName":  displayName(other),
			"ActorName": displayName(actor),
			"PayerName": displayName(settlement.Payer),
			"PayeeName": displayName(settlement.Payee),
			"Amount":    settlement.Amount.String(),
			"Currency":  settlement.Currency,
			"GroupName": group.Name,
			"Confirmed": confirmed,
		})
		ns.sendEmail(ctx, other.Email, other.Name, fmt.Sprintf("%s in %s", title, group.Name), html)
	})
}

// NotifyMemberAdded welcomes a registered user to a group.
func (ns *NotificationService) NotifyMemberAdded(group models.Group, adder, newMember models.User) {
	ns.dispatch("member_added", func(ctx context.Context) {
		title := fmt.Sprintf("You were added to \"%s\"", group.Name)
		body := fmt.Sprintf("%s added you to the group \"%s\"", displayName(adder), group.Name)
		ns.sendPush(ctx, newMember, title, body, map[string]string{
			"type":     models.ActivityMemberJoined,
			"group_id": group.ID.String(),
		})

		html := render(memberAddedTemplate, map[string]interface{}{
			"AppName":    ns.appName,
			"AdderName":  displayName(adder),
			"MemberName": displayName(newMember),
			"GroupName":  group.Name,
		})
		ns.sendEmail(ctx, newMember.Email, newMember.Name, title, html)
	})
}

// NotifyInvitation emails someone who has no account yet.
func (ns *NotificationService) NotifyInvitation(email, inviterName, groupName string) {
	ns.dispatch("invitation", func(ctx context.Context) {
		subject := fmt.Sprintf("%s invited you to join \"%s\" on %s", inviterName, groupName, ns.appName)
		html := render(invitationTemplate, map[string]interface{}{
			"AppName":     ns.appName,
			"InviterName": inviterName,
			"GroupName":   groupName,
			"AppURL":      ns.appURL,
		})
		ns.sendEmail(ctx, email, "", subject, html)
	})
}

// ============================================================
// EMAIL TEMPLATES
// ============================================================

const emailLayout = `{{define "layout"}}<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px; background-color: #f5f5f5;">
	<div style="background: white; border-radius: 12px; padding: 32px; box-shadow: 0 2px 8px rgba(0,0,0,0.1);">
		{{template "content" .}}
		<p style="color: #999; font-size: 12px; margin-top: 24px;">{{.AppName}}</p>
	</div>
</body>
</html>{{end}}`

var (
	otpTemplate = mustTemplate(`{{define "content"}}
		<h2 style="color: #1DB954; margin-top: 0;">Your login code</h2>
		<p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">{{.Code}}</p>
		<p>The code expires in {{.Minutes}} minutes. If you did not ask for it, ignore this email.</p>
	{{end}}`)

	expenseTemplate = mustTemplate(`{{define "content"}}
		<h2 style="color: #1DB954; margin-top: 0;">New Expense Added</h2>
		<p>Hi <strong>{{.UserName}}</strong>,</p>
		<p><strong>{{.PayerName}}</strong> added a new expense in <strong>{{.GroupName}}</strong>:</p>
		<div style="background: #f8f9fa; border-radius: 8px; padding: 16px; margin: 16px 0;">
			<p style="margin: 4px 0; font-size: 18px;"><strong>{{.Description}}</strong></p>
			<p style="margin: 4px 0; color: #666;">Total: {{.Currency}} {{.TotalAmount}}</p>
			<p style="margin: 4px 0; color: #e53e3e; font-size: 18px;"><strong>Your share: {{.Currency}} {{.OwedAmount}}</strong></p>
		</div>
	{{end}}`)

	settlementTemplate = mustTemplate(`{{define "content"}}
		<h2 style="color: #1DB954; margin-top: 0;">{{.Headline}}</h2>
		<p>Hi <strong>{{.UserName}}</strong>,</p>
		<p><strong>{{.ActorName}}</strong> {{if .Confirmed}}confirmed{{else}}recorded{{end}} a payment of
		<strong>{{.Currency}} {{.Amount}}</strong> from {{.PayerName}} to {{.PayeeName}} in <strong>{{.GroupName}}</strong>.</p>
		{{if not .Confirmed}}<p>Open the app to confirm it.</p>{{else}}<p>Check the app to see your updated balances.</p>{{end}}
	{{end}}`)

	memberAddedTemplate = mustTemplate(`{{define "content"}}
		<h2 style="color: #1DB954; margin-top: 0;">You've been added to a group!</h2>
		<p>Hi <strong>{{.MemberName}}</strong>,</p>
		<p><strong>{{.AdderName}}</strong> added you to the group <strong>"{{.GroupName}}"</strong>.</p>
		<p>Open the app to start splitting expenses with your group!</p>
	{{end}}`)

	invitationTemplate = mustTemplate(`{{define "content"}}
		<h2 style="color: #1DB954; margin-top: 0;">You're invited!</h2>
		<p><strong>{{.InviterName}}</strong> invited you to join <strong>"{{.GroupName}}"</strong> on {{.AppName}}.</p>
		<p>{{.AppName}} makes it easy to split expenses with friends, roommates, and groups.</p>
		<div style="margin: 24px 0;">
			<a href="{{.AppURL}}" style="background: #1DB954; color: white; padding: 12px 32px; border-radius: 8px; text-decoration: none; font-weight: bold;">Join Now</a>
		</div>
	{{end}}`)
)

func mustTemplate(content string) *template.Template {
	return template.Must(template.Must(template.New("layout").Parse(emailLayout)).Parse(content))
}

func render(t *template.Template, data map[string]interface{}) string {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return ""
	}
	return buf.String()
}
