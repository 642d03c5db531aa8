// internal/notifications/notifier.go

// Package notifications dispatches applicant and admin messages over
// SES email and SNS SMS. Delivery is best effort; callers treat
// failures as non-fatal and never block a submission or transition on
// them.
package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	commonaws "grant-backend/internal/common/aws"
	"grant-backend/internal/common/config"
	apperrors "grant-backend/internal/common/errors"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/models"
)

const (
	TypeSubmissionConfirmation = "submission-confirmation"
	TypeAdminNewApplication    = "admin-new-application"
	TypeStatusChanged          = "status-changed"
)

const (
	StatusSent     = "SENT"
	StatusFailed   = "FAILED"
	StatusDisabled = "DISABLED"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Result describes one dispatch attempt.
type Result struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"`
	SentAt         string `json:"sentAt"`
}

type Notifier struct {
	config    config.NotificationConfig
	logger    logger.Logger
	sesClient SESService
	snsClient SNSService
	templates map[string]map[string]string
}

// NewNotifier builds SES and SNS clients from the default AWS credential
// chain.
func NewNotifier(ctx context.Context, cfg config.NotificationConfig, log logger.Logger) (*Notifier, error) {
	sesClient, err := commonaws.NewSESClient(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("init SES client: %w", err)
	}
	snsClient, err := commonaws.NewSNSClient(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("init SNS client: %w", err)
	}
	return NewNotifierWithClients(cfg, sesClient, snsClient, log), nil
}

func NewNotifierWithClients(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "notifier"}),
		sesClient: sesClient,
		snsClient: snsClient,
		templates: defaultTemplates(),
	}
}

// SendSubmissionConfirmation emails the applicant that their submission
// was received.
func (n *Notifier) SendSubmissionConfirmation(ctx context.Context, rec *models.ApplicationRecord) *Result {
	return n.dispatch(ctx, TypeSubmissionConfirmation, rec.PersonalInfo.Email, rec.PersonalInfo.PhoneNumber, false, templateData(rec))
}

// SendAdminAlert notifies the configured admin address about a new
// submission.
func (n *Notifier) SendAdminAlert(ctx context.Context, rec *models.ApplicationRecord) *Result {
	return n.dispatch(ctx, TypeAdminNewApplication, n.config.Email.AdminEmail, "", false, templateData(rec))
}

// SendStatusChange informs the applicant of a status transition. SMS is
// attempted in addition to email for final decisions.
func (n *Notifier) SendStatusChange(ctx context.Context, rec *models.ApplicationRecord) *Result {
	final := rec.Status == models.StatusApproved || rec.Status == models.StatusRejected
	return n.dispatch(ctx, TypeStatusChanged, rec.PersonalInfo.Email, rec.PersonalInfo.PhoneNumber, final, templateData(rec))
}

func templateData(rec *models.ApplicationRecord) map[string]interface{} {
	return map[string]interface{}{
		"applicationId": rec.ID,
		"firstName":     rec.PersonalInfo.FirstName,
		"status":        string(rec.Status),
		"fundingType":   rec.FundingInfo.FundingType,
	}
}

func (n *Notifier) dispatch(ctx context.Context, notificationType, email, phone string, withSMS bool, data map[string]interface{}) *Result {
	result := &Result{
		NotificationID: uuid.New().String(),
		SentAt:         time.Now().UTC().Format(time.RFC3339),
		Status:         StatusDisabled,
	}

	template, exists := n.templates[notificationType]
	if !exists {
		n.logger.Error("template not found", map[string]interface{}{"type": notificationType})
		result.Status = StatusFailed
		return result
	}

	subject := renderTemplate(template["subject"], data)
	body := renderTemplate(template["body"], data)

	emailSent := false
	smsSent := false

	if n.config.Email.Enabled && email != "" {
		if err := n.sendEmail(ctx, email, subject, body); err != nil {
			n.logger.WithError(apperrors.NewNotificationSendFailedError(notificationType, err)).
				Error("email send failed", map[string]interface{}{"type": notificationType})
			result.Status = StatusFailed
			return result
		}
		emailSent = true
	}

	if n.config.SMS.Enabled && withSMS && phone != "" {
		if err := n.sendSMS(ctx, phone, body); err != nil {
			n.logger.WithError(apperrors.NewNotificationSendFailedError(notificationType, err)).
				Error("SMS send failed", map[string]interface{}{"type": notificationType})
			result.Status = StatusFailed
			return result
		}
		smsSent = true
	}

	if emailSent || smsSent {
		result.Status = StatusSent
	}
	return result
}

func (n *Notifier) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := n.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
				Html: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.config.Email.FromEmail),
	})
	return err
}

func (n *Notifier) sendSMS(ctx context.Context, to, message string) error {
	_, err := n.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

// Simplified template rendering with placeholder removal for missing values
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	// Remaining placeholders had no value; strip them.
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

func defaultTemplates() map[string]map[string]string {
	return map[string]map[string]string{
		TypeSubmissionConfirmation: {
			"subject": "Your funding application was received",
			"body":    "Hello {{firstName}}, your application {{applicationId}} has been submitted and is pending review.",
		},
		TypeAdminNewApplication: {
			"subject": "New funding application submitted",
			"body":    "A new {{fundingType}} application {{applicationId}} is awaiting review.",
		},
		TypeStatusChanged: {
			"subject": "Your application status changed",
			"body":    "Hello {{firstName}}, your application {{applicationId}} is now {{status}}.",
		},
	}
}
