// internal/notifications/notifier_test.go
package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"grant-backend/internal/common/config"
	"grant-backend/internal/common/logger"
	"grant-backend/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type mockSES struct {
	calls []*ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &ses.SendEmailOutput{}, nil
}

type mockSNS struct {
	calls []*sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sns.PublishOutput{}, nil
}

func testNotificationConfig(emailEnabled, smsEnabled bool) config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.Email.Enabled = emailEnabled
	cfg.Email.FromEmail = "noreply@example.com"
	cfg.Email.AdminEmail = "admin@example.com"
	cfg.SMS.Enabled = smsEnabled
	return cfg
}

func testRecord(status models.Status) *models.ApplicationRecord {
	return &models.ApplicationRecord{
		ID:     "app-1",
		Status: status,
		PersonalInfo: models.PersonalInfo{
			FirstName:   "Jane",
			Email:       "jane.doe@example.com",
			PhoneNumber: "+15551234567",
		},
		FundingInfo: models.FundingInfo{FundingType: "business"},
	}
}

func newTestNotifier(t *testing.T, cfg config.NotificationConfig, sesMock SESService, snsMock SNSService) *Notifier {
	return NewNotifierWithClients(cfg, sesMock, snsMock, logger.NewZapAdapter(zaptest.NewLogger(t)))
}

// ==========================
// Dispatch Tests
// ==========================

func TestNotifier_SubmissionConfirmation_SendsEmail(t *testing.T) {
	sesMock := &mockSES{}
	notifier := newTestNotifier(t, testNotificationConfig(true, false), sesMock, &mockSNS{})

	result := notifier.SendSubmissionConfirmation(context.Background(), testRecord(models.StatusPending))

	assert.Equal(t, StatusSent, result.Status)
	require.Len(t, sesMock.calls, 1)
	assert.Equal(t, "jane.doe@example.com", sesMock.calls[0].Destination.ToAddresses[0])
	assert.Contains(t, *sesMock.calls[0].Message.Body.Text.Data, "app-1")
	assert.Contains(t, *sesMock.calls[0].Message.Body.Text.Data, "Jane")
}

func TestNotifier_AdminAlert_GoesToAdminAddress(t *testing.T) {
	sesMock := &mockSES{}
	notifier := newTestNotifier(t, testNotificationConfig(true, false), sesMock, &mockSNS{})

	result := notifier.SendAdminAlert(context.Background(), testRecord(models.StatusPending))

	assert.Equal(t, StatusSent, result.Status)
	require.Len(t, sesMock.calls, 1)
	assert.Equal(t, "admin@example.com", sesMock.calls[0].Destination.ToAddresses[0])
}

func TestNotifier_StatusChange_FinalDecisionAlsoSendsSMS(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{}
	notifier := newTestNotifier(t, testNotificationConfig(true, true), sesMock, snsMock)

	result := notifier.SendStatusChange(context.Background(), testRecord(models.StatusApproved))

	assert.Equal(t, StatusSent, result.Status)
	assert.Len(t, sesMock.calls, 1)
	require.Len(t, snsMock.calls, 1)
	assert.Equal(t, "+15551234567", *snsMock.calls[0].PhoneNumber)
	assert.Contains(t, *snsMock.calls[0].Message, "APPROVED")
}

func TestNotifier_StatusChange_IntermediateStatusSkipsSMS(t *testing.T) {
	snsMock := &mockSNS{}
	notifier := newTestNotifier(t, testNotificationConfig(true, true), &mockSES{}, snsMock)

	notifier.SendStatusChange(context.Background(), testRecord(models.StatusUnderReview))

	assert.Empty(t, snsMock.calls)
}

func TestNotifier_DisabledChannelsReportDisabled(t *testing.T) {
	sesMock := &mockSES{}
	notifier := newTestNotifier(t, testNotificationConfig(false, false), sesMock, &mockSNS{})

	result := notifier.SendSubmissionConfirmation(context.Background(), testRecord(models.StatusPending))

	assert.Equal(t, StatusDisabled, result.Status)
	assert.Empty(t, sesMock.calls)
}

func TestNotifier_SendFailureReportsFailedWithoutError(t *testing.T) {
	sesMock := &mockSES{err: errors.New("throttled")}
	notifier := newTestNotifier(t, testNotificationConfig(true, false), sesMock, &mockSNS{})

	result := notifier.SendSubmissionConfirmation(context.Background(), testRecord(models.StatusPending))

	assert.Equal(t, StatusFailed, result.Status)
	assert.NotEmpty(t, result.NotificationID)
}

// ==========================
// Template Tests
// ==========================

func TestRenderTemplate_StripsUnknownPlaceholders(t *testing.T) {
	out := renderTemplate("Hi {{firstName}}, ref {{missing}} done", map[string]interface{}{
		"firstName": "Jane",
	})
	assert.Equal(t, "Hi Jane, ref  done", out)
}
