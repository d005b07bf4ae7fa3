package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/pkg/config"
	"github.com/yegara-dev/community-api/pkg/jobs"
)

type mailerStub struct {
	sent []string
	err  error
}

func (m *mailerStub) Send(to, subject, htmlBody string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

type publisherStub struct {
	published []string
}

func (p *publisherStub) Publish(ctx context.Context, userID string, event models.PushEvent) error {
	p.published = append(p.published, userID)
	return nil
}

func newNotificationServiceForTest(t *testing.T, mailer *mailerStub, publisher *publisherStub) *NotificationService {
	t.Helper()
	return NewNotificationService(mailer, publisher, config.NotificationsConfig{}, nil, zap.NewNop())
}

func TestNotificationServiceHandleDeliversMailAndPush(t *testing.T) {
	mailer := &mailerStub{}
	publisher := &publisherStub{}
	svc := newNotificationServiceForTest(t, mailer, publisher)

	intent := models.NotificationIntent{
		Recipients: []models.Recipient{
			{UserID: "u1", Email: "a@example.com"},
			{UserID: "u2", Email: "b@example.com"},
		},
		Subject:  "Hello",
		HTMLBody: "<p>Hi</p>",
		Push:     &models.PushEvent{Type: "announcement", Message: "Hi"},
	}
	err := svc.handle(context.Background(), jobs.Job{ID: "job-1", Type: "notification", Payload: intent})
	require.NoError(t, err)

	assert.Equal(t, []string{"a@example.com", "b@example.com"}, mailer.sent)
	assert.Equal(t, []string{"u1", "u2"}, publisher.published)
}

func TestNotificationServiceHandleSkipsMailWithoutSubject(t *testing.T) {
	mailer := &mailerStub{}
	publisher := &publisherStub{}
	svc := newNotificationServiceForTest(t, mailer, publisher)

	intent := models.NotificationIntent{
		Recipients: []models.Recipient{{UserID: "u1", Email: "a@example.com"}},
		Push:       &models.PushEvent{Type: "report_status", Message: "Resolved"},
	}
	err := svc.handle(context.Background(), jobs.Job{ID: "job-1", Type: "notification", Payload: intent})
	require.NoError(t, err)

	assert.Empty(t, mailer.sent)
	assert.Equal(t, []string{"u1"}, publisher.published)
}

func TestNotificationServiceHandleTotalFailure(t *testing.T) {
	mailer := &mailerStub{err: errors.New("smtp down")}
	svc := newNotificationServiceForTest(t, mailer, &publisherStub{})

	intent := models.NotificationIntent{
		Recipients: []models.Recipient{
			{Email: "a@example.com"},
			{Email: "b@example.com"},
		},
		Subject:  "Hello",
		HTMLBody: "<p>Hi</p>",
	}
	err := svc.handle(context.Background(), jobs.Job{ID: "job-1", Type: "notification", Payload: intent})
	assert.Equal(t, errAllRecipientsFailed, err)
}

func TestNotificationServiceHandleIgnoresUnknownPayload(t *testing.T) {
	svc := newNotificationServiceForTest(t, &mailerStub{}, &publisherStub{})

	err := svc.handle(context.Background(), jobs.Job{ID: "job-1", Type: "notification", Payload: "garbage"})
	assert.NoError(t, err)
}
