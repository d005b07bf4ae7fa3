package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yegara-dev/community-api/internal/models"
	"github.com/yegara-dev/community-api/internal/notify"
	"github.com/yegara-dev/community-api/pkg/config"
	"github.com/yegara-dev/community-api/pkg/jobs"
)

// NotificationService fans notification intents out to mail and realtime
// push. Delivery runs on a background worker pool: the mutation that emitted
// the intent never waits on, or fails because of, delivery.
type NotificationService struct {
	mailer    notify.Mailer
	publisher notify.Publisher
	queue     *jobs.Queue
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewNotificationService constructs the dispatcher with its worker queue.
// Call Start before dispatching and Stop on shutdown. metrics may be nil.
func NewNotificationService(mailer notify.Mailer, publisher notify.Publisher, cfg config.NotificationsConfig, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{
		mailer:    mailer,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
	s.queue = jobs.NewQueue("notifications", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Dispatch enqueues an intent for background delivery. Errors are logged and
// swallowed; notification failure never propagates to the caller.
func (s *NotificationService) Dispatch(intent models.NotificationIntent) {
	if len(intent.Recipients) == 0 {
		return
	}
	job := jobs.Job{
		ID:      uuid.NewString(),
		Type:    "notification",
		Payload: intent,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.Error(err))
	}
}

// handle delivers one intent. Per-recipient failures are logged and do not
// stop delivery to the remaining recipients; only a total failure (every
// recipient failed) is reported for retry.
func (s *NotificationService) handle(ctx context.Context, job jobs.Job) error {
	intent, ok := job.Payload.(models.NotificationIntent)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}

	var delivered, failed int
	for _, recipient := range intent.Recipients {
		if recipient.Email != "" && s.mailer != nil && intent.Subject != "" {
			if err := s.mailer.Send(recipient.Email, intent.Subject, intent.HTMLBody); err != nil {
				failed++
				s.metrics.RecordNotification(false)
				s.logger.Warn("mail delivery failed",
					zap.String("email", recipient.Email),
					zap.Error(err))
			} else {
				delivered++
				s.metrics.RecordNotification(true)
			}
		}
		if recipient.UserID != "" && s.publisher != nil && intent.Push != nil {
			if err := s.publisher.Publish(ctx, recipient.UserID, *intent.Push); err != nil {
				s.logger.Warn("push delivery failed",
					zap.String("user_id", recipient.UserID),
					zap.Error(err))
			}
		}
	}

	if delivered == 0 && failed > 0 {
		return errAllRecipientsFailed
	}
	return nil
}

var errAllRecipientsFailed = errors.New("all notification recipients failed")
