package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/ocms-api/internal/models"
	"github.com/noah-isme/ocms-api/pkg/jobs"
	"github.com/noah-isme/ocms-api/pkg/mailer"
)

const (
	NotificationQueueName = "notifications"

	notificationJobType = "email"
)

// NotificationConfig sizes the delivery queue.
type NotificationConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NotificationService delivers transactional email off the request path.
type NotificationService struct {
	sender mailer.Sender
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its queue. Call Start before
// enqueueing.
func NewNotificationService(sender mailer.Sender, cfg NotificationConfig, observer jobs.Observer, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sender == nil {
		sender = mailer.NewLogSender(logger)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	svc := &NotificationService{sender: sender, logger: logger}
	svc.queue = jobs.NewQueue(NotificationQueueName, svc.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: 128,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		Observer:   observer,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains in-flight deliveries.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Welcome greets a newly registered user.
func (s *NotificationService) Welcome(_ context.Context, user *models.User) {
	if user == nil {
		return
	}
	s.enqueue(mailer.Message{
		ToName:    user.FullName,
		ToAddress: user.Email,
		Subject:   "Welcome to OCMS",
		Text:      fmt.Sprintf("Hi %s,\n\nYour account is ready. Browse the catalog and enroll in your first course.", user.FullName),
	})
}

// CourseCompleted congratulates a student on finishing a course.
func (s *NotificationService) CourseCompleted(_ context.Context, student *models.User, courseTitle string) {
	if student == nil {
		return
	}
	s.enqueue(mailer.Message{
		ToName:    student.FullName,
		ToAddress: student.Email,
		Subject:   fmt.Sprintf("You completed %s", courseTitle),
		Text:      fmt.Sprintf("Congratulations %s!\n\nYou completed every lecture of %s. Your certificate is being prepared.", student.FullName, courseTitle),
	})
}

func (s *NotificationService) enqueue(msg mailer.Message) {
	if msg.ToAddress == "" {
		return
	}
	if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: notificationJobType, Payload: msg}); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("to", msg.ToAddress), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	msg, ok := job.Payload.(mailer.Message)
	if !ok {
		return fmt.Errorf("unexpected notification payload %T", job.Payload)
	}
	return s.sender.Send(ctx, msg)
}
