// Package service provides the operator notification pipeline: target
// resolution, ledger fan-out, realtime push, the urgent email channel, and
// recipient acknowledgements.
package service

import (
	"context"

	"tradelink_backend/internal/notification/delivery"
	"tradelink_backend/internal/notification/repository"
	userrepo "tradelink_backend/internal/users/repository"
	"tradelink_backend/platform/apperr"
	"tradelink_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the notification persistence surface the pipeline drives.
type Store interface {
	Create(ctx context.Context, params repository.CreateParams) (repository.Notification, error)
	GetByID(ctx context.Context, id uuid.UUID) (repository.Notification, error)
	List(ctx context.Context, limit, offset int) ([]repository.Notification, int, error)
	MarkSending(ctx context.Context, id uuid.UUID) error
	SetTotalTargets(ctx context.Context, id uuid.UUID, total int) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	IncrementDelivered(ctx context.Context, id uuid.UUID) error
	IncrementRead(ctx context.Context, id uuid.UUID) error
	IncrementFailed(ctx context.Context, id uuid.UUID) error
}

// Ledger is the per-recipient delivery record surface.
type Ledger interface {
	FanOut(ctx context.Context, notificationID uuid.UUID, targets []uuid.UUID) (int, error)
	CountTargets(ctx context.Context, notificationID uuid.UUID) (int, error)
	MarkDelivered(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, userID, notificationID uuid.UUID) (bool, error)
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]delivery.UserNotification, int, error)
}

// TargetResolver expands a notification into its recipient set.
type TargetResolver interface {
	ResolveTargets(ctx context.Context, n repository.Notification) ([]uuid.UUID, error)
}

// Broadcaster pushes a notification to a recipient's live connections.
type Broadcaster interface {
	PublishNotification(userID uuid.UUID, payload interface{})
}

// Emailer sends the urgent-priority email channel.
type Emailer interface {
	SendNotification(ctx context.Context, recipients []string, title, message string) error
}

// EmailDirectory resolves recipient IDs to addresses.
type EmailDirectory interface {
	EmailRecipients(ctx context.Context, ids []uuid.UUID) ([]userrepo.EmailRecipient, error)
}

// Service runs the notification pipeline.
type Service struct {
	store       Store
	ledger      Ledger
	resolver    TargetResolver
	emails      EmailDirectory
	emailer     Emailer
	broadcaster Broadcaster
	log         *logger.Logger
}

// NewService creates the notification service. The broadcaster is attached
// later via SetBroadcaster; the scheduler process runs without one.
func NewService(store Store, ledger Ledger, resolver TargetResolver, emails EmailDirectory, emailer Emailer, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		ledger:   ledger,
		resolver: resolver,
		emails:   emails,
		emailer:  emailer,
		log:      log,
	}
}

// SetBroadcaster attaches the realtime push channel.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// Create persists a notification. Scheduled ones wait for the dispatcher;
// everything else goes through the fan-out pipeline immediately.
func (s *Service) Create(ctx context.Context, params repository.CreateParams) (repository.Notification, error) {
	n, err := s.store.Create(ctx, params)
	if err != nil {
		return repository.Notification{}, err
	}

	if n.ScheduledFor == nil {
		if err := s.Deliver(ctx, n.ID); err != nil {
			return repository.Notification{}, err
		}
		return s.store.GetByID(ctx, n.ID)
	}

	return n, nil
}

// Deliver runs the fan-out pipeline: resolve targets once, write the ledger,
// push to live connections, send the urgent email channel, then mark sent.
// The ledger's uniqueness guarantee makes the whole pipeline safe to re-run
// after a crash. A failed notification never re-enters the pipeline; an
// operator has to reschedule it.
func (s *Service) Deliver(ctx context.Context, id uuid.UUID) error {
	n, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	switch n.Status {
	case repository.StatusSent:
		return nil
	case repository.StatusFailed:
		return apperr.Conflict("notification previously failed; reschedule it to send again")
	}

	if err := s.store.MarkSending(ctx, id); err != nil {
		return err
	}

	targets, err := s.resolver.ResolveTargets(ctx, n)
	if err != nil {
		s.fail(ctx, id, err)
		return err
	}

	created, err := s.ledger.FanOut(ctx, id, targets)
	if err != nil {
		s.fail(ctx, id, err)
		return apperr.Wrap(apperr.KindInternal, "notification fan-out failed", err)
	}

	total, err := s.ledger.CountTargets(ctx, id)
	if err != nil {
		s.fail(ctx, id, err)
		return apperr.Wrap(apperr.KindInternal, "notification fan-out failed", err)
	}
	if err := s.store.SetTotalTargets(ctx, id, total); err != nil {
		s.fail(ctx, id, err)
		return apperr.Wrap(apperr.KindInternal, "notification fan-out failed", err)
	}

	if s.broadcaster != nil {
		for _, userID := range targets {
			s.broadcaster.PublishNotification(userID, n)
		}
	}

	if n.Priority == repository.PriorityUrgent && s.emailer != nil {
		s.sendUrgentEmails(ctx, n, targets)
	}

	if err := s.store.MarkSent(ctx, id); err != nil {
		return err
	}

	if s.log != nil {
		s.log.Info("notification sent",
			"notificationId", id, "targets", total, "newRecords", created)
	}
	return nil
}

// ListAll returns notifications with delivery stats for operators.
func (s *Service) ListAll(ctx context.Context, page, limit int) ([]repository.Notification, int, error) {
	return s.store.List(ctx, limit, (page-1)*limit)
}

// ListForUser returns the recipient's own delivery records.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]delivery.UserNotification, int, error) {
	return s.ledger.ListForUser(ctx, userID, limit, (page-1)*limit)
}

// AckDelivered records a recipient acknowledgement. The aggregate counter
// moves only when the record actually transitioned, so double-acks are
// harmless.
func (s *Service) AckDelivered(ctx context.Context, userID, notificationID uuid.UUID) error {
	transitioned, err := s.ledger.MarkDelivered(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if transitioned {
		return s.store.IncrementDelivered(ctx, notificationID)
	}
	return nil
}

// AckRead records a read acknowledgement under the same guard.
func (s *Service) AckRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	transitioned, err := s.ledger.MarkRead(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	if transitioned {
		return s.store.IncrementRead(ctx, notificationID)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, id uuid.UUID, cause error) {
	if s.log != nil {
		s.log.Error("notification fan-out failed", "notificationId", id, "error", cause)
	}
	if err := s.store.MarkFailed(ctx, id); err != nil && s.log != nil {
		s.log.Error("marking notification failed errored", "notificationId", id, "error", err)
	}
}

// sendUrgentEmails delivers the email channel one recipient at a time. A
// failed send marks that recipient's ledger record failed and bumps the
// aggregate counter; the other recipients are unaffected.
func (s *Service) sendUrgentEmails(ctx context.Context, n repository.Notification, targets []uuid.UUID) {
	recipients, err := s.emails.EmailRecipients(ctx, targets)
	if err != nil {
		if s.log != nil {
			s.log.Error("urgent email address resolution failed", "notificationId", n.ID, "error", err)
		}
		return
	}
	for _, rec := range recipients {
		if err := s.emailer.SendNotification(ctx, []string{rec.Email}, n.Title, n.Message); err != nil {
			if s.log != nil {
				s.log.Error("urgent email send failed",
					"notificationId", n.ID, "userId", rec.UserID, "error", err)
			}
			s.failRecord(ctx, rec.UserID, n.ID)
		}
	}
}

func (s *Service) failRecord(ctx context.Context, userID, notificationID uuid.UUID) {
	transitioned, err := s.ledger.MarkFailed(ctx, userID, notificationID)
	if err != nil {
		if s.log != nil {
			s.log.Error("marking delivery record failed errored",
				"notificationId", notificationID, "userId", userID, "error", err)
		}
		return
	}
	if transitioned {
		if err := s.store.IncrementFailed(ctx, notificationID); err != nil && s.log != nil {
			s.log.Error("failed counter increment errored", "notificationId", notificationID, "error", err)
		}
	}
}
