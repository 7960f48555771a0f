package service

import (
	"context"
	"testing"
	"time"

	"tradelink_backend/internal/notification/delivery"
	"tradelink_backend/internal/notification/repository"
	userrepo "tradelink_backend/internal/users/repository"
	"tradelink_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeStore struct {
	notifications map[uuid.UUID]*repository.Notification
}

func newFakeStore() *fakeStore {
	return &fakeStore{notifications: make(map[uuid.UUID]*repository.Notification)}
}

func (f *fakeStore) add(n repository.Notification) uuid.UUID {
	n.ID = uuid.New()
	if n.Status == "" {
		n.Status = repository.StatusDraft
	}
	if n.Priority == "" {
		n.Priority = repository.PriorityNormal
	}
	n.CreatedAt = time.Now()
	f.notifications[n.ID] = &n
	return n.ID
}

func (f *fakeStore) Create(_ context.Context, params repository.CreateParams) (repository.Notification, error) {
	status := repository.StatusDraft
	if params.ScheduledFor != nil {
		status = repository.StatusScheduled
	}
	id := f.add(repository.Notification{
		Title: params.Title, Message: params.Message, Type: params.Type,
		TargetCountry: params.TargetCountry, TargetUsers: params.TargetUsers,
		TargetGroups: params.TargetGroups, AllUsers: params.AllUsers,
		Priority: params.Priority, Category: params.Category,
		ScheduledFor: params.ScheduledFor, Status: status, CreatedBy: params.CreatedBy,
	})
	return *f.notifications[id], nil
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Notification, error) {
	n, ok := f.notifications[id]
	if !ok {
		return repository.Notification{}, apperr.NotFound("notification not found")
	}
	return *n, nil
}

func (f *fakeStore) List(_ context.Context, limit, offset int) ([]repository.Notification, int, error) {
	out := make([]repository.Notification, 0, len(f.notifications))
	for _, n := range f.notifications {
		out = append(out, *n)
	}
	return out, len(out), nil
}

func (f *fakeStore) MarkSending(_ context.Context, id uuid.UUID) error {
	n := f.notifications[id]
	if n.Status == repository.StatusDraft || n.Status == repository.StatusScheduled {
		n.Status = repository.StatusSending
	}
	return nil
}

func (f *fakeStore) SetTotalTargets(_ context.Context, id uuid.UUID, total int) error {
	f.notifications[id].TotalTargets = total
	return nil
}

func (f *fakeStore) MarkSent(_ context.Context, id uuid.UUID) error {
	n := f.notifications[id]
	if n.Status != repository.StatusSending {
		return nil
	}
	now := time.Now()
	n.Status = repository.StatusSent
	n.SentAt = &now
	return nil
}

func (f *fakeStore) MarkFailed(_ context.Context, id uuid.UUID) error {
	f.notifications[id].Status = repository.StatusFailed
	return nil
}

func (f *fakeStore) IncrementDelivered(_ context.Context, id uuid.UUID) error {
	f.notifications[id].DeliveredCount++
	return nil
}

func (f *fakeStore) IncrementRead(_ context.Context, id uuid.UUID) error {
	f.notifications[id].ReadCount++
	return nil
}

func (f *fakeStore) IncrementFailed(_ context.Context, id uuid.UUID) error {
	f.notifications[id].FailedCount++
	return nil
}

var _ Store = (*fakeStore)(nil)

type ledgerKey struct {
	userID, notificationID uuid.UUID
}

type fakeLedger struct {
	records map[ledgerKey]string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[ledgerKey]string)}
}

func (f *fakeLedger) FanOut(_ context.Context, notificationID uuid.UUID, targets []uuid.UUID) (int, error) {
	created := 0
	for _, userID := range targets {
		key := ledgerKey{userID, notificationID}
		if _, ok := f.records[key]; ok {
			continue
		}
		f.records[key] = delivery.StatusPending
		created++
	}
	return created, nil
}

func (f *fakeLedger) CountTargets(_ context.Context, notificationID uuid.UUID) (int, error) {
	count := 0
	for key := range f.records {
		if key.notificationID == notificationID {
			count++
		}
	}
	return count, nil
}

func (f *fakeLedger) MarkDelivered(_ context.Context, userID, notificationID uuid.UUID) (bool, error) {
	key := ledgerKey{userID, notificationID}
	status := f.records[key]
	if status != delivery.StatusPending && status != delivery.StatusFailed {
		return false, nil
	}
	f.records[key] = delivery.StatusDelivered
	return true, nil
}

func (f *fakeLedger) MarkFailed(_ context.Context, userID, notificationID uuid.UUID) (bool, error) {
	key := ledgerKey{userID, notificationID}
	if f.records[key] != delivery.StatusPending {
		return false, nil
	}
	f.records[key] = delivery.StatusFailed
	return true, nil
}

func (f *fakeLedger) MarkRead(_ context.Context, userID, notificationID uuid.UUID) (bool, error) {
	key := ledgerKey{userID, notificationID}
	status, ok := f.records[key]
	if !ok || status == delivery.StatusRead {
		return false, nil
	}
	f.records[key] = delivery.StatusRead
	return true, nil
}

func (f *fakeLedger) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]delivery.UserNotification, int, error) {
	return nil, 0, nil
}

var _ Ledger = (*fakeLedger)(nil)

type stubResolver struct {
	targets []uuid.UUID
	err     error
}

func (s *stubResolver) ResolveTargets(context.Context, repository.Notification) ([]uuid.UUID, error) {
	return s.targets, s.err
}

type recordingBroadcaster struct {
	pushed []uuid.UUID
}

func (b *recordingBroadcaster) PublishNotification(userID uuid.UUID, _ interface{}) {
	b.pushed = append(b.pushed, userID)
}

type recordingEmailer struct {
	recipients []string
	failFor    map[string]bool
}

func (e *recordingEmailer) SendNotification(_ context.Context, recipients []string, _, _ string) error {
	e.recipients = append(e.recipients, recipients...)
	for _, r := range recipients {
		if e.failFor[r] {
			return apperr.Internal("smtp send failed")
		}
	}
	return nil
}

type stubEmails struct{}

func (stubEmails) EmailRecipients(_ context.Context, ids []uuid.UUID) ([]userrepo.EmailRecipient, error) {
	out := make([]userrepo.EmailRecipient, len(ids))
	for i := range ids {
		out[i] = userrepo.EmailRecipient{UserID: ids[i], Email: ids[i].String() + "@example.com"}
	}
	return out, nil
}

func targetSet(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestDeliverFansOutOncePerTarget(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	targets := targetSet(50)
	svc := NewService(store, ledger, &stubResolver{targets: targets}, stubEmails{}, nil, nil)

	id := store.add(repository.Notification{Type: repository.TypeLocal})

	if err := svc.Deliver(context.Background(), id); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	n := *store.notifications[id]
	if n.Status != repository.StatusSent {
		t.Fatalf("expected sent, got %q", n.Status)
	}
	if n.TotalTargets != 50 {
		t.Fatalf("expected 50 total targets, got %d", n.TotalTargets)
	}
	if count, _ := ledger.CountTargets(context.Background(), id); count != 50 {
		t.Fatalf("expected 50 ledger records, got %d", count)
	}
}

func TestDeliverRerunCreatesNoDuplicates(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	targets := targetSet(50)
	svc := NewService(store, ledger, &stubResolver{targets: targets}, stubEmails{}, nil, nil)

	id := store.add(repository.Notification{Type: repository.TypeLocal})

	if err := svc.Deliver(context.Background(), id); err != nil {
		t.Fatalf("first deliver failed: %v", err)
	}

	// Simulate a crash before MarkSent and a re-run with the same targets.
	store.notifications[id].Status = repository.StatusSending
	if err := svc.Deliver(context.Background(), id); err != nil {
		t.Fatalf("re-run failed: %v", err)
	}

	if count, _ := ledger.CountTargets(context.Background(), id); count != 50 {
		t.Fatalf("re-run must not add records, got %d", count)
	}
	if store.notifications[id].TotalTargets != 50 {
		t.Fatalf("re-run must not double-count targets, got %d", store.notifications[id].TotalTargets)
	}
}

func TestDeliverResolutionFailureMarksFailed(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, newFakeLedger(), &stubResolver{err: apperr.Validation("no targets")}, stubEmails{}, nil, nil)

	id := store.add(repository.Notification{Type: repository.TypeGlobal})

	err := svc.Deliver(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if store.notifications[id].Status != repository.StatusFailed {
		t.Fatalf("expected failed status, got %q", store.notifications[id].Status)
	}
}

func TestDeliverPushesToEachRecipient(t *testing.T) {
	store := newFakeStore()
	targets := targetSet(3)
	svc := NewService(store, newFakeLedger(), &stubResolver{targets: targets}, stubEmails{}, nil, nil)
	broadcaster := &recordingBroadcaster{}
	svc.SetBroadcaster(broadcaster)

	id := store.add(repository.Notification{Type: repository.TypeIndividual})

	if err := svc.Deliver(context.Background(), id); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if len(broadcaster.pushed) != 3 {
		t.Fatalf("expected 3 pushes, got %d", len(broadcaster.pushed))
	}
}

func TestUrgentNotificationGoesOutByEmail(t *testing.T) {
	store := newFakeStore()
	targets := targetSet(2)
	emailer := &recordingEmailer{}
	svc := NewService(store, newFakeLedger(), &stubResolver{targets: targets}, stubEmails{}, emailer, nil)

	normalID := store.add(repository.Notification{Type: repository.TypeIndividual})
	urgentID := store.add(repository.Notification{Type: repository.TypeIndividual, Priority: repository.PriorityUrgent})

	if err := svc.Deliver(context.Background(), normalID); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if len(emailer.recipients) != 0 {
		t.Fatalf("normal priority must not email, got %v", emailer.recipients)
	}

	if err := svc.Deliver(context.Background(), urgentID); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if len(emailer.recipients) != 2 {
		t.Fatalf("expected emails to 2 recipients, got %v", emailer.recipients)
	}
}

func TestDeliverDoesNotResurrectFailed(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	svc := NewService(store, ledger, &stubResolver{targets: targetSet(5)}, stubEmails{}, nil, nil)

	id := store.add(repository.Notification{Type: repository.TypeIndividual, Status: repository.StatusFailed})

	err := svc.Deliver(context.Background(), id)
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict for a failed notification, got %v", err)
	}
	if store.notifications[id].Status != repository.StatusFailed {
		t.Fatalf("failed notification must stay failed, got %q", store.notifications[id].Status)
	}
	if count, _ := ledger.CountTargets(context.Background(), id); count != 0 {
		t.Fatalf("failed notification must not fan out, got %d records", count)
	}
}

func TestUrgentEmailFailureMarksRecordFailed(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	targets := targetSet(3)
	bounced := targets[1]
	emailer := &recordingEmailer{failFor: map[string]bool{bounced.String() + "@example.com": true}}
	svc := NewService(store, ledger, &stubResolver{targets: targets}, stubEmails{}, emailer, nil)

	id := store.add(repository.Notification{Type: repository.TypeIndividual, Priority: repository.PriorityUrgent})

	if err := svc.Deliver(context.Background(), id); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	// The notification itself still completes; only the bounced recipient's
	// record reflects the failure.
	if store.notifications[id].Status != repository.StatusSent {
		t.Fatalf("expected sent notification, got %q", store.notifications[id].Status)
	}
	if store.notifications[id].FailedCount != 1 {
		t.Fatalf("expected failed counter 1, got %d", store.notifications[id].FailedCount)
	}
	for _, userID := range targets {
		want := delivery.StatusPending
		if userID == bounced {
			want = delivery.StatusFailed
		}
		if got := ledger.records[ledgerKey{userID, id}]; got != want {
			t.Fatalf("record for %s: expected %q, got %q", userID, want, got)
		}
	}

	// The recipient can still recover the record by acking in-app.
	if err := svc.AckDelivered(context.Background(), bounced, id); err != nil {
		t.Fatalf("ack delivered failed: %v", err)
	}
	if got := ledger.records[ledgerKey{bounced, id}]; got != delivery.StatusDelivered {
		t.Fatalf("expected failed record to recover to delivered, got %q", got)
	}
	if store.notifications[id].DeliveredCount != 1 {
		t.Fatalf("expected delivered counter 1, got %d", store.notifications[id].DeliveredCount)
	}
}

func TestAckCountersMoveOncePerTransition(t *testing.T) {
	store := newFakeStore()
	ledger := newFakeLedger()
	user := uuid.New()
	svc := NewService(store, ledger, &stubResolver{targets: []uuid.UUID{user}}, stubEmails{}, nil, nil)

	id := store.add(repository.Notification{Type: repository.TypeIndividual})
	if err := svc.Deliver(context.Background(), id); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.AckDelivered(context.Background(), user, id); err != nil {
			t.Fatalf("ack delivered failed: %v", err)
		}
	}
	if store.notifications[id].DeliveredCount != 1 {
		t.Fatalf("expected delivered counter 1, got %d", store.notifications[id].DeliveredCount)
	}

	for i := 0; i < 2; i++ {
		if err := svc.AckRead(context.Background(), user, id); err != nil {
			t.Fatalf("ack read failed: %v", err)
		}
	}
	if store.notifications[id].ReadCount != 1 {
		t.Fatalf("expected read counter 1, got %d", store.notifications[id].ReadCount)
	}
}

func TestCreateImmediateDeliversRightAway(t *testing.T) {
	store := newFakeStore()
	targets := targetSet(4)
	svc := NewService(store, newFakeLedger(), &stubResolver{targets: targets}, stubEmails{}, nil, nil)

	n, err := svc.Create(context.Background(), repository.CreateParams{
		Title: "maintenance", Message: "tonight", Type: repository.TypeIndividual,
		TargetUsers: targets, Priority: repository.PriorityNormal, CreatedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if n.Status != repository.StatusSent || n.TotalTargets != 4 {
		t.Fatalf("immediate notification should be sent to 4, got %q/%d", n.Status, n.TotalTargets)
	}
}

func TestCreateScheduledWaitsForDispatcher(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, newFakeLedger(), &stubResolver{targets: targetSet(1)}, stubEmails{}, nil, nil)

	future := time.Now().Add(time.Hour)
	n, err := svc.Create(context.Background(), repository.CreateParams{
		Title: "later", Message: "scheduled", Type: repository.TypeIndividual,
		TargetUsers: targetSet(1), Priority: repository.PriorityNormal,
		ScheduledFor: &future, CreatedBy: uuid.New(),
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if n.Status != repository.StatusScheduled {
		t.Fatalf("expected scheduled status, got %q", n.Status)
	}
	if count, _ := newFakeLedger().CountTargets(context.Background(), n.ID); count != 0 {
		t.Fatalf("scheduled notification must not fan out yet")
	}
}
