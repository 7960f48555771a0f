package fanout

import (
	"context"
	"testing"

	"tradelink_backend/internal/notification/repository"
	"tradelink_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeUsers struct {
	byCountry map[string][]uuid.UUID
	all       []uuid.UUID
}

func (f *fakeUsers) IDsByCountry(_ context.Context, country string) ([]uuid.UUID, error) {
	return f.byCountry[country], nil
}

func (f *fakeUsers) AllIDs(_ context.Context) ([]uuid.UUID, error) {
	return f.all, nil
}

type fakeGroups struct {
	members map[uuid.UUID][]uuid.UUID
}

func (f *fakeGroups) MemberIDs(_ context.Context, groupIDs []uuid.UUID) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, gid := range groupIDs {
		out = append(out, f.members[gid]...)
	}
	return out, nil
}

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestResolveLocalByCountry(t *testing.T) {
	india := ids(3)
	r := NewResolver(&fakeUsers{byCountry: map[string][]uuid.UUID{"IN": india}}, &fakeGroups{})

	country := "IN"
	targets, err := r.ResolveTargets(context.Background(), repository.Notification{
		Type:          repository.TypeLocal,
		TargetCountry: &country,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected 3 targets, got %d", len(targets))
	}
}

func TestResolveLocalWithoutCountryFails(t *testing.T) {
	r := NewResolver(&fakeUsers{}, &fakeGroups{})

	_, err := r.ResolveTargets(context.Background(), repository.Notification{Type: repository.TypeLocal})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResolveGlobalUnionsGroupsAndDedupes(t *testing.T) {
	shared := uuid.New()
	groupA := uuid.New()
	groupB := uuid.New()
	r := NewResolver(&fakeUsers{}, &fakeGroups{members: map[uuid.UUID][]uuid.UUID{
		groupA: {shared, uuid.New()},
		groupB: {shared, uuid.New()},
	}})

	targets, err := r.ResolveTargets(context.Background(), repository.Notification{
		Type:         repository.TypeGlobal,
		TargetGroups: []uuid.UUID{groupA, groupB},
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(targets) != 3 {
		t.Fatalf("expected union of 3 distinct users, got %d", len(targets))
	}
}

func TestResolveGlobalWithoutGroupsFailsClosed(t *testing.T) {
	r := NewResolver(&fakeUsers{all: ids(100)}, &fakeGroups{})

	_, err := r.ResolveTargets(context.Background(), repository.Notification{Type: repository.TypeGlobal})
	if apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty target groups, got %v", err)
	}
}

func TestResolveGlobalAllUsersIsExplicit(t *testing.T) {
	everyone := ids(5)
	r := NewResolver(&fakeUsers{all: everyone}, &fakeGroups{})

	targets, err := r.ResolveTargets(context.Background(), repository.Notification{
		Type:     repository.TypeGlobal,
		AllUsers: true,
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(targets) != len(everyone) {
		t.Fatalf("expected all %d users, got %d", len(everyone), len(targets))
	}
}

func TestResolveIndividualIsExact(t *testing.T) {
	users := ids(2)
	r := NewResolver(&fakeUsers{}, &fakeGroups{})

	targets, err := r.ResolveTargets(context.Background(), repository.Notification{
		Type:        repository.TypeIndividual,
		TargetUsers: append(users, users[0]),
	})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("expected deduplicated pair, got %d", len(targets))
	}
}
