package service

import (
	"context"
	"testing"
	"time"

	"tradelink_backend/internal/events"
	grouprepo "tradelink_backend/internal/groups/repository"
	"tradelink_backend/internal/leads/repository"
	"tradelink_backend/platform/apperr"
	platformevents "tradelink_backend/platform/events"

	"github.com/google/uuid"
)

type fakeLeadRepo struct {
	leads    map[uuid.UUID]repository.Lead
	approved []repository.ApprovedLead
}

func newFakeLeadRepo() *fakeLeadRepo {
	return &fakeLeadRepo{leads: make(map[uuid.UUID]repository.Lead)}
}

func (f *fakeLeadRepo) Create(_ context.Context, params repository.CreateParams) (repository.Lead, error) {
	lead := repository.Lead{
		ID:          uuid.New(),
		GroupID:     params.GroupID,
		AuthorID:    params.AuthorID,
		Scope:       params.Scope,
		CountryCode: params.CountryCode,
		Payload:     params.Payload,
		Status:      repository.StatusPending,
		CreatedAt:   time.Now(),
	}
	f.leads[lead.ID] = lead
	return lead, nil
}

func (f *fakeLeadRepo) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	return lead, nil
}

func (f *fakeLeadRepo) ListPending(_ context.Context, countryCode *string) ([]repository.Lead, error) {
	var result []repository.Lead
	for _, lead := range f.leads {
		if lead.Status != repository.StatusPending {
			continue
		}
		if countryCode != nil && lead.CountryCode != *countryCode {
			continue
		}
		result = append(result, lead)
	}
	return result, nil
}

func (f *fakeLeadRepo) decide(leadID, moderatorID uuid.UUID, status, comment string) (repository.Lead, error) {
	lead, ok := f.leads[leadID]
	if !ok {
		return repository.Lead{}, apperr.NotFound("lead not found")
	}
	if lead.Status != repository.StatusPending {
		return repository.Lead{}, apperr.Conflict("lead already decided")
	}
	now := time.Now()
	lead.Status = status
	lead.ModeratorID = &moderatorID
	if comment != "" {
		lead.ModeratorComment = &comment
	}
	lead.DecidedAt = &now
	f.leads[leadID] = lead
	return lead, nil
}

func (f *fakeLeadRepo) Approve(_ context.Context, leadID, moderatorID uuid.UUID, comment string) (repository.Lead, repository.ApprovedLead, error) {
	lead, err := f.decide(leadID, moderatorID, repository.StatusApproved, comment)
	if err != nil {
		return repository.Lead{}, repository.ApprovedLead{}, err
	}
	id := lead.ID
	approved := repository.ApprovedLead{
		ID:          uuid.New(),
		LeadID:      &id,
		GroupID:     lead.GroupID,
		AuthorID:    lead.AuthorID,
		Scope:       lead.Scope,
		CountryCode: lead.CountryCode,
		Payload:     lead.Payload,
		CreatedAt:   time.Now(),
	}
	f.approved = append(f.approved, approved)
	return lead, approved, nil
}

func (f *fakeLeadRepo) Reject(_ context.Context, leadID, moderatorID uuid.UUID, comment string) (repository.Lead, error) {
	return f.decide(leadID, moderatorID, repository.StatusRejected, comment)
}

func (f *fakeLeadRepo) CreateModeratorPost(_ context.Context, params repository.DirectPostParams) (repository.ApprovedLead, error) {
	approved := repository.ApprovedLead{
		ID:              uuid.New(),
		GroupID:         params.GroupID,
		AuthorID:        params.AuthorID,
		Scope:           params.Scope,
		CountryCode:     params.CountryCode,
		Payload:         params.Payload,
		IsModeratorPost: true,
		CreatedAt:       time.Now(),
	}
	f.approved = append(f.approved, approved)
	return approved, nil
}

func (f *fakeLeadRepo) ListApprovedByGroup(_ context.Context, groupID uuid.UUID, limit, offset int) ([]repository.ApprovedLead, int, error) {
	var result []repository.ApprovedLead
	for _, a := range f.approved {
		if a.GroupID == groupID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

var _ repository.Repository = (*fakeLeadRepo)(nil)

type fakeGroups struct {
	groups  map[uuid.UUID]grouprepo.Group
	members map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeGroups() *fakeGroups {
	return &fakeGroups{
		groups:  make(map[uuid.UUID]grouprepo.Group),
		members: make(map[uuid.UUID]map[uuid.UUID]bool),
	}
}

func (f *fakeGroups) addGroup(scope string, country *string, members ...uuid.UUID) grouprepo.Group {
	g := grouprepo.Group{ID: uuid.New(), Name: "group", Scope: scope, CountryCode: country, CreatedAt: time.Now()}
	f.groups[g.ID] = g
	f.members[g.ID] = make(map[uuid.UUID]bool)
	for _, m := range members {
		f.members[g.ID][m] = true
	}
	return g
}

func (f *fakeGroups) GetByID(_ context.Context, id uuid.UUID) (grouprepo.Group, error) {
	g, ok := f.groups[id]
	if !ok {
		return grouprepo.Group{}, apperr.NotFound("group not found")
	}
	return g, nil
}

func (f *fakeGroups) IsMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	return f.members[groupID][userID], nil
}

type capturingBus struct {
	published []events.Event
}

func (b *capturingBus) Publish(_ context.Context, e events.Event) { b.published = append(b.published, e) }
func (b *capturingBus) PublishSync(_ context.Context, e events.Event) error {
	b.published = append(b.published, e)
	return nil
}
func (b *capturingBus) Subscribe(string, platformevents.Handler) {}

func (b *capturingBus) approvedEvents() []events.LeadApproved {
	var out []events.LeadApproved
	for _, e := range b.published {
		if evt, ok := e.(events.LeadApproved); ok {
			out = append(out, evt)
		}
	}
	return out
}

func country(code string) *string { return &code }

func submitLead(t *testing.T, svc *Service, author uuid.UUID, groupID uuid.UUID) repository.Lead {
	t.Helper()
	lead, err := svc.Submit(context.Background(), author, "IN", groupID, repository.Payload{
		LeadType: repository.LeadTypeBuy,
		Title:    "bulk cotton yarn",
		Quantity: 500,
		Unit:     "kg",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	return lead
}

func TestDecideIsTerminal(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	author := uuid.New()
	group := groups.addGroup(grouprepo.ScopeLocal, country("IN"), author)
	bus := &capturingBus{}
	svc := New(repo, groups, bus, nil)

	lead := submitLead(t, svc, author, group.ID)
	moderator := Moderator{ID: uuid.New(), CountryCode: country("IN")}

	if _, err := svc.Decide(context.Background(), moderator, lead.ID, ActionApprove, ""); err != nil {
		t.Fatalf("first decision failed: %v", err)
	}

	_, err := svc.Decide(context.Background(), moderator, lead.ID, ActionReject, "")
	if apperr.GetKind(err) != apperr.KindConflict {
		t.Fatalf("expected conflict on second decision, got %v", err)
	}
	if len(repo.approved) != 1 {
		t.Fatalf("expected exactly 1 approved snapshot, got %d", len(repo.approved))
	}
}

func TestDecideEnforcesCountryScope(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	author := uuid.New()
	group := groups.addGroup(grouprepo.ScopeLocal, country("IN"), author)
	bus := &capturingBus{}
	svc := New(repo, groups, bus, nil)

	lead := submitLead(t, svc, author, group.ID)

	outsider := Moderator{ID: uuid.New(), CountryCode: country("DE")}
	_, err := svc.Decide(context.Background(), outsider, lead.ID, ActionApprove, "")
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for out-of-country moderator, got %v", err)
	}
	if len(repo.approved) != 0 {
		t.Fatalf("forbidden decision must not create a snapshot")
	}

	local := Moderator{ID: uuid.New(), CountryCode: country("IN")}
	decided, err := svc.Decide(context.Background(), local, lead.ID, ActionApprove, "looks good")
	if err != nil {
		t.Fatalf("in-country approval failed: %v", err)
	}
	if decided.Status != repository.StatusApproved {
		t.Fatalf("expected approved status, got %q", decided.Status)
	}
	if len(repo.approved) != 1 {
		t.Fatalf("expected 1 approved snapshot, got %d", len(repo.approved))
	}
	if got := bus.approvedEvents(); len(got) != 1 || got[0].GroupID != group.ID {
		t.Fatalf("expected 1 LeadApproved event for the group, got %+v", got)
	}
}

func TestSuperadminDecidesUnscoped(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	author := uuid.New()
	group := groups.addGroup(grouprepo.ScopeLocal, country("IN"), author)
	svc := New(repo, groups, &capturingBus{}, nil)

	lead := submitLead(t, svc, author, group.ID)

	superadmin := Moderator{ID: uuid.New()}
	if _, err := svc.Decide(context.Background(), superadmin, lead.ID, ActionReject, "off topic"); err != nil {
		t.Fatalf("superadmin rejection failed: %v", err)
	}
}

func TestApprovedSnapshotCopiesPayload(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	author := uuid.New()
	group := groups.addGroup(grouprepo.ScopeLocal, country("IN"), author)
	svc := New(repo, groups, &capturingBus{}, nil)

	lead := submitLead(t, svc, author, group.ID)
	moderator := Moderator{ID: uuid.New(), CountryCode: country("IN")}

	if _, err := svc.Decide(context.Background(), moderator, lead.ID, ActionApprove, ""); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	snapshot := repo.approved[0]
	if snapshot.Payload != lead.Payload {
		t.Fatalf("snapshot payload diverged: %+v vs %+v", snapshot.Payload, lead.Payload)
	}
	if snapshot.LeadID == nil || *snapshot.LeadID != lead.ID {
		t.Fatalf("snapshot must reference the requested lead")
	}
}

func TestApprovedEventCarriesWholeSnapshot(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	author := uuid.New()
	group := groups.addGroup(grouprepo.ScopeLocal, country("IN"), author)
	bus := &capturingBus{}
	svc := New(repo, groups, bus, nil)

	lead, err := svc.Submit(context.Background(), author, "IN", group.ID, repository.Payload{
		LeadType:    repository.LeadTypeBuy,
		Title:       "bulk cotton yarn",
		Description: "combed, 30s count",
		Quantity:    500,
		Unit:        "kg",
		PriceInfo:   "negotiable",
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	moderator := Moderator{ID: uuid.New(), CountryCode: country("IN")}
	if _, err := svc.Decide(context.Background(), moderator, lead.ID, ActionApprove, ""); err != nil {
		t.Fatalf("approval failed: %v", err)
	}

	got := bus.approvedEvents()
	if len(got) != 1 {
		t.Fatalf("expected 1 approved event, got %d", len(got))
	}
	evt := got[0]
	// Subscribers render the lead straight from the event, so every payload
	// field has to be there.
	if evt.Title != lead.Payload.Title ||
		evt.Description != lead.Payload.Description ||
		evt.Quantity != lead.Payload.Quantity ||
		evt.Unit != lead.Payload.Unit ||
		evt.PriceInfo != lead.Payload.PriceInfo ||
		evt.LeadType != lead.Payload.LeadType {
		t.Fatalf("event payload diverged from snapshot: %+v vs %+v", evt, lead.Payload)
	}
	if evt.AuthorID != author || evt.GroupID != group.ID || evt.LeadID != lead.ID {
		t.Fatalf("event identifiers diverged: %+v", evt)
	}
}

func TestSubmitRequiresMembership(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	group := groups.addGroup(grouprepo.ScopeLocal, country("IN"))
	svc := New(repo, groups, &capturingBus{}, nil)

	_, err := svc.Submit(context.Background(), uuid.New(), "IN", group.ID, repository.Payload{
		LeadType: repository.LeadTypeSell,
		Title:    "steel rods",
	})
	if apperr.GetKind(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden for non-member, got %v", err)
	}
}

func TestListPendingFiltersByCountry(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	author := uuid.New()
	indiaGroup := groups.addGroup(grouprepo.ScopeLocal, country("IN"), author)
	germanyGroup := groups.addGroup(grouprepo.ScopeLocal, country("DE"), author)
	svc := New(repo, groups, &capturingBus{}, nil)

	submitLead(t, svc, author, indiaGroup.ID)
	if _, err := svc.Submit(context.Background(), author, "DE", germanyGroup.ID, repository.Payload{
		LeadType: repository.LeadTypeBuy,
		Title:    "machine parts",
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	scoped, err := svc.ListPending(context.Background(), Moderator{ID: uuid.New(), CountryCode: country("IN")})
	if err != nil {
		t.Fatalf("scoped list failed: %v", err)
	}
	if len(scoped) != 1 || scoped[0].CountryCode != "IN" {
		t.Fatalf("expected only the IN lead, got %+v", scoped)
	}

	all, err := svc.ListPending(context.Background(), Moderator{ID: uuid.New()})
	if err != nil {
		t.Fatalf("unscoped list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 leads for superadmin, got %d", len(all))
	}
}

func TestPostDirectPublishesImmediately(t *testing.T) {
	repo := newFakeLeadRepo()
	groups := newFakeGroups()
	group := groups.addGroup(grouprepo.ScopeGlobal, nil)
	bus := &capturingBus{}
	svc := New(repo, groups, bus, nil)

	moderator := Moderator{ID: uuid.New(), CountryCode: country("IN")}
	approved, err := svc.PostDirect(context.Background(), moderator, "IN", group.ID, repository.Payload{
		LeadType: repository.LeadTypeSell,
		Title:    "maintenance window announcement",
	})
	if err != nil {
		t.Fatalf("direct post failed: %v", err)
	}
	if !approved.IsModeratorPost {
		t.Fatalf("direct post must be tagged as a moderator post")
	}
	if approved.LeadID != nil {
		t.Fatalf("direct post must not reference a queue entry")
	}
	if got := bus.approvedEvents(); len(got) != 1 || !got[0].IsModeratorPost {
		t.Fatalf("expected 1 moderator-post LeadApproved event, got %+v", got)
	}
}
