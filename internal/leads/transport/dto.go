// Package transport defines the HTTP wire types for the leads module.
package transport

import (
	"time"

	"tradelink_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// SubmitLeadRequest is the body of POST /leads.
type SubmitLeadRequest struct {
	GroupID     string  `json:"groupId" validate:"required,uuid4"`
	LeadType    string  `json:"leadType" validate:"required,oneof=buy sell"`
	Title       string  `json:"title" validate:"required,min=3,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Unit        string  `json:"unit" validate:"max=50"`
	PriceInfo   string  `json:"priceInfo" validate:"max=200"`
}

// DecideLeadRequest is the body of POST /admin/leads/:id/decision.
type DecideLeadRequest struct {
	Action  string `json:"action" validate:"required,oneof=approve reject"`
	Comment string `json:"comment" validate:"max=500"`
}

// DirectPostRequest is the body of POST /admin/leads/direct.
type DirectPostRequest struct {
	GroupID     string  `json:"groupId" validate:"required,uuid4"`
	LeadType    string  `json:"leadType" validate:"required,oneof=buy sell"`
	Title       string  `json:"title" validate:"required,min=3,max=200"`
	Description string  `json:"description" validate:"max=2000"`
	Quantity    float64 `json:"quantity" validate:"gte=0"`
	Unit        string  `json:"unit" validate:"max=50"`
	PriceInfo   string  `json:"priceInfo" validate:"max=200"`
}

// LeadResponse is a requested lead on the wire.
type LeadResponse struct {
	ID               uuid.UUID  `json:"id"`
	GroupID          uuid.UUID  `json:"groupId"`
	AuthorID         uuid.UUID  `json:"authorId"`
	Scope            string     `json:"scope"`
	CountryCode      string     `json:"countryCode"`
	LeadType         string     `json:"leadType"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Quantity         float64    `json:"quantity"`
	Unit             string     `json:"unit"`
	PriceInfo        string     `json:"priceInfo"`
	Status           string     `json:"status"`
	ModeratorComment *string    `json:"moderatorComment,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	DecidedAt        *time.Time `json:"decidedAt,omitempty"`
}

// ApprovedLeadResponse is a published lead on the wire.
type ApprovedLeadResponse struct {
	ID              uuid.UUID `json:"id"`
	GroupID         uuid.UUID `json:"groupId"`
	AuthorID        uuid.UUID `json:"authorId"`
	Scope           string    `json:"scope"`
	LeadType        string    `json:"leadType"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Quantity        float64   `json:"quantity"`
	Unit            string    `json:"unit"`
	PriceInfo       string    `json:"priceInfo"`
	IsModeratorPost bool      `json:"isModeratorPost"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Payload extracts the lead payload from a submission.
func (r SubmitLeadRequest) Payload() repository.Payload {
	return repository.Payload{
		LeadType:    r.LeadType,
		Title:       r.Title,
		Description: r.Description,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		PriceInfo:   r.PriceInfo,
	}
}

// Payload extracts the lead payload from a direct post.
func (r DirectPostRequest) Payload() repository.Payload {
	return repository.Payload{
		LeadType:    r.LeadType,
		Title:       r.Title,
		Description: r.Description,
		Quantity:    r.Quantity,
		Unit:        r.Unit,
		PriceInfo:   r.PriceInfo,
	}
}

// ToLeadResponse maps a lead to its wire form.
func ToLeadResponse(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:               l.ID,
		GroupID:          l.GroupID,
		AuthorID:         l.AuthorID,
		Scope:            l.Scope,
		CountryCode:      l.CountryCode,
		LeadType:         l.Payload.LeadType,
		Title:            l.Payload.Title,
		Description:      l.Payload.Description,
		Quantity:         l.Payload.Quantity,
		Unit:             l.Payload.Unit,
		PriceInfo:        l.Payload.PriceInfo,
		Status:           l.Status,
		ModeratorComment: l.ModeratorComment,
		CreatedAt:        l.CreatedAt,
		DecidedAt:        l.DecidedAt,
	}
}

// ToLeadResponses maps a list of leads.
func ToLeadResponses(leads []repository.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, ToLeadResponse(l))
	}
	return out
}

// ToApprovedLeadResponse maps an approved lead to its wire form.
func ToApprovedLeadResponse(a repository.ApprovedLead) ApprovedLeadResponse {
	return ApprovedLeadResponse{
		ID:              a.ID,
		GroupID:         a.GroupID,
		AuthorID:        a.AuthorID,
		Scope:           a.Scope,
		LeadType:        a.Payload.LeadType,
		Title:           a.Payload.Title,
		Description:     a.Payload.Description,
		Quantity:        a.Payload.Quantity,
		Unit:            a.Payload.Unit,
		PriceInfo:       a.Payload.PriceInfo,
		IsModeratorPost: a.IsModeratorPost,
		CreatedAt:       a.CreatedAt,
	}
}

// ToApprovedLeadResponses maps a feed page.
func ToApprovedLeadResponses(leads []repository.ApprovedLead) []ApprovedLeadResponse {
	out := make([]ApprovedLeadResponse, 0, len(leads))
	for _, a := range leads {
		out = append(out, ToApprovedLeadResponse(a))
	}
	return out
}
