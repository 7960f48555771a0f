// Package transport defines the HTTP wire types for the groups module.
package transport

import (
	"time"

	"tradelink_backend/internal/groups/repository"
	"tradelink_backend/internal/groups/service"

	"github.com/google/uuid"
)

// GroupResponse is a single group entry in the membership list, including the
// unread badge derived from the caller's read watermark.
type GroupResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Scope       string     `json:"scope"`
	CountryCode *string    `json:"countryCode,omitempty"`
	UnreadBuy   int        `json:"unreadBuy"`
	UnreadSell  int        `json:"unreadSell"`
	LastReadAt  *time.Time `json:"lastReadAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// MarkReadResponse returns the advanced watermark.
type MarkReadResponse struct {
	LastReadAt time.Time `json:"lastReadAt"`
}

// ToGroupResponse maps a service list entry to its wire form.
func ToGroupResponse(g service.GroupWithUnread) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Scope:       g.Scope,
		CountryCode: g.CountryCode,
		UnreadBuy:   g.Unread.BuyCount,
		UnreadSell:  g.Unread.SellCount,
		LastReadAt:  g.LastReadAt,
		CreatedAt:   g.CreatedAt,
	}
}

// ToGroupResponses maps a list of entries.
func ToGroupResponses(groups []service.GroupWithUnread) []GroupResponse {
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, ToGroupResponse(g))
	}
	return out
}

// ToJoinedResponse is the response for a successful join.
func ToJoinedResponse(g repository.Group) GroupResponse {
	return GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Scope:       g.Scope,
		CountryCode: g.CountryCode,
		CreatedAt:   g.CreatedAt,
	}
}
