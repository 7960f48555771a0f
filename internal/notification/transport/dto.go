// Package transport defines the HTTP wire types for the notification module.
package transport

import (
	"time"

	"tradelink_backend/internal/notification/repository"

	"github.com/google/uuid"
)

// CreateNotificationRequest is the body of POST /admin/notifications.
type CreateNotificationRequest struct {
	Title         string      `json:"title" validate:"required,min=3,max=200"`
	Message       string      `json:"message" validate:"required,max=2000"`
	Type          string      `json:"type" validate:"required,oneof=local global individual"`
	TargetCountry *string     `json:"targetCountry,omitempty" validate:"omitempty,len=2"`
	TargetUsers   []uuid.UUID `json:"targetUsers,omitempty"`
	TargetGroups  []uuid.UUID `json:"targetGroups,omitempty"`
	AllUsers      bool        `json:"allUsers"`
	Priority      string      `json:"priority" validate:"omitempty,oneof=normal urgent"`
	Category      string      `json:"category" validate:"max=50"`
	ScheduledFor  *time.Time  `json:"scheduledFor,omitempty"`
}

// ToCreateParams maps the request to repository parameters.
func (r CreateNotificationRequest) ToCreateParams(createdBy uuid.UUID) repository.CreateParams {
	priority := r.Priority
	if priority == "" {
		priority = repository.PriorityNormal
	}
	return repository.CreateParams{
		Title:         r.Title,
		Message:       r.Message,
		Type:          r.Type,
		TargetCountry: r.TargetCountry,
		TargetUsers:   r.TargetUsers,
		TargetGroups:  r.TargetGroups,
		AllUsers:      r.AllUsers,
		Priority:      priority,
		Category:      r.Category,
		ScheduledFor:  r.ScheduledFor,
		CreatedBy:     createdBy,
	}
}
