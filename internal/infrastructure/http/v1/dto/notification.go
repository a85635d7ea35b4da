package dto

import (
	"provision/internal/domain/notification"
)

// CreateNotificationSettingRequest creates an event subscription.
type CreateNotificationSettingRequest struct {
	Name       string   `json:"name" binding:"required"`
	Event      string   `json:"event" binding:"required"`
	Rule       string   `json:"rule"`
	Recipients []string `json:"recipients" binding:"required,min=1"`
}

// ToSetting builds the domain subscription.
func (r CreateNotificationSettingRequest) ToSetting() *notification.Setting {
	return notification.NewSetting(r.Name, notification.Event(r.Event), r.Rule, r.Recipients)
}

// UpdateNotificationSettingRequest updates an event subscription.
type UpdateNotificationSettingRequest struct {
	Name       *string  `json:"name"`
	Rule       *string  `json:"rule"`
	Recipients []string `json:"recipients"`
	Enabled    *bool    `json:"enabled"`
	Version    int      `json:"version" binding:"required,min=1"`
}

// Apply merges non-nil fields onto the existing subscription.
func (r UpdateNotificationSettingRequest) Apply(existing *notification.Setting) *notification.Setting {
	if r.Name != nil {
		existing.Name = *r.Name
	}
	if r.Rule != nil {
		existing.Rule = *r.Rule
	}
	if r.Recipients != nil {
		existing.Recipients = r.Recipients
	}
	if r.Enabled != nil {
		existing.Enabled = *r.Enabled
	}
	existing.Version = r.Version
	return existing
}
