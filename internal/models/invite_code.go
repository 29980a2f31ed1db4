package models

import (
	"time"
)

// InviteCode represents a one-time signup token.
// A code is consumable while it is active and has no consumer yet; once
// used_by is set the code is permanently consumed.
type InviteCode struct {
	ID        string     `json:"id" db:"id"`
	Code      string     `json:"code" db:"code"`
	CreatedBy string     `json:"createdBy" db:"created_by"`
	UsedBy    *string    `json:"usedBy,omitempty" db:"used_by"`
	IsActive  bool       `json:"isActive" db:"is_active"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	UsedAt    *time.Time `json:"usedAt,omitempty" db:"used_at"`
}
