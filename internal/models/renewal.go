// internal/models/renewal.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// RenewalOffer is a time-boxed, unsigned proposal of terms for continuing a
// license past its end date. Exactly one acceptance consumes it and creates a
// child license carrying ParentLicenseID; any newer offer supersedes it.
type RenewalOffer struct {
	BaseModel
	LicenseID       uuid.UUID       `json:"license_id" gorm:"type:uuid;not null;index"`
	Strategy        RenewalStrategy `json:"strategy" gorm:"type:varchar(30);not null"`
	FeeAmount       int64           `json:"fee_amount" gorm:"not null"`
	RevShareBps     int             `json:"rev_share_bps" gorm:"not null"`
	Breakdown       JSONB           `json:"breakdown" gorm:"type:jsonb"`
	Confidence      float64         `json:"confidence"`
	TermStart       time.Time       `json:"term_start" gorm:"not null"`
	TermEnd         time.Time       `json:"term_end" gorm:"not null"`
	ExpiresAt       time.Time       `json:"expires_at" gorm:"not null;index"`
	Status          OfferStatus     `json:"status" gorm:"type:varchar(20);default:'open';index"`
	GeneratedBy     uuid.UUID       `json:"generated_by" gorm:"type:uuid;not null"`
	AcceptedLicense *uuid.UUID      `json:"accepted_license,omitempty" gorm:"type:uuid"`
	ResolvedAt      *time.Time      `json:"resolved_at,omitempty"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}

// Expired reports whether the offer window has closed.
func (o *RenewalOffer) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
