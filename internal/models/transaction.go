// internal/models/transaction.go
package models

import (
	"github.com/google/uuid"
)

// Transaction is a billing intent: the engine records the amount owed when a
// license activates or its fees change, and hands execution to the billing
// collaborator. StripePaymentIntentID is set when a stripe intent was opened.
type Transaction struct {
	BaseModel
	LicenseID             uuid.UUID         `json:"license_id" gorm:"type:uuid;not null;index"`
	BrandID               uuid.UUID         `json:"brand_id" gorm:"type:uuid;not null;index"`
	TransactionType       TransactionType   `json:"transaction_type" gorm:"type:varchar(30);not null;index"`
	Amount                int64             `json:"amount" gorm:"not null"`
	Currency              string            `json:"currency" gorm:"size:3;default:'usd'"`
	BillingFrequency      string            `json:"billing_frequency" gorm:"size:20;default:'one_time'"`
	Status                TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	StripePaymentIntentID string            `json:"stripe_payment_intent_id,omitempty" gorm:"size:255"`
	Metadata              JSONB             `json:"metadata" gorm:"type:jsonb"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	Brand   User    `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
}

// Notification is the persisted copy of a domain event, kept for the admin
// surface next to the fire-and-forget redis publication.
type Notification struct {
	BaseModel
	Type                string     `json:"type" gorm:"size:50;not null;index"`
	Title               string     `json:"title" gorm:"size:255;not null"`
	Message             string     `json:"message" gorm:"type:text"`
	Priority            string     `json:"priority" gorm:"size:20;default:'medium'"`
	RelatedResourceType string     `json:"related_resource_type,omitempty" gorm:"size:50"`
	RelatedResourceID   *uuid.UUID `json:"related_resource_id,omitempty" gorm:"type:uuid"`
	Payload             JSONB      `json:"payload" gorm:"type:jsonb"`
	ReadAt              *string    `json:"read_at,omitempty"`
}

// AuditLog records a mutating API request: who did what to which resource.
type AuditLog struct {
	BaseModel
	UserID       *uuid.UUID `json:"user_id,omitempty" gorm:"type:uuid;index"`
	Action       string     `json:"action" gorm:"size:100;not null;index"`
	ResourceType string     `json:"resource_type" gorm:"size:50;index"`
	ResourceID   string     `json:"resource_id,omitempty" gorm:"size:64"`
	StatusCode   int        `json:"status_code"`
	DurationMs   int64      `json:"duration_ms"`
	IPAddress    string     `json:"ip_address,omitempty" gorm:"size:45"`
	RequestBody  JSONB      `json:"request_body,omitempty" gorm:"type:jsonb"`
}
