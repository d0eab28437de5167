// internal/models/extension.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Extension is a request to push a license's end date forward by a bounded
// number of days. Short extensions skip the approval round entirely; either
// path re-runs conflict detection over the widened interval before commit.
type Extension struct {
	BaseModel
	LicenseID        uuid.UUID       `json:"license_id" gorm:"type:uuid;not null;index"`
	ExtensionDays    int             `json:"extension_days" gorm:"not null"`
	Justification    string          `json:"justification" gorm:"type:text"`
	AdditionalFee    int64           `json:"additional_fee" gorm:"not null;default:0"`
	ApprovalRequired bool            `json:"approval_required" gorm:"default:true"`
	Status           ExtensionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	ApprovalDeadline time.Time       `json:"approval_deadline"`
	RequestedBy      uuid.UUID       `json:"requested_by" gorm:"type:uuid;not null"`
	DecidedBy        *uuid.UUID      `json:"decided_by,omitempty" gorm:"type:uuid"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
	NewEndDate       time.Time       `json:"new_end_date"`

	// Relationships
	License License `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
}
