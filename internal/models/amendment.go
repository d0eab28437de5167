// internal/models/amendment.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Amendment is a proposed in-flight change to an active license. It carries
// before/after snapshots of the touched fields and one Approval row per
// required approver; AfterValues is applied to the license only when every
// required approver has approved before the deadline.
type Amendment struct {
	BaseModel
	LicenseID        uuid.UUID       `json:"license_id" gorm:"type:uuid;not null;index"`
	AmendmentNumber  int             `json:"amendment_number" gorm:"not null"`
	AmendmentType    AmendmentType   `json:"amendment_type" gorm:"type:varchar(20);not null"`
	BeforeValues     JSONB           `json:"before_values" gorm:"type:jsonb"`
	AfterValues      JSONB           `json:"after_values" gorm:"type:jsonb"`
	Justification    string          `json:"justification" gorm:"type:text"`
	Status           AmendmentStatus `json:"status" gorm:"type:varchar(20);default:'proposed';index"`
	ApprovalDeadline time.Time       `json:"approval_deadline" gorm:"not null"`
	ProposedBy       uuid.UUID       `json:"proposed_by" gorm:"type:uuid;not null"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`

	// Relationships
	License   License    `json:"license,omitempty" gorm:"foreignKey:LicenseID"`
	Approvals []Approval `json:"approvals,omitempty" gorm:"foreignKey:SubjectID;references:ID"`
}

// DeadlinePassed reports whether the approval window has closed.
func (a *Amendment) DeadlinePassed(now time.Time) bool {
	return now.After(a.ApprovalDeadline)
}
