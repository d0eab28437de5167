// internal/models/license.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LicenseScope describes what a license grants exclusively to the brand:
// which media channels and placements, where, against which competitor
// category, and what edits the brand may make to the asset.
type LicenseScope struct {
	MediaChannels       StringList `json:"media_channels" gorm:"type:text"`
	Placements          StringList `json:"placements" gorm:"type:text"`
	Territories         StringList `json:"territories" gorm:"type:text"`
	ExclusivityCategory string     `json:"exclusivity_category" gorm:"size:100"`
	BlockedCompetitors  StringList `json:"blocked_competitors" gorm:"type:text"`
	PermittedEdits      StringList `json:"permitted_edits" gorm:"type:text"`
	CutdownsAllowed     bool       `json:"cutdowns_allowed" gorm:"default:false"`
}

// License is the central entity: an agreement between the owners of an asset
// and a brand over a half-open [StartDate, EndDate) interval. FeeAmount is in
// minor currency units; RevShareBps is parts-per-10000.
type License struct {
	BaseModel
	AssetID          uuid.UUID     `json:"asset_id" gorm:"type:uuid;not null;index"`
	BrandID          uuid.UUID     `json:"brand_id" gorm:"type:uuid;not null;index"`
	LicenseType      LicenseType   `json:"license_type" gorm:"type:varchar(30);not null"`
	Status           LicenseStatus `json:"status" gorm:"type:varchar(30);default:'draft';index"`
	StartDate        time.Time     `json:"start_date" gorm:"not null"`
	EndDate          time.Time     `json:"end_date" gorm:"not null;index"`
	FeeAmount        int64         `json:"fee_amount" gorm:"not null"`
	Currency         string        `json:"currency" gorm:"size:3;default:'usd'"`
	RevShareBps      int           `json:"rev_share_bps" gorm:"not null;default:0"`
	BillingFrequency string        `json:"billing_frequency" gorm:"size:20;default:'one_time'"`
	Scope            LicenseScope  `json:"scope" gorm:"embedded;embeddedPrefix:scope_"`
	AutoRenew        bool          `json:"auto_renew" gorm:"default:false"`
	ParentLicenseID  *uuid.UUID    `json:"parent_license_id,omitempty" gorm:"type:uuid;index"`
	AmendmentCount   int           `json:"amendment_count" gorm:"default:0"`
	ExtensionCount   int           `json:"extension_count" gorm:"default:0"`
	AgreementDocKey  string        `json:"agreement_doc_key,omitempty" gorm:"size:512"`
	TerminatedReason string        `json:"terminated_reason,omitempty" gorm:"type:text"`

	// Relationships
	Asset         IPAsset     `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
	Brand         User        `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	ParentLicense *License    `json:"parent_license,omitempty" gorm:"foreignKey:ParentLicenseID"`
	Amendments    []Amendment `json:"amendments,omitempty" gorm:"foreignKey:LicenseID"`
	Extensions    []Extension `json:"extensions,omitempty" gorm:"foreignKey:LicenseID"`

	StatusHistory []LicenseStatusEvent `json:"status_history,omitempty" gorm:"foreignKey:LicenseID"`
}

// Occupying reports whether the license currently holds its scope against
// other licenses, i.e. counts as a conflict candidate.
func (l *License) Occupying() bool {
	switch l.Status {
	case LicenseStatusActive, LicenseStatusExpiringSoon,
		LicenseStatusPendingApproval, LicenseStatusPendingSignature:
		return true
	}
	return false
}

// Overlaps tests half-open interval intersection with [start, end).
func (l *License) Overlaps(start, end time.Time) bool {
	return l.StartDate.Before(end) && start.Before(l.EndDate)
}

// DurationDays returns the licensed interval length in whole days, never
// less than 1 so pro-rata fee math cannot divide by zero.
func (l *License) DurationDays() int {
	days := int(l.EndDate.Sub(l.StartDate).Hours() / 24)
	if days < 1 {
		return 1
	}
	return days
}

// LicenseStatusEvent is one row of the append-only status-history log. Rows
// are only ever inserted; the log is the audit trail and the source for
// lifecycle analytics such as renewal rate.
type LicenseStatusEvent struct {
	ID         uuid.UUID     `json:"id" gorm:"type:uuid;primary_key"`
	LicenseID  uuid.UUID     `json:"license_id" gorm:"type:uuid;not null;index"`
	FromStatus LicenseStatus `json:"from_status" gorm:"type:varchar(30);not null"`
	ToStatus   LicenseStatus `json:"to_status" gorm:"type:varchar(30);not null"`
	Event      LicenseEvent  `json:"event" gorm:"type:varchar(30);not null"`
	ActorID    *uuid.UUID    `json:"actor_id,omitempty" gorm:"type:uuid"`
	Reason     string        `json:"reason,omitempty" gorm:"type:text"`
	CreatedAt  time.Time     `json:"created_at" gorm:"index"`
}

func (LicenseStatusEvent) TableName() string {
	return "license_status_events"
}

func (e *LicenseStatusEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Approval is one required approver's decision on a license activation,
// amendment or extension. Approvers are plain role-tagged records; the
// outcome is a reduction over them (all approved / any rejected).
type Approval struct {
	BaseModel
	SubjectType ApprovalSubject  `json:"subject_type" gorm:"type:varchar(20);not null;index:idx_approvals_subject"`
	SubjectID   uuid.UUID        `json:"subject_id" gorm:"type:uuid;not null;index:idx_approvals_subject"`
	LicenseID   uuid.UUID        `json:"license_id" gorm:"type:uuid;not null;index"`
	ApproverID  uuid.UUID        `json:"approver_id" gorm:"type:uuid;not null;index"`
	Role        UserType         `json:"role" gorm:"type:varchar(20);not null"`
	Decision    ApprovalDecision `json:"decision" gorm:"type:varchar(20);default:'pending'"`
	Comments    string           `json:"comments,omitempty" gorm:"type:text"`
	DecidedAt   *time.Time       `json:"decided_at,omitempty"`
}
