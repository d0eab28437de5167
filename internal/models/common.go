// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL (TEXT under sqlite in tests)
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("unsupported JSONB source type %T", value)
	}
}

// StringList is a JSON-encoded string slice column. JSON instead of a native
// array type so the same models run on postgres and on sqlite in tests.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("unsupported StringList source type %T", value)
	}
}

// Contains reports whether item is present in the list.
func (l StringList) Contains(item string) bool {
	for _, s := range l {
		if s == item {
			return true
		}
	}
	return false
}

// Intersects reports whether the two lists share at least one element.
func (l StringList) Intersects(other StringList) bool {
	for _, s := range other {
		if l.Contains(s) {
			return true
		}
	}
	return false
}

// Enums
type UserType string

const (
	UserTypeCreator UserType = "creator"
	UserTypeBrand   UserType = "brand"
	UserTypeAdmin   UserType = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusBanned    UserStatus = "banned"
)

type LicenseType string

const (
	LicenseTypeExclusive          LicenseType = "exclusive"
	LicenseTypeNonExclusive       LicenseType = "non_exclusive"
	LicenseTypeExclusiveTerritory LicenseType = "exclusive_territory"
)

type LicenseStatus string

const (
	LicenseStatusDraft            LicenseStatus = "draft"
	LicenseStatusPendingApproval  LicenseStatus = "pending_approval"
	LicenseStatusPendingSignature LicenseStatus = "pending_signature"
	LicenseStatusActive           LicenseStatus = "active"
	LicenseStatusExpiringSoon     LicenseStatus = "expiring_soon"
	LicenseStatusExpired          LicenseStatus = "expired"
	LicenseStatusRenewed          LicenseStatus = "renewed"
	LicenseStatusTerminated       LicenseStatus = "terminated"
	LicenseStatusDisputed         LicenseStatus = "disputed"
	LicenseStatusCanceled         LicenseStatus = "canceled"
	LicenseStatusSuspended        LicenseStatus = "suspended"
)

// LicenseEvent names the trigger of a status transition.
type LicenseEvent string

const (
	EventSubmit         LicenseEvent = "submit"
	EventApprove        LicenseEvent = "approve"
	EventSign           LicenseEvent = "sign"
	EventExpireSoon     LicenseEvent = "expire_soon"
	EventExpire         LicenseEvent = "expire"
	EventRenew          LicenseEvent = "renew"
	EventTerminate      LicenseEvent = "terminate"
	EventDispute        LicenseEvent = "dispute"
	EventResolveDispute LicenseEvent = "resolve_dispute"
	EventSuspend        LicenseEvent = "suspend"
	EventReinstate      LicenseEvent = "reinstate"
	EventCancel         LicenseEvent = "cancel"
)

type AmendmentType string

const (
	AmendmentTypeFinancial AmendmentType = "financial"
	AmendmentTypeScope     AmendmentType = "scope"
	AmendmentTypeDates     AmendmentType = "dates"
	AmendmentTypeOther     AmendmentType = "other"
)

type AmendmentStatus string

const (
	AmendmentStatusProposed   AmendmentStatus = "proposed"
	AmendmentStatusApproved   AmendmentStatus = "approved"
	AmendmentStatusRejected   AmendmentStatus = "rejected"
	AmendmentStatusSuperseded AmendmentStatus = "superseded"
)

type ExtensionStatus string

const (
	ExtensionStatusPending  ExtensionStatus = "pending"
	ExtensionStatusApproved ExtensionStatus = "approved"
	ExtensionStatusRejected ExtensionStatus = "rejected"
	ExtensionStatusExpired  ExtensionStatus = "expired"
)

type ApprovalDecision string

const (
	ApprovalDecisionPending  ApprovalDecision = "pending"
	ApprovalDecisionApproved ApprovalDecision = "approved"
	ApprovalDecisionRejected ApprovalDecision = "rejected"
)

type ApprovalSubject string

const (
	ApprovalSubjectLicense   ApprovalSubject = "license"
	ApprovalSubjectAmendment ApprovalSubject = "amendment"
	ApprovalSubjectExtension ApprovalSubject = "extension"
)

type ConflictType string

const (
	ConflictTypeExclusiveOverlap ConflictType = "exclusive_overlap"
	ConflictTypeTerritoryOverlap ConflictType = "territory_overlap"
	ConflictTypeCompetitorBlock  ConflictType = "competitor_blocked"
	ConflictTypeDateOverlap      ConflictType = "date_overlap"
)

type RenewalStrategy string

const (
	RenewalStrategyStandard        RenewalStrategy = "standard"
	RenewalStrategyLoyaltyDiscount RenewalStrategy = "loyalty_discount"
	RenewalStrategyMarketRate      RenewalStrategy = "market_rate"
	RenewalStrategyNegotiated      RenewalStrategy = "negotiated"
	RenewalStrategyAutomatic       RenewalStrategy = "automatic"
)

type OfferStatus string

const (
	OfferStatusOpen       OfferStatus = "open"
	OfferStatusAccepted   OfferStatus = "accepted"
	OfferStatusDeclined   OfferStatus = "declined"
	OfferStatusExpired    OfferStatus = "expired"
	OfferStatusSuperseded OfferStatus = "superseded"
)

type OwnershipType string

const (
	OwnershipTypePrimary      OwnershipType = "primary"
	OwnershipTypeCollaborator OwnershipType = "collaborator"
	OwnershipTypeAssigned     OwnershipType = "assigned"
)

type AssetStatus string

const (
	AssetStatusActive   AssetStatus = "active"
	AssetStatusRetired  AssetStatus = "retired"
	AssetStatusDisputed AssetStatus = "disputed"
)

type TransactionType string

const (
	TransactionTypeLicenseFee   TransactionType = "license_fee"
	TransactionTypeAmendmentFee TransactionType = "amendment_fee"
	TransactionTypeExtensionFee TransactionType = "extension_fee"
	TransactionTypeRenewalFee   TransactionType = "renewal_fee"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

const (
	// ShareScale is the parts-per-10000 denominator used for ownership and
	// revenue shares: 10000 == 100%.
	ShareScale = 10000
)

// FullShares reports whether the given basis-point shares sum to exactly 100%.
func FullShares(shares []int) bool {
	total := 0
	for _, s := range shares {
		total += s
	}
	return total == ShareScale
}
