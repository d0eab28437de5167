// internal/models/ownership.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// OwnershipRecord is one creator's time-bounded fractional share of an asset.
// The ledger guarantees that at any instant the non-ended shares of an asset
// sum to exactly ShareScale; the engine relies on that invariant to route
// approvals and royalties.
type OwnershipRecord struct {
	BaseModel
	AssetID       uuid.UUID     `json:"asset_id" gorm:"type:uuid;not null;index"`
	CreatorID     uuid.UUID     `json:"creator_id" gorm:"type:uuid;not null;index"`
	ShareBps      int           `json:"share_bps" gorm:"not null"`
	OwnershipType OwnershipType `json:"ownership_type" gorm:"type:varchar(20);default:'primary'"`
	StartDate     time.Time     `json:"start_date" gorm:"not null"`
	EndDate       *time.Time    `json:"end_date,omitempty"`
	Disputed      bool          `json:"disputed" gorm:"default:false"`

	// Relationships
	Asset   IPAsset `json:"asset,omitempty" gorm:"foreignKey:AssetID"`
	Creator User    `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
}

// ActiveAt reports whether the record covers the given instant.
func (r *OwnershipRecord) ActiveAt(at time.Time) bool {
	if at.Before(r.StartDate) {
		return false
	}
	return r.EndDate == nil || at.Before(*r.EndDate)
}
