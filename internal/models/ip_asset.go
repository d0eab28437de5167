// internal/models/ip_asset.go
package models

import (
	"github.com/google/uuid"
)

// IPAsset is the piece of intellectual property a license covers. The engine
// only needs identity, headline metadata and the disputed flag; asset files,
// transcoding and verification live elsewhere.
type IPAsset struct {
	BaseModel
	CreatorID   uuid.UUID   `json:"creator_id" gorm:"type:uuid;not null;index"`
	Title       string      `json:"title" gorm:"size:255;not null"`
	Description string      `json:"description" gorm:"type:text"`
	Category    string      `json:"category" gorm:"size:100;index"`
	Status      AssetStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	Metadata    JSONB       `json:"metadata" gorm:"type:jsonb"`

	// Relationships
	Creator   User              `json:"creator,omitempty" gorm:"foreignKey:CreatorID"`
	Licenses  []License         `json:"licenses,omitempty" gorm:"foreignKey:AssetID"`
	Ownership []OwnershipRecord `json:"ownership,omitempty" gorm:"foreignKey:AssetID"`
}
