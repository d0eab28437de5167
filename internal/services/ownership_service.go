// internal/services/ownership_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

// OwnershipService is the engine's read-only slice of the Ownership Ledger.
// It answers two questions: who must approve, and who gets paid.
type OwnershipService struct {
	db *gorm.DB
}

// Owner is one royalty-eligible party at an instant.
type Owner struct {
	CreatorID uuid.UUID            `json:"creator_id"`
	ShareBps  int                  `json:"share_bps"`
	Type      models.OwnershipType `json:"ownership_type"`
}

func NewOwnershipService(db *gorm.DB) *OwnershipService {
	return &OwnershipService{db: db}
}

// GetOwners returns the creators holding a share of the asset at the given
// instant. The ledger invariant (shares sum to exactly 10000) is verified
// on every read rather than trusted.
func (s *OwnershipService) GetOwners(db *gorm.DB, assetID uuid.UUID, at time.Time) ([]Owner, error) {
	if db == nil {
		db = s.db
	}

	var records []models.OwnershipRecord
	if err := db.Where("asset_id = ? AND start_date <= ? AND (end_date IS NULL OR end_date > ?)",
		assetID, at, at).
		Order("share_bps DESC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch ownership records: %w", err)
	}

	owners := make([]Owner, 0, len(records))
	shares := make([]int, 0, len(records))
	for _, r := range records {
		if !r.ActiveAt(at) {
			continue
		}
		owners = append(owners, Owner{
			CreatorID: r.CreatorID,
			ShareBps:  r.ShareBps,
			Type:      r.OwnershipType,
		})
		shares = append(shares, r.ShareBps)
	}

	if len(owners) == 0 {
		return nil, apperrors.NotFound("ownership", assetID)
	}

	if !models.FullShares(shares) {
		return nil, fmt.Errorf("ownership ledger invariant violated for asset %s: shares do not sum to %d",
			assetID, models.ShareScale)
	}

	return owners, nil
}

// HasDispute reports whether any current ownership record of the asset is
// flagged as disputed. A disputed asset cannot take on new licenses.
func (s *OwnershipService) HasDispute(db *gorm.DB, assetID uuid.UUID, at time.Time) (bool, error) {
	if db == nil {
		db = s.db
	}

	var count int64
	if err := db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ? AND disputed = ? AND start_date <= ? AND (end_date IS NULL OR end_date > ?)",
			assetID, true, at, at).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check ownership disputes: %w", err)
	}
	return count > 0, nil
}

// RequiredApprovers returns the creator ids whose approval a license
// activation or amendment needs: every owner with a non-zero share at the
// given instant.
func (s *OwnershipService) RequiredApprovers(db *gorm.DB, assetID uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	owners, err := s.GetOwners(db, assetID, at)
	if err != nil {
		return nil, err
	}

	approvers := make([]uuid.UUID, 0, len(owners))
	for _, o := range owners {
		if o.ShareBps > 0 {
			approvers = append(approvers, o.CreatorID)
		}
	}
	return approvers, nil
}

// IsOwner reports whether creatorID holds a non-zero share of the asset now.
func (s *OwnershipService) IsOwner(db *gorm.DB, assetID, creatorID uuid.UUID) (bool, error) {
	owners, err := s.GetOwners(db, assetID, time.Now())
	if err != nil {
		return false, err
	}
	for _, o := range owners {
		if o.CreatorID == creatorID && o.ShareBps > 0 {
			return true, nil
		}
	}
	return false, nil
}
