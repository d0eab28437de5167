// internal/services/conflict_service.go
package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/metrics"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

// ConflictService decides whether a proposed or modified license collides
// with any license already occupying the asset.
type ConflictService struct {
	db *gorm.DB
}

// Conflict is one reason a candidate license collides with an existing one.
type Conflict struct {
	Type               models.ConflictType `json:"type"`
	LicenseID          uuid.UUID           `json:"license_id"`
	LicenseStatus      models.LicenseStatus `json:"license_status"`
	BrandID            uuid.UUID           `json:"brand_id"`
	Detail             string              `json:"detail"`
	HardBlocking       bool                `json:"hard_blocking"`
	OverlapStart       time.Time           `json:"overlap_start"`
	OverlapEnd         time.Time           `json:"overlap_end"`
}

// ConflictCheckResult is ephemeral: computed inside the gating transaction,
// returned to the caller, never persisted.
type ConflictCheckResult struct {
	HasConflicts bool       `json:"has_conflicts"`
	Conflicts    []Conflict `json:"conflicts"`
}

// HardBlocking returns only the conflicts that must block the operation.
func (r *ConflictCheckResult) HardBlocking() []Conflict {
	var out []Conflict
	for _, c := range r.Conflicts {
		if c.HardBlocking {
			out = append(out, c)
		}
	}
	return out
}

// Blocked reports whether any hard-blocking conflict is present.
func (r *ConflictCheckResult) Blocked() bool {
	return len(r.HardBlocking()) > 0
}

// ConflictProbe carries everything the detector needs about the candidate.
type ConflictProbe struct {
	AssetID          uuid.UUID
	BrandID          uuid.UUID
	LicenseType      models.LicenseType
	Scope            models.LicenseScope
	StartDate        time.Time
	EndDate          time.Time
	ExcludeLicenseID *uuid.UUID
}

func NewConflictService(db *gorm.DB) *ConflictService {
	return &ConflictService{db: db}
}

// CheckConflicts evaluates the probe against every license occupying the
// asset over an intersecting interval. All matching reasons are returned; a
// single candidate can trigger several. The check is re-run, never cached:
// the competing set can change between proposal and approval, so callers gate
// activations by invoking this inside the same transaction that commits the
// change (pass that tx and lock=true).
func (s *ConflictService) CheckConflicts(tx *gorm.DB, probe ConflictProbe, lock bool) (*ConflictCheckResult, error) {
	if tx == nil {
		tx = s.db
	}

	if !probe.StartDate.Before(probe.EndDate) {
		return nil, apperrors.Validation("conflict probe has an empty interval")
	}

	query := tx.Model(&models.License{}).
		Where("asset_id = ?", probe.AssetID).
		Where("status IN ?", []models.LicenseStatus{
			models.LicenseStatusActive,
			models.LicenseStatusExpiringSoon,
			models.LicenseStatusPendingApproval,
			models.LicenseStatusPendingSignature,
		}).
		// half-open interval overlap: a.start < b.end && b.start < a.end
		Where("start_date < ? AND ? < end_date", probe.EndDate, probe.StartDate)

	if probe.ExcludeLicenseID != nil {
		query = query.Where("id != ?", *probe.ExcludeLicenseID)
	}
	if lock {
		query = forUpdate(query)
	}

	var candidates []models.License
	if err := query.Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch conflict candidates: %w", err)
	}

	result := &ConflictCheckResult{}
	for i := range candidates {
		existing := &candidates[i]
		// Candidacy is decided on the loaded row, not the SQL match.
		if !existing.Occupying() || !existing.Overlaps(probe.StartDate, probe.EndDate) {
			continue
		}
		for _, c := range s.evaluate(probe, existing) {
			metrics.ConflictsDetected.WithLabelValues(string(c.Type)).Inc()
			result.Conflicts = append(result.Conflicts, c)
		}
	}

	result.HasConflicts = len(result.Conflicts) > 0
	return result, nil
}

// evaluate applies each conflict rule to one candidate pair. Rules are
// symmetric: either side being exclusive (or blocking the other's brand)
// produces the conflict.
func (s *ConflictService) evaluate(probe ConflictProbe, existing *models.License) []Conflict {
	var conflicts []Conflict

	overlapStart := maxTime(probe.StartDate, existing.StartDate)
	overlapEnd := minTime(probe.EndDate, existing.EndDate)

	base := Conflict{
		LicenseID:     existing.ID,
		LicenseStatus: existing.Status,
		BrandID:       existing.BrandID,
		OverlapStart:  overlapStart,
		OverlapEnd:    overlapEnd,
	}

	// EXCLUSIVE_OVERLAP: either side fully exclusive
	if probe.LicenseType == models.LicenseTypeExclusive || existing.LicenseType == models.LicenseTypeExclusive {
		c := base
		c.Type = models.ConflictTypeExclusiveOverlap
		c.HardBlocking = true
		c.Detail = "an exclusive license occupies this asset over an intersecting interval"
		conflicts = append(conflicts, c)
	}

	// TERRITORY_OVERLAP: either side territory-exclusive with shared territory
	if probe.LicenseType == models.LicenseTypeExclusiveTerritory || existing.LicenseType == models.LicenseTypeExclusiveTerritory {
		if territoriesIntersect(probe.Scope.Territories, existing.Scope.Territories) {
			c := base
			c.Type = models.ConflictTypeTerritoryOverlap
			c.HardBlocking = true
			c.Detail = "territory-exclusive grants intersect over an intersecting interval"
			conflicts = append(conflicts, c)
		}
	}

	// COMPETITOR_BLOCKED: one side's brand is on the other's blocked list for
	// the same exclusivity category, in either direction
	if probe.Scope.ExclusivityCategory != "" &&
		probe.Scope.ExclusivityCategory == existing.Scope.ExclusivityCategory {
		if existing.Scope.BlockedCompetitors.Contains(probe.BrandID.String()) ||
			probe.Scope.BlockedCompetitors.Contains(existing.BrandID.String()) {
			c := base
			c.Type = models.ConflictTypeCompetitorBlock
			c.HardBlocking = true
			c.Detail = "brand is blocked as a competitor in this exclusivity category"
			conflicts = append(conflicts, c)
		}
	}

	// DATE_OVERLAP: informational only, for two non-exclusive licenses whose
	// media/placement scope fully coincides
	if probe.LicenseType == models.LicenseTypeNonExclusive &&
		existing.LicenseType == models.LicenseTypeNonExclusive &&
		sameSet(probe.Scope.MediaChannels, existing.Scope.MediaChannels) &&
		sameSet(probe.Scope.Placements, existing.Scope.Placements) {
		c := base
		c.Type = models.ConflictTypeDateOverlap
		c.HardBlocking = false
		c.Detail = "a non-exclusive license with identical media and placement scope overlaps these dates"
		conflicts = append(conflicts, c)
	}

	return conflicts
}

// territoriesIntersect treats an empty list and "GLOBAL" as covering
// everything.
func territoriesIntersect(a, b models.StringList) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}
	if a.Contains("GLOBAL") || b.Contains("GLOBAL") {
		return true
	}
	return a.Intersects(b)
}

// sameSet compares two scope lists as sets: order and duplicates are
// irrelevant.
func sameSet(a, b models.StringList) bool {
	left := make(map[string]struct{}, len(a))
	for _, s := range a {
		left[s] = struct{}{}
	}
	right := make(map[string]struct{}, len(b))
	for _, s := range b {
		right[s] = struct{}{}
	}
	if len(left) != len(right) {
		return false
	}
	for s := range left {
		if _, ok := right[s]; !ok {
			return false
		}
	}
	return true
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
