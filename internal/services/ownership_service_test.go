// internal/services/ownership_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

func TestGetOwnersCurrentSplit(t *testing.T) {
	f := newFixture(t)

	owners, err := f.ownership.GetOwners(nil, f.asset.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, owners, 2)

	// ordered by share, largest first
	assert.Equal(t, f.creator1.ID, owners[0].CreatorID)
	assert.Equal(t, 6000, owners[0].ShareBps)
	assert.Equal(t, f.creator2.ID, owners[1].CreatorID)
	assert.Equal(t, 4000, owners[1].ShareBps)
}

func TestGetOwnersPointInTime(t *testing.T) {
	f := newFixture(t)

	// end creator2's stake a month ago and hand the full share to creator1
	cutover := time.Now().AddDate(0, -1, 0)
	require.NoError(t, f.db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ?", f.asset.ID).
		Update("end_date", cutover).Error)
	require.NoError(t, f.db.Create(&models.OwnershipRecord{
		AssetID:   f.asset.ID,
		CreatorID: f.creator1.ID,
		ShareBps:  10000,
		StartDate: cutover,
	}).Error)

	current, err := f.ownership.GetOwners(nil, f.asset.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, 10000, current[0].ShareBps)

	// a read dated before the cutover still sees the old split
	past, err := f.ownership.GetOwners(nil, f.asset.ID, cutover.AddDate(0, 0, -10))
	require.NoError(t, err)
	require.Len(t, past, 2)
	assert.Equal(t, 6000, past[0].ShareBps)
	assert.Equal(t, 4000, past[1].ShareBps)
}

func TestGetOwnersEnforcesFullShares(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ? AND creator_id = ?", f.asset.ID, f.creator2.ID).
		Update("share_bps", 3000).Error)

	_, err := f.ownership.GetOwners(nil, f.asset.ID, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invariant")
}

func TestGetOwnersUnknownAsset(t *testing.T) {
	f := newFixture(t)

	_, err := f.ownership.GetOwners(nil, f.brand.ID, time.Now())
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestRequiredApproversSkipZeroShares(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ? AND creator_id = ?", f.asset.ID, f.creator1.ID).
		Update("share_bps", 10000).Error)
	require.NoError(t, f.db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ? AND creator_id = ?", f.asset.ID, f.creator2.ID).
		Update("share_bps", 0).Error)

	approvers, err := f.ownership.RequiredApprovers(nil, f.asset.ID, time.Now())
	require.NoError(t, err)
	require.Len(t, approvers, 1)
	assert.Equal(t, f.creator1.ID, approvers[0])
}

func TestDisputeBlocksNewLicenses(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.db.Model(&models.OwnershipRecord{}).
		Where("asset_id = ? AND creator_id = ?", f.asset.ID, f.creator2.ID).
		Update("disputed", true).Error)

	disputed, err := f.ownership.HasDispute(nil, f.asset.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, disputed)

	start := time.Now().AddDate(0, 0, 7)
	_, err = f.licenses.CreateLicense(f.brand.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: models.LicenseTypeNonExclusive,
		StartDate:   start,
		EndDate:     start.AddDate(0, 6, 0),
		FeeAmount:   500000,
		RevShareBps: 1500,
		Scope: ScopeRequest{
			MediaChannels: []string{"social"},
			Placements:    []string{"feed"},
			Territories:   []string{"US"},
		},
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestIsOwner(t *testing.T) {
	f := newFixture(t)

	yes, err := f.ownership.IsOwner(nil, f.asset.ID, f.creator1.ID)
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := f.ownership.IsOwner(nil, f.asset.ID, f.brand.ID)
	require.NoError(t, err)
	assert.False(t, no)
}
