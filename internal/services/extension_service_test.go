// internal/services/extension_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

func TestShortExtensionAutoApproves(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 100)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	// 10 days is below the 14-day auto-approve threshold
	extension, err := f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 10,
		Justification: "campaign flight extended by the media plan",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExtensionStatusApproved, extension.Status)
	assert.False(t, extension.ApprovalRequired)

	// fee is pro-rata: 500000 / 100 days * 10 days
	assert.Equal(t, int64(50000), extension.AdditionalFee)

	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, extension.NewEndDate, after.EndDate, time.Second)
	assert.Equal(t, 1, after.ExtensionCount)

	var fee models.Transaction
	require.NoError(t, f.db.Where("license_id = ? AND transaction_type = ?",
		license.ID, models.TransactionTypeExtensionFee).First(&fee).Error)
	assert.Equal(t, int64(50000), fee.Amount)
}

func TestLongExtensionNeedsOwnerApproval(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 100)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	extension, err := f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 60,
		Justification: "brand wants two more months of usage",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusPending, extension.Status)
	assert.True(t, extension.ApprovalRequired)

	// license untouched while pending
	mid, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, end, mid.EndDate, time.Second)

	_, err = f.extensions.RecordApproval(extension.ID, f.creator1.ID, &ExtensionDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)

	approved, err := f.extensions.RecordApproval(extension.ID, f.creator2.ID, &ExtensionDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusApproved, approved.Status)

	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, extension.NewEndDate, after.EndDate, time.Second)
}

func TestExtensionRejection(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 100)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	extension, err := f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 90,
		Justification: "brand wants a full extra quarter",
	})
	require.NoError(t, err)

	rejected, err := f.extensions.RecordApproval(extension.ID, f.creator1.ID, &ExtensionDecisionRequest{
		Decision: models.ApprovalDecisionRejected,
		Comments: "asset is committed elsewhere next quarter",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusRejected, rejected.Status)

	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.ExtensionCount)
}

func TestExtensionBounded(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 100)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	_, err := f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 500,
		Justification: "far beyond the permitted maximum",
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestExtensionConflictCheckOverWidenedInterval(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 100)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	// an exclusive license starts right when this one ends
	blocker, err := f.licenses.CreateLicense(f.brand2.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: models.LicenseTypeExclusive,
		StartDate:   end,
		EndDate:     end.AddDate(0, 0, 90),
		FeeAmount:   300000,
		SubmitNow:   true,
	})
	require.NoError(t, err)
	f.activateLicense(t, blocker)

	// even the auto-approve fast path re-runs conflict detection
	_, err = f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 10,
		Justification: "extension into an exclusively held window",
	})
	assert.Equal(t, apperrors.CodeConflictDetected, apperrors.CodeOf(err))

	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.ExtensionCount)
}

func TestSinglePendingExtensionAtATime(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 100)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	_, err := f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 60,
		Justification: "first extension request stays pending",
	})
	require.NoError(t, err)

	_, err = f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 30,
		Justification: "second request while one is pending",
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestExtensionDiesWithTerminatedLicense(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	extension, err := f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 60,
		Justification: "campaign flight extended by the media plan",
	})
	require.NoError(t, err)
	require.Equal(t, models.ExtensionStatusPending, extension.Status)

	_, err = f.licenses.TerminateLicense(license.ID, f.brand.ID, &TerminateLicenseRequest{
		Reason: "brand discontinued the product line",
	})
	require.NoError(t, err)

	resolved, err := f.extensions.RecordApproval(extension.ID, f.creator1.ID, &ExtensionDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusRejected, resolved.Status)

	// terminated license keeps its original end date and no fee is billed
	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, end, after.EndDate, time.Second)
	assert.Equal(t, 0, after.ExtensionCount)

	var fees int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("license_id = ? AND transaction_type = ?", license.ID, models.TransactionTypeExtensionFee).
		Count(&fees).Error)
	assert.Equal(t, int64(0), fees)
}
