// internal/services/license_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

func span(daysFromNow, durationDays int) (time.Time, time.Time) {
	start := time.Now().AddDate(0, 0, daysFromNow)
	return start, start.AddDate(0, 0, durationDays)
}

func TestCreateLicenseValidation(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)

	_, err := f.licenses.CreateLicense(f.brand.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: models.LicenseTypeNonExclusive,
		StartDate:   end,
		EndDate:     start, // inverted
		FeeAmount:   500000,
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	// creators cannot propose licenses
	_, err = f.licenses.CreateLicense(f.creator1.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: models.LicenseTypeNonExclusive,
		StartDate:   start,
		EndDate:     end,
		FeeAmount:   500000,
	})
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
}

func TestSubmitCreatesApprovalPerOwner(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.proposeLicense(t, models.LicenseTypeNonExclusive, start, end)

	assert.Equal(t, models.LicenseStatusPendingApproval, license.Status)

	var approvals []models.Approval
	require.NoError(t, f.db.Where("subject_type = ? AND subject_id = ?",
		models.ApprovalSubjectLicense, license.ID).Find(&approvals).Error)
	require.Len(t, approvals, 2)
}

func TestApprovalFlowActivates(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.proposeLicense(t, models.LicenseTypeNonExclusive, start, end)

	// first approval keeps it pending
	updated, err := f.licenses.RecordLicenseApproval(license.ID, f.creator1.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusPendingApproval, updated.Status)

	// final approval activates and issues a billing intent
	updated, err = f.licenses.RecordLicenseApproval(license.ID, f.creator2.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, updated.Status)

	var txCount int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("license_id = ? AND transaction_type = ?", license.ID, models.TransactionTypeLicenseFee).
		Count(&txCount).Error)
	assert.Equal(t, int64(1), txCount)
}

func TestRejectionCancelsProposal(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.proposeLicense(t, models.LicenseTypeNonExclusive, start, end)

	updated, err := f.licenses.RecordLicenseApproval(license.ID, f.creator2.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionRejected,
		Comments: "terms are not acceptable",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusCanceled, updated.Status)

	// the other owner's approval no longer applies
	_, err = f.licenses.RecordLicenseApproval(license.ID, f.creator1.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))
}

func TestSignatureInterposesWhenRequired(t *testing.T) {
	f := newFixture(t)
	f.cfg.Engine.RequireSignature = true
	start, end := span(1, 180)
	license := f.proposeLicense(t, models.LicenseTypeNonExclusive, start, end)

	_, err := f.licenses.RecordLicenseApproval(license.ID, f.creator1.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	updated, err := f.licenses.RecordLicenseApproval(license.ID, f.creator2.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusPendingSignature, updated.Status)

	signed, err := f.licenses.CaptureSignature(license.ID, f.brand.ID, &SignatureRequest{
		Document: []byte("signed agreement"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, signed.Status)
}

func TestIllegalTransitionsRejected(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	// an active license cannot be submitted or re-approved
	_, err := f.licenses.SubmitLicense(license.ID, f.brand.ID)
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))

	_, err = f.licenses.RecordLicenseApproval(license.ID, f.creator1.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))

	// terminated is terminal
	_, err = f.licenses.TerminateLicense(license.ID, f.brand.ID, &TerminateLicenseRequest{
		Reason: "relationship ended by mutual agreement",
	})
	require.NoError(t, err)

	_, err = f.licenses.DisputeLicense(license.ID, f.brand.ID, "raised after termination")
	assert.Equal(t, apperrors.CodeInvalidTransition, apperrors.CodeOf(err))
}

func TestTerminationRequiresSubstantiveReason(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	_, err := f.licenses.TerminateLicense(license.ID, f.brand.ID, &TerminateLicenseRequest{
		Reason: "done",
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	terminated, err := f.licenses.TerminateLicense(license.ID, f.brand.ID, &TerminateLicenseRequest{
		Reason: "brand discontinued the product line",
	})
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusTerminated, terminated.Status)
	assert.Equal(t, "brand discontinued the product line", terminated.TerminatedReason)
}

func TestDisputeAndResolution(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	disputed, err := f.licenses.DisputeLicense(license.ID, f.creator1.ID, "usage outside the licensed placements")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusDisputed, disputed.Status)

	// only admins resolve disputes
	_, err = f.licenses.ResolveDispute(license.ID, f.brand.ID, false, "resolved between the parties")
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))

	resolved, err := f.licenses.ResolveDispute(license.ID, f.admin.ID, false, "resolved between the parties")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, resolved.Status)
}

func TestSuspendAndReinstate(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	suspended, err := f.licenses.SuspendLicense(license.ID, f.admin.ID, "payment review in progress")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusSuspended, suspended.Status)

	reinstated, err := f.licenses.ReinstateLicense(license.ID, f.admin.ID, "payment review cleared")
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, reinstated.Status)
}

func TestStatusHistoryIsAppendOnlyAndOrdered(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	_, err := f.licenses.TerminateLicense(license.ID, f.brand.ID, &TerminateLicenseRequest{
		Reason: "campaign concluded ahead of schedule",
	})
	require.NoError(t, err)

	history, err := f.licenses.GetStatusHistory(license.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, models.EventSubmit, history[0].Event)
	assert.Equal(t, models.LicenseStatusDraft, history[0].FromStatus)
	assert.Equal(t, models.EventApprove, history[1].Event)
	assert.Equal(t, models.LicenseStatusActive, history[1].ToStatus)
	assert.Equal(t, models.EventTerminate, history[2].Event)

	// every entry chains from the previous one
	for i := 1; i < len(history); i++ {
		assert.Equal(t, history[i-1].ToStatus, history[i].FromStatus)
	}
}

func TestExclusiveActivationBlocksSecondLicense(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	f.activeLicense(t, models.LicenseTypeExclusive, start, end)

	// a second exclusive proposal over the same window dies at submission
	_, err := f.licenses.CreateLicense(f.brand2.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: models.LicenseTypeExclusive,
		StartDate:   start.AddDate(0, 0, 30),
		EndDate:     end.AddDate(0, 0, 30),
		FeeAmount:   400000,
		SubmitNow:   true,
	})
	assert.Equal(t, apperrors.CodeConflictDetected, apperrors.CodeOf(err))
}

func TestConcurrentExclusiveActivationOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)

	// both proposals enter the approval round as drafts first; neither is
	// active yet so drafts do not collide
	first, err := f.licenses.CreateLicense(f.brand.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: models.LicenseTypeExclusive,
		StartDate:   start,
		EndDate:     end,
		FeeAmount:   500000,
	})
	require.NoError(t, err)
	second, err := f.licenses.CreateLicense(f.brand2.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: models.LicenseTypeExclusive,
		StartDate:   start.AddDate(0, 0, 10),
		EndDate:     end.AddDate(0, 0, 10),
		FeeAmount:   450000,
	})
	require.NoError(t, err)

	_, err = f.licenses.SubmitLicense(first.ID, f.brand.ID)
	require.NoError(t, err)
	// the second submission sees the first one occupying the interval
	_, err = f.licenses.SubmitLicense(second.ID, f.brand2.ID)
	require.Equal(t, apperrors.CodeConflictDetected, apperrors.CodeOf(err))

	f.activateLicense(t, first)
}

func TestGetStatsDerivesRenewalRateFromHistory(t *testing.T) {
	f := newFixture(t)
	start := time.Now().AddDate(0, 0, -200)
	end := time.Now().AddDate(0, 0, -10)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	// the sweep expires it, then a renewal child activates
	f.scheduler.Sweep(time.Now())

	reloaded, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	require.Equal(t, models.LicenseStatusExpired, reloaded.Status)

	offer, err := f.renewals.GenerateOffer(license.ID, f.brand.ID, &GenerateOfferRequest{
		Strategy: models.RenewalStrategyStandard,
	})
	require.NoError(t, err)
	child, err := f.renewals.AcceptOffer(offer.ID, f.brand.ID)
	require.NoError(t, err)
	f.activateLicense(t, child)

	stats, err := f.licenses.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats["renewal_rate"])
}
