// internal/services/amendment_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

func TestProposeAmendmentNumbersSequentially(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	first, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": 600000},
		Justification: "expanded usage justifies a higher fee",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.AmendmentNumber)
	assert.Equal(t, models.AmendmentStatusProposed, first.Status)

	second, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": 650000},
		Justification: "revised after the first counter-offer",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, second.AmendmentNumber)

	// the newer proposal supersedes the first
	reloaded, err := f.amendments.GetAmendment(first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusSuperseded, reloaded.Status)
}

func TestAmendmentRejectsOutOfTypeFields(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	_, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"territories": []string{"US"}},
		Justification: "mismatched field for a financial amendment",
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	_, err = f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"asset_id": "cannot-touch"},
		Justification: "asset identity is not amendable",
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestAmendmentOnlyOnActiveLicenses(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.proposeLicense(t, models.LicenseTypeNonExclusive, start, end)

	_, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": 600000},
		Justification: "license is still pending approval",
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestAmendmentAppliedOnlyWhenAllApprove(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	amendment, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": 600000, "rev_share_bps": 2000},
		Justification: "expanded usage justifies revised terms",
	})
	require.NoError(t, err)

	// proposer's approval is implicit; first creator approving leaves one pending
	updated, err := f.amendments.RecordApproval(amendment.ID, f.creator1.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusProposed, updated.Status)

	// license untouched until the round completes
	mid, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), mid.FeeAmount)

	updated, err = f.amendments.RecordApproval(amendment.ID, f.creator2.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusApproved, updated.Status)

	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(600000), after.FeeAmount)
	assert.Equal(t, 2000, after.RevShareBps)
	assert.Equal(t, 1, after.AmendmentCount)

	// the fee increase produced a billing intent for the delta
	var delta models.Transaction
	require.NoError(t, f.db.Where("license_id = ? AND transaction_type = ?",
		license.ID, models.TransactionTypeAmendmentFee).First(&delta).Error)
	assert.Equal(t, int64(100000), delta.Amount)
}

func TestAmendmentSingleRejectionRejectsAll(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	amendment, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": 400000},
		Justification: "brand requests a fee reduction",
	})
	require.NoError(t, err)

	_, err = f.amendments.RecordApproval(amendment.ID, f.creator1.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)

	rejected, err := f.amendments.RecordApproval(amendment.ID, f.creator2.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionRejected,
		Comments: "reduction is not acceptable",
	})
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusRejected, rejected.Status)

	// license unchanged
	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500000), after.FeeAmount)
	assert.Equal(t, 0, after.AmendmentCount)
}

func TestAmendmentDeadlineExpiresLazily(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	amendment, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": 600000},
		Justification: "fee revision with a short deadline",
		DeadlineDays:  5,
	})
	require.NoError(t, err)

	// push the deadline into the past
	require.NoError(t, f.db.Model(&models.Amendment{}).
		Where("id = ?", amendment.ID).
		Update("approval_deadline", time.Now().AddDate(0, 0, -1)).Error)

	// next access resolves it as rejected
	reloaded, err := f.amendments.GetAmendment(amendment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusRejected, reloaded.Status)

	// a late approval cannot resurrect it
	_, err = f.amendments.RecordApproval(amendment.ID, f.creator1.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestDatesAmendmentRerunsConflictDetection(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 90)

	// non-exclusive license to amend, and an exclusive one right behind it
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

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

	// pushing the end date into the exclusive window must fail on the
	// final approval, leaving the license untouched
	amendment, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeDates,
		Changes:       map[string]interface{}{"end_date": end.AddDate(0, 0, 30).Format(time.RFC3339)},
		Justification: "campaign extended by a month",
	})
	require.NoError(t, err)

	_, err = f.amendments.RecordApproval(amendment.ID, f.creator1.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)

	_, err = f.amendments.RecordApproval(amendment.ID, f.creator2.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	assert.Equal(t, apperrors.CodeConflictDetected, apperrors.CodeOf(err))

	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, end, after.EndDate, time.Second)
}

func TestAmendmentDiesWithTerminatedLicense(t *testing.T) {
	f := newFixture(t)
	start, end := span(1, 180)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, start, end)

	amendment, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": 900000},
		Justification: "fee revision for broadened usage",
	})
	require.NoError(t, err)

	_, err = f.amendments.RecordApproval(amendment.ID, f.creator1.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)

	_, err = f.licenses.TerminateLicense(license.ID, f.brand.ID, &TerminateLicenseRequest{
		Reason: "brand discontinued the product line",
	})
	require.NoError(t, err)

	// the remaining approval cannot apply changes to a terminated license
	resolved, err := f.amendments.RecordApproval(amendment.ID, f.creator2.ID, &AmendmentDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusRejected, resolved.Status)

	after, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusTerminated, after.Status)
	assert.Equal(t, int64(500000), after.FeeAmount)
	assert.Equal(t, 0, after.AmendmentCount)

	var fees int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("license_id = ? AND transaction_type = ?", license.ID, models.TransactionTypeAmendmentFee).
		Count(&fees).Error)
	assert.Equal(t, int64(0), fees)
}
