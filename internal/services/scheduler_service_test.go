// internal/services/scheduler_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

func TestSweepMarksExpiringSoon(t *testing.T) {
	f := newFixture(t)

	// ends inside the lead window (default 30 days) but not yet past
	end := time.Now().AddDate(0, 0, 10)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, end.AddDate(0, 0, -180), end)

	f.scheduler.Sweep(time.Now())

	reloaded, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusExpiringSoon, reloaded.Status)

	// a license outside the lead window is left alone
	farEnd := time.Now().AddDate(0, 0, 120)
	far := f.activeLicense(t, models.LicenseTypeNonExclusive, farEnd.AddDate(0, 0, -180), farEnd)
	f.scheduler.Sweep(time.Now())

	reloaded, err = f.licenses.GetLicense(far.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusActive, reloaded.Status)
}

func TestSweepExpiresPastEndDate(t *testing.T) {
	f := newFixture(t)

	end := time.Now().AddDate(0, 0, -1)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, end.AddDate(0, 0, -180), end)

	f.scheduler.Sweep(time.Now())

	reloaded, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusExpired, reloaded.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newFixture(t)

	end := time.Now().AddDate(0, 0, -1)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, end.AddDate(0, 0, -180), end)

	f.scheduler.Sweep(time.Now())
	before, err := f.licenses.GetStatusHistory(license.ID)
	require.NoError(t, err)

	f.scheduler.Sweep(time.Now())
	f.scheduler.Sweep(time.Now())

	after, err := f.licenses.GetStatusHistory(license.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	reloaded, err := f.licenses.GetLicense(license.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LicenseStatusExpired, reloaded.Status)
}

func TestSweepExpiresOpenOffers(t *testing.T) {
	f := newFixture(t)
	license := expiringLicense(t, f, 75, 0)

	offer, err := f.renewals.GenerateOffer(license.ID, f.brand.ID, &GenerateOfferRequest{
		Strategy: models.RenewalStrategyStandard,
	})
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.RenewalOffer{}).
		Where("id = ?", offer.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	f.scheduler.Sweep(time.Now())

	reloaded, err := f.renewals.GetOffer(offer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OfferStatusExpired, reloaded.Status)
}

func TestSweepResolvesOverdueApprovalRounds(t *testing.T) {
	f := newFixture(t)
	end := time.Now().AddDate(0, 0, 120)
	license := f.activeLicense(t, models.LicenseTypeNonExclusive, end.AddDate(0, 0, -60), end)

	amendment, err := f.amendments.ProposeAmendment(license.ID, f.brand.ID, &ProposeAmendmentRequest{
		AmendmentType: models.AmendmentTypeFinancial,
		Changes:       map[string]interface{}{"fee_amount": int64(600000)},
		Justification: "annual fee review and market correction",
	})
	require.NoError(t, err)

	extension, err := f.extensions.RequestExtension(license.ID, f.brand.ID, &RequestExtensionRequest{
		ExtensionDays: 90,
		Justification: "campaign flight extended by the media plan",
	})
	require.NoError(t, err)
	require.Equal(t, models.ExtensionStatusPending, extension.Status)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, f.db.Model(&models.Amendment{}).
		Where("id = ?", amendment.ID).Update("approval_deadline", past).Error)
	require.NoError(t, f.db.Model(&models.Extension{}).
		Where("id = ?", extension.ID).Update("approval_deadline", past).Error)

	f.scheduler.Sweep(time.Now())

	gotAmendment, err := f.amendments.GetAmendment(amendment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AmendmentStatusRejected, gotAmendment.Status)

	var gotExtension models.Extension
	require.NoError(t, f.db.First(&gotExtension, "id = ?", extension.ID).Error)
	assert.Equal(t, models.ExtensionStatusExpired, gotExtension.Status)
}
