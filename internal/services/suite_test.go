// internal/services/suite_test.go
package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/database"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

// newTestDB opens a fresh in-memory sqlite database with the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		Billing:     config.BillingConfig{Currency: "usd"},
		Engine:      testEngineConfig(),
	}
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		StandardRateAdjustmentPct: 5.0,
		LoyaltyDiscountPctPerTerm: 2.5,
		LoyaltyDiscountCapPct:     10.0,
		EarlyRenewalDiscountPct:   2.5,
		EarlyRenewalCapPct:        7.5,
		EarlyRenewalMinLeadDays:   30,
		PerformanceSwingCapPct:    10.0,
		MarketRatePullPct:         50.0,
		FeeFloorMinor:             10000,
		FeeCeilingMultiple:        2.0,

		RenewalWindowDays:    90,
		RenewalGraceDays:     30,
		OfferValidityDays:    14,
		RenewalTermDays:      365,
		ExpiringSoonLeadDays: 30,

		AutoApproveExtensionDays: 14,
		MaxExtensionDays:         365,
		AmendmentDeadlineMaxDays: 30,
		MinTerminationReasonLen:  20,

		RequireSignature: false,
		TxRetryAttempts:  3,
		SweepIntervalMin: 15,
		SweepBatchSize:   200,
	}
}

// fixture holds the standard cast: two creators splitting one asset 60/40,
// two brand accounts, and an admin.
type fixture struct {
	db       *gorm.DB
	cfg      *config.Config
	creator1 *models.User
	creator2 *models.User
	brand    *models.User
	brand2   *models.User
	admin    *models.User
	asset    *models.IPAsset

	ownership  *OwnershipService
	conflicts  *ConflictService
	events     *EventService
	billing    *BillingService
	contracts  *ContractService
	pricing    *PricingEngine
	licenses   *LicenseService
	amendments *AmendmentService
	extensions *ExtensionService
	renewals   *RenewalService
	scheduler  *SchedulerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	cfg := testConfig()

	f := &fixture{db: db, cfg: cfg}
	f.creator1 = f.createUser(t, "creator_one", models.UserTypeCreator)
	f.creator2 = f.createUser(t, "creator_two", models.UserTypeCreator)
	f.brand = f.createUser(t, "brand_main", models.UserTypeBrand)
	f.brand2 = f.createUser(t, "brand_rival", models.UserTypeBrand)
	f.admin = f.createUser(t, "admin_user", models.UserTypeAdmin)
	f.asset = f.createAsset(t, f.creator1.ID)
	f.splitOwnership(t, f.asset.ID, map[uuid.UUID]int{
		f.creator1.ID: 6000,
		f.creator2.ID: 4000,
	})

	f.ownership = NewOwnershipService(db)
	f.conflicts = NewConflictService(db)
	f.events = NewEventService(db, cfg)
	f.billing = NewBillingService(db, cfg)
	f.pricing = NewPricingEngine(cfg.Engine)

	contracts, err := NewContractService(cfg)
	require.NoError(t, err)
	f.contracts = contracts

	f.licenses = NewLicenseService(db, cfg, f.ownership, f.conflicts, f.events, f.billing, f.contracts)
	f.amendments = NewAmendmentService(db, cfg, f.ownership, f.conflicts, f.licenses, f.events, f.billing)
	f.extensions = NewExtensionService(db, cfg, f.ownership, f.conflicts, f.licenses, f.pricing, f.events, f.billing)
	f.renewals = NewRenewalService(db, cfg, f.conflicts, f.licenses, f.pricing, f.events)
	f.scheduler = NewSchedulerService(db, cfg, f.licenses, f.amendments, f.extensions, f.renewals, f.events)

	return f
}

func (f *fixture) createUser(t *testing.T, username string, userType models.UserType) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		UserType: userType,
		Status:   models.UserStatusActive,
	}
	require.NoError(t, user.SetPassword("test-password-1"))
	require.NoError(t, f.db.Create(user).Error)
	return user
}

func (f *fixture) createAsset(t *testing.T, creatorID uuid.UUID) *models.IPAsset {
	t.Helper()
	asset := &models.IPAsset{
		CreatorID: creatorID,
		Title:     "Summer Campaign Footage",
		Category:  "video",
		Status:    models.AssetStatusActive,
	}
	require.NoError(t, f.db.Create(asset).Error)
	return asset
}

func (f *fixture) splitOwnership(t *testing.T, assetID uuid.UUID, shares map[uuid.UUID]int) {
	t.Helper()
	for creatorID, bps := range shares {
		record := &models.OwnershipRecord{
			AssetID:   assetID,
			CreatorID: creatorID,
			ShareBps:  bps,
			StartDate: time.Now().AddDate(-1, 0, 0),
		}
		require.NoError(t, f.db.Create(record).Error)
	}
}

// proposeLicense creates and submits a license for the default brand/asset.
func (f *fixture) proposeLicense(t *testing.T, licenseType models.LicenseType, start, end time.Time) *models.License {
	t.Helper()
	license, err := f.licenses.CreateLicense(f.brand.ID, &CreateLicenseRequest{
		AssetID:     f.asset.ID,
		LicenseType: licenseType,
		StartDate:   start,
		EndDate:     end,
		FeeAmount:   500000,
		RevShareBps: 1500,
		Scope: ScopeRequest{
			MediaChannels: []string{"social", "web"},
			Placements:    []string{"feed"},
			Territories:   []string{"US", "CA"},
		},
		SubmitNow: true,
	})
	require.NoError(t, err)
	return license
}

// activateLicense drives a submitted license through both owner approvals.
func (f *fixture) activateLicense(t *testing.T, license *models.License) *models.License {
	t.Helper()
	_, err := f.licenses.RecordLicenseApproval(license.ID, f.creator1.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)

	updated, err := f.licenses.RecordLicenseApproval(license.ID, f.creator2.ID, &LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(t, err)
	require.Equal(t, models.LicenseStatusActive, updated.Status)
	return updated
}

// activeLicense proposes and fully activates a license in one step.
func (f *fixture) activeLicense(t *testing.T, licenseType models.LicenseType, start, end time.Time) *models.License {
	t.Helper()
	return f.activateLicense(t, f.proposeLicense(t, licenseType, start, end))
}
