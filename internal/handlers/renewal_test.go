// internal/handlers/renewal_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/database"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
	"github.com/machinesoul11/yg-backend-sub001/internal/services"
)

type RenewalHandlerTestSuite struct {
	suite.Suite
	db       *gorm.DB
	router   *gin.Engine
	creator  *models.User
	brand    *models.User
	asset    *models.IPAsset
	licenses *services.LicenseService
	renewals *services.RenewalService
}

func (s *RenewalHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	require.NoError(s.T(), database.Migrate(db))
	s.db = db

	cfg := &config.Config{
		Environment: "test",
		Billing:     config.BillingConfig{Currency: "usd"},
		Engine: config.EngineConfig{
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
			RenewalWindowDays:         90,
			RenewalGraceDays:          30,
			OfferValidityDays:         14,
			RenewalTermDays:           365,
			ExpiringSoonLeadDays:      30,
			AutoApproveExtensionDays:  14,
			MaxExtensionDays:          365,
			AmendmentDeadlineMaxDays:  30,
			MinTerminationReasonLen:   20,
			RequireSignature:          false,
			TxRetryAttempts:           3,
		},
	}

	s.creator = s.createUser("handler_creator", models.UserTypeCreator)
	s.brand = s.createUser("handler_brand", models.UserTypeBrand)

	s.asset = &models.IPAsset{
		CreatorID: s.creator.ID,
		Title:     "Winter Lookbook Stills",
		Category:  "photo",
		Status:    models.AssetStatusActive,
	}
	require.NoError(s.T(), db.Create(s.asset).Error)
	require.NoError(s.T(), db.Create(&models.OwnershipRecord{
		AssetID:   s.asset.ID,
		CreatorID: s.creator.ID,
		ShareBps:  10000,
		StartDate: time.Now().AddDate(-1, 0, 0),
	}).Error)

	ownership := services.NewOwnershipService(db)
	conflicts := services.NewConflictService(db)
	events := services.NewEventService(db, cfg)
	billing := services.NewBillingService(db, cfg)
	pricing := services.NewPricingEngine(cfg.Engine)
	contracts, err := services.NewContractService(cfg)
	require.NoError(s.T(), err)

	s.licenses = services.NewLicenseService(db, cfg, ownership, conflicts, events, billing, contracts)
	s.renewals = services.NewRenewalService(db, cfg, conflicts, s.licenses, pricing, events)

	handler := NewRenewalHandler(s.renewals)

	s.router = gin.New()
	s.router.Use(func(c *gin.Context) {
		c.Set("user_id", s.brand.ID.String())
		c.Set("user_type", string(models.UserTypeBrand))
	})
	s.router.POST("/v1/licenses/:id/renewal/accept", handler.AcceptOffer)
}

func (s *RenewalHandlerTestSuite) createUser(username string, userType models.UserType) *models.User {
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		UserType: userType,
		Status:   models.UserStatusActive,
	}
	require.NoError(s.T(), user.SetPassword("test-password-1"))
	require.NoError(s.T(), s.db.Create(user).Error)
	return user
}

// expiringLicenseWithOffer activates a license ending inside the renewal
// window and generates an open offer for it.
func (s *RenewalHandlerTestSuite) expiringLicenseWithOffer() (*models.License, *models.RenewalOffer) {
	end := time.Now().AddDate(0, 0, 75)
	license, err := s.licenses.CreateLicense(s.brand.ID, &services.CreateLicenseRequest{
		AssetID:     s.asset.ID,
		LicenseType: models.LicenseTypeNonExclusive,
		StartDate:   end.AddDate(0, 0, -180),
		EndDate:     end,
		FeeAmount:   500000,
		RevShareBps: 1500,
		Scope: services.ScopeRequest{
			MediaChannels: []string{"social", "web"},
			Placements:    []string{"feed"},
			Territories:   []string{"US", "CA"},
		},
		SubmitNow: true,
	})
	require.NoError(s.T(), err)

	license, err = s.licenses.RecordLicenseApproval(license.ID, s.creator.ID, &services.LicenseDecisionRequest{
		Decision: models.ApprovalDecisionApproved,
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), models.LicenseStatusActive, license.Status)

	offer, err := s.renewals.GenerateOffer(license.ID, s.brand.ID, &services.GenerateOfferRequest{
		Strategy: models.RenewalStrategyStandard,
	})
	require.NoError(s.T(), err)
	return license, offer
}

func (s *RenewalHandlerTestSuite) postAccept(licenseID, offerID uuid.UUID) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]interface{}{"offer_id": offerID.String()})
	req, _ := http.NewRequest("POST", "/v1/licenses/"+licenseID.String()+"/renewal/accept", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// An offer named in the body must belong to the license named in the path.
func (s *RenewalHandlerTestSuite) TestAcceptRejectsOfferFromAnotherLicense() {
	licenseA, _ := s.expiringLicenseWithOffer()
	_, offerB := s.expiringLicenseWithOffer()

	w := s.postAccept(licenseA.ID, offerB.ID)

	assert.Equal(s.T(), http.StatusNotFound, w.Code)

	var response map[string]interface{}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.False(s.T(), response["success"].(bool))

	// The foreign offer is untouched and no renewal license was created.
	var offer models.RenewalOffer
	require.NoError(s.T(), s.db.First(&offer, "id = ?", offerB.ID).Error)
	assert.Equal(s.T(), models.OfferStatusOpen, offer.Status)

	var children int64
	require.NoError(s.T(), s.db.Model(&models.License{}).
		Where("parent_license_id = ?", offer.LicenseID).
		Count(&children).Error)
	assert.Zero(s.T(), children)
}

func (s *RenewalHandlerTestSuite) TestAcceptNamedOfferOnItsOwnLicense() {
	license, offer := s.expiringLicenseWithOffer()

	w := s.postAccept(license.ID, offer.ID)

	assert.Equal(s.T(), http.StatusCreated, w.Code)

	var response map[string]interface{}
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(s.T(), response["success"].(bool))

	var child models.License
	require.NoError(s.T(), s.db.First(&child, "parent_license_id = ?", license.ID).Error)
	assert.Equal(s.T(), offer.FeeAmount, child.FeeAmount)
}

func TestRenewalHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(RenewalHandlerTestSuite))
}
