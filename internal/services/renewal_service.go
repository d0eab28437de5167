// internal/services/renewal_service.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/metrics"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
	"github.com/machinesoul11/yg-backend-sub001/internal/utils"
)

// RenewalService orchestrates the offer lifecycle: eligibility check, offer
// generation through the pricing engine, and single-consume acceptance that
// spawns the child license.
type RenewalService struct {
	db        *gorm.DB
	cfg       *config.Config
	conflicts *ConflictService
	licenses  *LicenseService
	pricing   *PricingEngine
	events    *EventService
}

type GenerateOfferRequest struct {
	Strategy            models.RenewalStrategy `json:"strategy" validate:"required,oneof=standard loyalty_discount market_rate negotiated automatic"`
	CustomAdjustmentPct *float64               `json:"custom_adjustment_pct,omitempty"`
	PerformanceScore    float64                `json:"performance_score,omitempty" validate:"omitempty,min=0"`
	MarketBenchmarkFee  int64                  `json:"market_benchmark_fee,omitempty" validate:"omitempty,min=0"`
	TermDays            int                    `json:"term_days,omitempty" validate:"omitempty,min=1"`
}

// EligibilityResult is a read-only preview; nothing is locked or written.
type EligibilityResult struct {
	Eligible      bool                 `json:"eligible"`
	Reasons       []string             `json:"reasons,omitempty"`
	WindowOpens   time.Time            `json:"window_opens"`
	WindowCloses  time.Time            `json:"window_closes"`
	PriorRenewals int                  `json:"prior_renewals"`
	Conflicts     []Conflict           `json:"conflicts,omitempty"`
	ProposedTerm  [2]time.Time         `json:"proposed_term"`
	Status        models.LicenseStatus `json:"status"`
}

func NewRenewalService(db *gorm.DB, cfg *config.Config, conflicts *ConflictService, licenses *LicenseService, pricing *PricingEngine, events *EventService) *RenewalService {
	return &RenewalService{
		db:        db,
		cfg:       cfg,
		conflicts: conflicts,
		licenses:  licenses,
		pricing:   pricing,
		events:    events,
	}
}

// CheckEligibility reports whether the license can be renewed right now and,
// when it cannot, every reason why. Pure read; safe to call repeatedly.
func (s *RenewalService) CheckEligibility(licenseID uuid.UUID) (*EligibilityResult, error) {
	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	return s.evaluateEligibility(s.db, license, time.Now())
}

func (s *RenewalService) evaluateEligibility(db *gorm.DB, license *models.License, now time.Time) (*EligibilityResult, error) {
	termStart, termEnd := s.proposedTerm(license, 0)
	result := &EligibilityResult{
		WindowOpens:  license.EndDate.AddDate(0, 0, -s.cfg.Engine.RenewalWindowDays),
		WindowCloses: license.EndDate.AddDate(0, 0, s.cfg.Engine.RenewalGraceDays),
		ProposedTerm: [2]time.Time{termStart, termEnd},
		Status:       license.Status,
	}

	switch license.Status {
	case models.LicenseStatusActive, models.LicenseStatusExpiringSoon, models.LicenseStatusExpired:
	default:
		result.Reasons = append(result.Reasons, fmt.Sprintf("license status %s is not renewable", license.Status))
	}

	if now.Before(result.WindowOpens) {
		result.Reasons = append(result.Reasons, fmt.Sprintf("renewal window opens %s", result.WindowOpens.Format("2006-01-02")))
	}
	if now.After(result.WindowCloses) {
		result.Reasons = append(result.Reasons, fmt.Sprintf("renewal grace period ended %s", result.WindowCloses.Format("2006-01-02")))
	}

	var siblings int64
	if err := db.Model(&models.License{}).
		Where("parent_license_id = ?", license.ID).
		Count(&siblings).Error; err != nil {
		return nil, fmt.Errorf("failed to check for existing renewals: %w", err)
	}
	if siblings > 0 {
		result.Reasons = append(result.Reasons, "license has already been renewed")
	}

	priorRenewals, err := s.countPriorRenewals(db, license)
	if err != nil {
		return nil, err
	}
	result.PriorRenewals = priorRenewals

	conflictResult, err := s.conflicts.CheckConflicts(db, ConflictProbe{
		AssetID:          license.AssetID,
		BrandID:          license.BrandID,
		LicenseType:      license.LicenseType,
		Scope:            license.Scope,
		StartDate:        termStart,
		EndDate:          termEnd,
		ExcludeLicenseID: &license.ID,
	}, false)
	if err != nil {
		return nil, err
	}
	if conflictResult.Blocked() {
		result.Conflicts = conflictResult.HardBlocking()
		result.Reasons = append(result.Reasons, "renewed interval has hard-blocking conflicts")
	}

	result.Eligible = len(result.Reasons) == 0
	return result, nil
}

// GenerateOffer prices the renewal and stores a time-boxed offer against the
// license. A newer offer supersedes any open one.
func (s *RenewalService) GenerateOffer(licenseID, actorID uuid.UUID, req *GenerateOfferRequest) (*models.RenewalOffer, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid offer request: %v", err)
	}

	var offer *models.RenewalOffer
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		license, err := s.licenses.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if err := s.licenses.authorizeParty(tx, license, actorID); err != nil {
			return err
		}

		now := time.Now()
		eligibility, err := s.evaluateEligibility(tx, license, now)
		if err != nil {
			return err
		}
		if !eligibility.Eligible {
			return apperrors.Ineligible(eligibility.Reasons)
		}

		breakdown, err := s.pricing.Price(PricingInput{
			OriginalFee:         license.FeeAmount,
			OriginalRevShareBps: license.RevShareBps,
			PriorRenewals:       eligibility.PriorRenewals,
			DaysUntilExpiry:     daysUntil(now, license.EndDate),
			PerformanceScore:    req.PerformanceScore,
			MarketBenchmarkFee:  req.MarketBenchmarkFee,
			Strategy:            req.Strategy,
			CustomAdjustmentPct: req.CustomAdjustmentPct,
		})
		if err != nil {
			return err
		}

		if err := tx.Model(&models.RenewalOffer{}).
			Where("license_id = ? AND status = ?", license.ID, models.OfferStatusOpen).
			Update("status", models.OfferStatusSuperseded).Error; err != nil {
			return fmt.Errorf("failed to supersede prior offers: %w", err)
		}

		termStart, termEnd := s.proposedTerm(license, req.TermDays)
		offer = &models.RenewalOffer{
			LicenseID:   license.ID,
			Strategy:    req.Strategy,
			FeeAmount:   breakdown.FinalFee,
			RevShareBps: breakdown.FinalRevShareBps,
			Breakdown:   breakdownJSON(breakdown),
			Confidence:  breakdown.Confidence,
			TermStart:   termStart,
			TermEnd:     termEnd,
			ExpiresAt:   now.AddDate(0, 0, s.cfg.Engine.OfferValidityDays),
			Status:      models.OfferStatusOpen,
			GeneratedBy: actorID,
		}
		if err := tx.Create(offer).Error; err != nil {
			return fmt.Errorf("failed to store offer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RenewalOffers.WithLabelValues("generated").Inc()
	s.events.Emit(EventRenewalOfferGenerated, licenseID, &offer.ID, map[string]interface{}{
		"strategy":   string(offer.Strategy),
		"fee_amount": offer.FeeAmount,
		"expires_at": offer.ExpiresAt.Format(time.RFC3339),
	})

	return offer, nil
}

// PreviewPricing runs the pricing engine without writing anything.
func (s *RenewalService) PreviewPricing(licenseID uuid.UUID, req *GenerateOfferRequest) (*PricingBreakdown, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid pricing request: %v", err)
	}

	license, err := s.licenses.GetLicense(licenseID)
	if err != nil {
		return nil, err
	}
	priorRenewals, err := s.countPriorRenewals(s.db, license)
	if err != nil {
		return nil, err
	}

	return s.pricing.Price(PricingInput{
		OriginalFee:         license.FeeAmount,
		OriginalRevShareBps: license.RevShareBps,
		PriorRenewals:       priorRenewals,
		DaysUntilExpiry:     daysUntil(time.Now(), license.EndDate),
		PerformanceScore:    req.PerformanceScore,
		MarketBenchmarkFee:  req.MarketBenchmarkFee,
		Strategy:            req.Strategy,
		CustomAdjustmentPct: req.CustomAdjustmentPct,
	})
}

// AcceptOffer consumes the offer exactly once. Eligibility and conflicts are
// re-validated inside the transaction because facts can change between
// generation and acceptance. The child license starts in PENDING_APPROVAL;
// the parent moves to RENEWED only when the child activates.
func (s *RenewalService) AcceptOffer(offerID, actorID uuid.UUID) (*models.License, error) {
	var child *models.License
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		offer, err := s.lockOffer(tx, offerID)
		if err != nil {
			return err
		}

		parent, err := s.licenses.lockLicense(tx, offer.LicenseID)
		if err != nil {
			return err
		}
		if parent.BrandID != actorID {
			return apperrors.Forbidden("only the licensee can accept a renewal offer")
		}

		now := time.Now()
		if offer.Status != models.OfferStatusOpen {
			// A consumed or superseded offer is no longer addressable.
			if offer.Status == models.OfferStatusExpired {
				return apperrors.OfferExpired(offer.ID)
			}
			return apperrors.NotFound("offer", offer.ID)
		}
		if offer.Expired(now) {
			offer.Status = models.OfferStatusExpired
			offer.ResolvedAt = &now
			if err := tx.Save(offer).Error; err != nil {
				return fmt.Errorf("failed to expire offer: %w", err)
			}
			return apperrors.OfferExpired(offer.ID)
		}

		eligibility, err := s.evaluateEligibility(tx, parent, now)
		if err != nil {
			return err
		}
		if !eligibility.Eligible {
			return apperrors.Ineligible(eligibility.Reasons)
		}

		child = &models.License{
			AssetID:          parent.AssetID,
			BrandID:          parent.BrandID,
			LicenseType:      parent.LicenseType,
			Status:           models.LicenseStatusDraft,
			StartDate:        offer.TermStart,
			EndDate:          offer.TermEnd,
			FeeAmount:        offer.FeeAmount,
			Currency:         parent.Currency,
			RevShareBps:      offer.RevShareBps,
			BillingFrequency: parent.BillingFrequency,
			Scope:            parent.Scope,
			AutoRenew:        parent.AutoRenew,
			ParentLicenseID:  &parent.ID,
		}
		if err := tx.Create(child).Error; err != nil {
			return fmt.Errorf("failed to create renewal license: %w", err)
		}

		// Renewal terms were already negotiated through the offer, so the
		// child goes straight into the owner-approval round.
		if err := s.licenses.submit(tx, child, actorID); err != nil {
			return err
		}

		offer.Status = models.OfferStatusAccepted
		offer.AcceptedLicense = &child.ID
		offer.ResolvedAt = &now
		if err := tx.Save(offer).Error; err != nil {
			return fmt.Errorf("failed to consume offer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RenewalOffers.WithLabelValues("accepted").Inc()
	s.events.Emit(EventRenewalOfferAccepted, child.ID, &offerID, map[string]interface{}{
		"parent_license_id": child.ParentLicenseID.String(),
		"fee_amount":        child.FeeAmount,
	})

	return child, nil
}

// DeclineOffer closes the offer without consuming eligibility.
func (s *RenewalService) DeclineOffer(offerID, actorID uuid.UUID) (*models.RenewalOffer, error) {
	var offer *models.RenewalOffer
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		offer, err = s.lockOffer(tx, offerID)
		if err != nil {
			return err
		}
		license, err := s.licenses.lockLicense(tx, offer.LicenseID)
		if err != nil {
			return err
		}
		if license.BrandID != actorID {
			return apperrors.Forbidden("only the licensee can decline a renewal offer")
		}
		if offer.Status != models.OfferStatusOpen {
			return apperrors.Validation("offer is already %s", offer.Status)
		}

		now := time.Now()
		offer.Status = models.OfferStatusDeclined
		offer.ResolvedAt = &now
		if err := tx.Save(offer).Error; err != nil {
			return fmt.Errorf("failed to decline offer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RenewalOffers.WithLabelValues("declined").Inc()
	return offer, nil
}

func (s *RenewalService) GetOffer(offerID uuid.UUID) (*models.RenewalOffer, error) {
	var offer models.RenewalOffer
	if err := s.db.First(&offer, "id = ?", offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("offer", offerID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &offer, nil
}

// OpenOffer returns the license's single open offer, if any.
func (s *RenewalService) OpenOffer(licenseID uuid.UUID) (*models.RenewalOffer, error) {
	var offer models.RenewalOffer
	if err := s.db.Where("license_id = ? AND status = ?", licenseID, models.OfferStatusOpen).
		Order("created_at DESC").
		First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("offer", licenseID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &offer, nil
}

func (s *RenewalService) ListOffers(licenseID uuid.UUID) ([]models.RenewalOffer, error) {
	var offers []models.RenewalOffer
	if err := s.db.Where("license_id = ?", licenseID).
		Order("created_at DESC").
		Find(&offers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch offers: %w", err)
	}
	return offers, nil
}

// ExpireOverdueOffers closes open offers past their window. Sweep helper.
func (s *RenewalService) ExpireOverdueOffers(now time.Time, batchSize int) (int, error) {
	var ids []uuid.UUID
	if err := s.db.Model(&models.RenewalOffer{}).
		Where("status = ? AND expires_at < ?", models.OfferStatusOpen, now).
		Limit(batchSize).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find overdue offers: %w", err)
	}

	expired := 0
	for _, id := range ids {
		err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
			offer, err := s.lockOffer(tx, id)
			if err != nil {
				return err
			}
			if offer.Status != models.OfferStatusOpen || !offer.Expired(now) {
				return nil
			}
			offer.Status = models.OfferStatusExpired
			offer.ResolvedAt = &now
			if err := tx.Save(offer).Error; err != nil {
				return fmt.Errorf("failed to expire offer: %w", err)
			}
			return nil
		})
		if err != nil {
			return expired, err
		}
		metrics.RenewalOffers.WithLabelValues("expired").Inc()
		expired++
	}
	return expired, nil
}

// proposedTerm places the renewal interval immediately after the parent's
// end date, matching the parent's duration unless an explicit term is given.
func (s *RenewalService) proposedTerm(license *models.License, termDays int) (time.Time, time.Time) {
	if termDays <= 0 {
		termDays = license.DurationDays()
		if termDays <= 0 {
			termDays = s.cfg.Engine.RenewalTermDays
		}
	}
	start := license.EndDate
	return start, start.AddDate(0, 0, termDays)
}

// countPriorRenewals walks the parent chain upward.
func (s *RenewalService) countPriorRenewals(db *gorm.DB, license *models.License) (int, error) {
	count := 0
	current := license
	for current.ParentLicenseID != nil {
		var parent models.License
		if err := db.First(&parent, "id = ?", *current.ParentLicenseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return 0, fmt.Errorf("failed to walk renewal chain: %w", err)
		}
		count++
		current = &parent
	}
	return count, nil
}

func (s *RenewalService) lockOffer(tx *gorm.DB, offerID uuid.UUID) (*models.RenewalOffer, error) {
	var offer models.RenewalOffer
	if err := forUpdate(tx).
		First(&offer, "id = ?", offerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("offer", offerID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &offer, nil
}

func breakdownJSON(b *PricingBreakdown) models.JSONB {
	raw, err := json.Marshal(b)
	if err != nil {
		return models.JSONB{}
	}
	var out models.JSONB
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.JSONB{}
	}
	return out
}

func daysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}
