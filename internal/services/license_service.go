// internal/services/license_service.go
package services

import (
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

// LicenseService owns the canonical status of every license and enforces the
// legal transition table. Activating transitions obtain a clean conflict
// check inside the same transaction that commits the status change.
type LicenseService struct {
	db        *gorm.DB
	cfg       *config.Config
	ownership *OwnershipService
	conflicts *ConflictService
	events    *EventService
	billing   *BillingService
	contracts *ContractService
}

// transitionTable lists every legal (from, to) pair and its triggering event.
// Anything absent fails with InvalidTransition.
var transitionTable = map[models.LicenseEvent][][2]models.LicenseStatus{
	models.EventSubmit: {
		{models.LicenseStatusDraft, models.LicenseStatusPendingApproval},
	},
	models.EventApprove: {
		{models.LicenseStatusPendingApproval, models.LicenseStatusActive},
		{models.LicenseStatusPendingApproval, models.LicenseStatusPendingSignature},
	},
	models.EventSign: {
		{models.LicenseStatusPendingSignature, models.LicenseStatusActive},
	},
	models.EventExpireSoon: {
		{models.LicenseStatusActive, models.LicenseStatusExpiringSoon},
	},
	models.EventExpire: {
		{models.LicenseStatusActive, models.LicenseStatusExpired},
		{models.LicenseStatusExpiringSoon, models.LicenseStatusExpired},
	},
	models.EventRenew: {
		{models.LicenseStatusExpired, models.LicenseStatusRenewed},
	},
	models.EventTerminate: {
		{models.LicenseStatusActive, models.LicenseStatusTerminated},
		{models.LicenseStatusExpiringSoon, models.LicenseStatusTerminated},
		{models.LicenseStatusPendingApproval, models.LicenseStatusTerminated},
		{models.LicenseStatusPendingSignature, models.LicenseStatusTerminated},
		{models.LicenseStatusDisputed, models.LicenseStatusTerminated},
	},
	models.EventDispute: {
		{models.LicenseStatusActive, models.LicenseStatusDisputed},
		{models.LicenseStatusExpiringSoon, models.LicenseStatusDisputed},
		{models.LicenseStatusPendingApproval, models.LicenseStatusDisputed},
	},
	models.EventResolveDispute: {
		{models.LicenseStatusDisputed, models.LicenseStatusActive},
	},
	models.EventSuspend: {
		{models.LicenseStatusActive, models.LicenseStatusSuspended},
	},
	models.EventReinstate: {
		{models.LicenseStatusSuspended, models.LicenseStatusActive},
	},
	models.EventCancel: {
		{models.LicenseStatusDraft, models.LicenseStatusCanceled},
		{models.LicenseStatusPendingApproval, models.LicenseStatusCanceled},
	},
}

type CreateLicenseRequest struct {
	AssetID          uuid.UUID          `json:"asset_id" validate:"required"`
	LicenseType      models.LicenseType `json:"license_type" validate:"required,oneof=exclusive non_exclusive exclusive_territory"`
	StartDate        time.Time          `json:"start_date" validate:"required"`
	EndDate          time.Time          `json:"end_date" validate:"required"`
	FeeAmount        int64              `json:"fee_amount" validate:"required,min=1"`
	Currency         string             `json:"currency,omitempty"`
	RevShareBps      int                `json:"rev_share_bps" validate:"ppm10000"`
	BillingFrequency string             `json:"billing_frequency,omitempty" validate:"omitempty,oneof=one_time monthly quarterly annual"`
	Scope            ScopeRequest       `json:"scope"`
	AutoRenew        bool               `json:"auto_renew,omitempty"`
	SubmitNow        bool               `json:"submit_now,omitempty"`
}

type ScopeRequest struct {
	MediaChannels       []string `json:"media_channels,omitempty"`
	Placements          []string `json:"placements,omitempty"`
	Territories         []string `json:"territories,omitempty" validate:"omitempty,dive,territory"`
	ExclusivityCategory string   `json:"exclusivity_category,omitempty"`
	BlockedCompetitors  []string `json:"blocked_competitors,omitempty"`
	PermittedEdits      []string `json:"permitted_edits,omitempty"`
	CutdownsAllowed     bool     `json:"cutdowns_allowed,omitempty"`
}

type TerminateLicenseRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type LicenseDecisionRequest struct {
	Decision models.ApprovalDecision `json:"decision" validate:"required,oneof=approved rejected"`
	Comments string                  `json:"comments,omitempty"`
}

type SignatureRequest struct {
	Document    []byte `json:"document" validate:"required"`
	ContentType string `json:"content_type,omitempty"`
}

type LicenseSearchParams struct {
	utils.PaginationParams
	AssetID     *uuid.UUID            `json:"asset_id,omitempty"`
	BrandID     *uuid.UUID            `json:"brand_id,omitempty"`
	Status      *models.LicenseStatus `json:"status,omitempty"`
	LicenseType *models.LicenseType   `json:"license_type,omitempty"`
}

func NewLicenseService(db *gorm.DB, cfg *config.Config, ownership *OwnershipService, conflicts *ConflictService, events *EventService, billing *BillingService, contracts *ContractService) *LicenseService {
	return &LicenseService{
		db:        db,
		cfg:       cfg,
		ownership: ownership,
		conflicts: conflicts,
		events:    events,
		billing:   billing,
		contracts: contracts,
	}
}

// transition moves the license along the legal table inside the caller's
// transaction: status update, immutable history append, conflict gate for
// activating targets. It never commits; the caller's transaction does.
func (s *LicenseService) transition(tx *gorm.DB, license *models.License, event models.LicenseEvent, to models.LicenseStatus, actorID *uuid.UUID, reason string) error {
	if !legalTransition(event, license.Status, to) {
		return apperrors.InvalidTransition(string(license.Status), string(to))
	}

	// Activating a non-non-exclusive license (or pushing it into the
	// expiring-soon window) requires a clean conflict check against rows
	// locked in this same transaction. A dirty result rejects the
	// transition; the scope is never silently narrowed.
	if (to == models.LicenseStatusActive || to == models.LicenseStatusExpiringSoon) &&
		license.LicenseType != models.LicenseTypeNonExclusive {
		result, err := s.conflicts.CheckConflicts(tx, ConflictProbe{
			AssetID:          license.AssetID,
			BrandID:          license.BrandID,
			LicenseType:      license.LicenseType,
			Scope:            license.Scope,
			StartDate:        license.StartDate,
			EndDate:          license.EndDate,
			ExcludeLicenseID: &license.ID,
		}, true)
		if err != nil {
			return err
		}
		if result.Blocked() {
			return apperrors.ConflictDetected(result.HardBlocking())
		}
	}

	from := license.Status
	license.Status = to
	if to == models.LicenseStatusTerminated {
		license.TerminatedReason = reason
	}

	if err := tx.Save(license).Error; err != nil {
		return fmt.Errorf("failed to persist transition: %w", err)
	}

	historyEntry := &models.LicenseStatusEvent{
		LicenseID:  license.ID,
		FromStatus: from,
		ToStatus:   to,
		Event:      event,
		ActorID:    actorID,
		Reason:     reason,
	}
	if err := tx.Create(historyEntry).Error; err != nil {
		return fmt.Errorf("failed to append status history: %w", err)
	}

	metrics.Transitions.WithLabelValues(string(to), string(event)).Inc()
	return nil
}

func legalTransition(event models.LicenseEvent, from, to models.LicenseStatus) bool {
	for _, pair := range transitionTable[event] {
		if pair[0] == from && pair[1] == to {
			return true
		}
	}
	return false
}

// CreateLicense records a brand's proposal over an asset. With SubmitNow the
// license goes straight to PENDING_APPROVAL and its approval round opens.
func (s *LicenseService) CreateLicense(brandID uuid.UUID, req *CreateLicenseRequest) (*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid license proposal: %v", err)
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, apperrors.Validation("end date must be strictly after start date")
	}

	var brand models.User
	if err := s.db.First(&brand, "id = ?", brandID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user", brandID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if brand.Status != models.UserStatusActive {
		return nil, apperrors.Forbidden("brand account is not active")
	}
	if brand.UserType != models.UserTypeBrand {
		return nil, apperrors.Forbidden("only brands can propose licenses")
	}

	var asset models.IPAsset
	if err := s.db.First(&asset, "id = ?", req.AssetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("asset", req.AssetID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if asset.Status != models.AssetStatusActive {
		return nil, apperrors.Validation("asset is not available for licensing")
	}

	disputed, err := s.ownership.HasDispute(nil, req.AssetID, time.Now())
	if err != nil {
		return nil, err
	}
	if disputed {
		return nil, apperrors.Validation("asset ownership is under dispute")
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Billing.Currency
	}
	billingFrequency := req.BillingFrequency
	if billingFrequency == "" {
		billingFrequency = "one_time"
	}

	license := &models.License{
		AssetID:          req.AssetID,
		BrandID:          brandID,
		LicenseType:      req.LicenseType,
		Status:           models.LicenseStatusDraft,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
		FeeAmount:        req.FeeAmount,
		Currency:         currency,
		RevShareBps:      req.RevShareBps,
		BillingFrequency: billingFrequency,
		Scope: models.LicenseScope{
			MediaChannels:       models.StringList(req.Scope.MediaChannels),
			Placements:          models.StringList(req.Scope.Placements),
			Territories:         models.StringList(req.Scope.Territories),
			ExclusivityCategory: req.Scope.ExclusivityCategory,
			BlockedCompetitors:  models.StringList(req.Scope.BlockedCompetitors),
			PermittedEdits:      models.StringList(req.Scope.PermittedEdits),
			CutdownsAllowed:     req.Scope.CutdownsAllowed,
		},
		AutoRenew: req.AutoRenew,
	}

	err = runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		if err := tx.Create(license).Error; err != nil {
			return fmt.Errorf("failed to create license: %w", err)
		}

		if req.SubmitNow {
			return s.submit(tx, license, brandID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventLicenseProposed, license.ID, nil, map[string]interface{}{
		"asset_id": license.AssetID.String(),
		"brand_id": license.BrandID.String(),
		"status":   string(license.Status),
	})

	return license, nil
}

// SubmitLicense opens the approval round for a draft.
func (s *LicenseService) SubmitLicense(licenseID, actorID uuid.UUID) (*models.License, error) {
	var license *models.License
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		license, err = s.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if license.BrandID != actorID {
			return apperrors.Forbidden("only the proposing brand can submit this license")
		}
		return s.submit(tx, license, actorID)
	})
	if err != nil {
		return nil, err
	}
	return license, nil
}

// submit performs the draft -> pending_approval step: a non-blocking
// conflict precheck (hard conflicts reject the submission outright) and one
// pending approval row per current owner.
func (s *LicenseService) submit(tx *gorm.DB, license *models.License, actorID uuid.UUID) error {
	result, err := s.conflicts.CheckConflicts(tx, ConflictProbe{
		AssetID:          license.AssetID,
		BrandID:          license.BrandID,
		LicenseType:      license.LicenseType,
		Scope:            license.Scope,
		StartDate:        license.StartDate,
		EndDate:          license.EndDate,
		ExcludeLicenseID: &license.ID,
	}, true)
	if err != nil {
		return err
	}
	if result.Blocked() {
		return apperrors.ConflictDetected(result.HardBlocking())
	}

	if err := s.transition(tx, license, models.EventSubmit, models.LicenseStatusPendingApproval, &actorID, "submitted for owner approval"); err != nil {
		return err
	}

	approvers, err := s.ownership.RequiredApprovers(tx, license.AssetID, time.Now())
	if err != nil {
		return err
	}
	for _, approverID := range approvers {
		approval := &models.Approval{
			SubjectType: models.ApprovalSubjectLicense,
			SubjectID:   license.ID,
			LicenseID:   license.ID,
			ApproverID:  approverID,
			Role:        models.UserTypeCreator,
			Decision:    models.ApprovalDecisionPending,
		}
		if err := tx.Create(approval).Error; err != nil {
			return fmt.Errorf("failed to create approval record: %w", err)
		}
	}

	return nil
}

// RecordLicenseApproval stores one owner's decision. A rejection cancels the
// proposal immediately; the final approval activates the license (or parks it
// in PENDING_SIGNATURE when signature capture is required).
func (s *LicenseService) RecordLicenseApproval(licenseID, approverID uuid.UUID, req *LicenseDecisionRequest) (*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid approval decision: %v", err)
	}

	var license *models.License
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		license, err = s.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if license.Status != models.LicenseStatusPendingApproval {
			return apperrors.InvalidTransition(string(license.Status), string(models.LicenseStatusActive))
		}

		var approval models.Approval
		if err := tx.Where("subject_type = ? AND subject_id = ? AND approver_id = ?",
			models.ApprovalSubjectLicense, license.ID, approverID).
			First(&approval).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Forbidden("actor is not a required approver for this license")
			}
			return fmt.Errorf("database error: %w", err)
		}
		if approval.Decision != models.ApprovalDecisionPending {
			return apperrors.Validation("approval already recorded")
		}

		now := time.Now()
		approval.Decision = req.Decision
		approval.Comments = req.Comments
		approval.DecidedAt = &now
		if err := tx.Save(&approval).Error; err != nil {
			return fmt.Errorf("failed to record approval: %w", err)
		}

		if req.Decision == models.ApprovalDecisionRejected {
			return s.transition(tx, license, models.EventCancel, models.LicenseStatusCanceled, &approverID,
				fmt.Sprintf("proposal rejected by owner %s", approverID))
		}

		remaining, err := pendingApprovals(tx, models.ApprovalSubjectLicense, license.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		if s.cfg.Engine.RequireSignature {
			return s.transition(tx, license, models.EventApprove, models.LicenseStatusPendingSignature, &approverID, "all owner approvals recorded, awaiting signature")
		}
		return s.activate(tx, license, models.EventApprove, &approverID, "all owner approvals recorded")
	})
	if err != nil {
		return nil, err
	}

	if license.Status == models.LicenseStatusActive {
		s.emitActivated(license)
	}

	return license, nil
}

// CaptureSignature stores the executed agreement and activates the license.
func (s *LicenseService) CaptureSignature(licenseID, actorID uuid.UUID, req *SignatureRequest) (*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid signature payload: %v", err)
	}

	stored, err := s.contracts.StoreAgreement(licenseID, req.Document, req.ContentType)
	if err != nil {
		return nil, apperrors.Validation("could not store agreement: %v", err)
	}

	var license *models.License
	err = runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		license, err = s.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if license.BrandID != actorID {
			ok, err := s.ownership.IsOwner(tx, license.AssetID, actorID)
			if err != nil || !ok {
				return apperrors.Forbidden("only a party to the license can sign it")
			}
		}

		license.AgreementDocKey = stored.Key
		return s.activate(tx, license, models.EventSign, &actorID, "agreement signed")
	})
	if err != nil {
		return nil, err
	}

	s.emitActivated(license)
	return license, nil
}

// activate is the single path into ACTIVE: conflict-gated transition, billing
// intent for the license fee, and the parent's EXPIRED -> RENEWED step when
// this license is a renewal child. Runs inside the caller's transaction so a
// failure in any part rolls back all of it.
func (s *LicenseService) activate(tx *gorm.DB, license *models.License, event models.LicenseEvent, actorID *uuid.UUID, reason string) error {
	if err := s.transition(tx, license, event, models.LicenseStatusActive, actorID, reason); err != nil {
		return err
	}

	feeType := models.TransactionTypeLicenseFee
	if license.ParentLicenseID != nil {
		feeType = models.TransactionTypeRenewalFee
	}
	if _, err := s.billing.EmitIntent(tx, license, feeType, license.FeeAmount, models.JSONB{
		"trigger": "activation",
	}); err != nil {
		return err
	}

	// A renewal child activating retires its parent. Done here, not at offer
	// acceptance, so coverage never drops to zero between the two licenses.
	if license.ParentLicenseID != nil {
		parent, err := s.lockLicense(tx, *license.ParentLicenseID)
		if err != nil {
			return err
		}
		if parent.Status == models.LicenseStatusExpired {
			if err := s.transition(tx, parent, models.EventRenew, models.LicenseStatusRenewed, actorID,
				fmt.Sprintf("renewed by license %s", license.ID)); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *LicenseService) emitActivated(license *models.License) {
	s.events.Emit(EventLicenseActivated, license.ID, nil, map[string]interface{}{
		"asset_id":   license.AssetID.String(),
		"brand_id":   license.BrandID.String(),
		"fee_amount": license.FeeAmount,
	})
}

// TerminateLicense is irreversible and demands a substantive reason; the
// minimum length is enforced here at the boundary.
func (s *LicenseService) TerminateLicense(licenseID, actorID uuid.UUID, req *TerminateLicenseRequest) (*models.License, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, apperrors.Validation("invalid termination request: %v", err)
	}
	if len(req.Reason) < s.cfg.Engine.MinTerminationReasonLen {
		return nil, apperrors.Validation("termination reason must be at least %d characters", s.cfg.Engine.MinTerminationReasonLen)
	}

	var license *models.License
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		license, err = s.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if err := s.authorizeParty(tx, license, actorID); err != nil {
			return err
		}
		return s.transition(tx, license, models.EventTerminate, models.LicenseStatusTerminated, &actorID, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventLicenseTerminated, license.ID, nil, map[string]interface{}{
		"reason": req.Reason,
	})

	return license, nil
}

// DisputeLicense flags the license; ResolveDispute returns it to ACTIVE or
// terminates it depending on the resolution.
func (s *LicenseService) DisputeLicense(licenseID, actorID uuid.UUID, reason string) (*models.License, error) {
	var license *models.License
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		license, err = s.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if err := s.authorizeParty(tx, license, actorID); err != nil {
			return err
		}
		return s.transition(tx, license, models.EventDispute, models.LicenseStatusDisputed, &actorID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.events.Emit(EventLicenseDisputed, license.ID, nil, map[string]interface{}{
		"reason": reason,
	})

	return license, nil
}

func (s *LicenseService) ResolveDispute(licenseID, actorID uuid.UUID, terminate bool, reason string) (*models.License, error) {
	if terminate && len(reason) < s.cfg.Engine.MinTerminationReasonLen {
		return nil, apperrors.Validation("termination reason must be at least %d characters", s.cfg.Engine.MinTerminationReasonLen)
	}

	var license *models.License
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		license, err = s.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if err := s.requireAdmin(tx, actorID); err != nil {
			return err
		}
		if terminate {
			return s.transition(tx, license, models.EventTerminate, models.LicenseStatusTerminated, &actorID, reason)
		}
		return s.transition(tx, license, models.EventResolveDispute, models.LicenseStatusActive, &actorID, reason)
	})
	if err != nil {
		return nil, err
	}
	return license, nil
}

func (s *LicenseService) SuspendLicense(licenseID, actorID uuid.UUID, reason string) (*models.License, error) {
	return s.adminTransition(licenseID, actorID, models.EventSuspend, models.LicenseStatusSuspended, reason)
}

func (s *LicenseService) ReinstateLicense(licenseID, actorID uuid.UUID, reason string) (*models.License, error) {
	return s.adminTransition(licenseID, actorID, models.EventReinstate, models.LicenseStatusActive, reason)
}

func (s *LicenseService) adminTransition(licenseID, actorID uuid.UUID, event models.LicenseEvent, to models.LicenseStatus, reason string) (*models.License, error) {
	var license *models.License
	err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
		var err error
		license, err = s.lockLicense(tx, licenseID)
		if err != nil {
			return err
		}
		if err := s.requireAdmin(tx, actorID); err != nil {
			return err
		}
		return s.transition(tx, license, event, to, &actorID, reason)
	})
	if err != nil {
		return nil, err
	}
	return license, nil
}

func (s *LicenseService) GetLicense(licenseID uuid.UUID) (*models.License, error) {
	var license models.License
	if err := s.db.Preload("Asset").Preload("Brand").First(&license, "id = ?", licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("license", licenseID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

// AgreementURL presigns a download link for the executed agreement. Only a
// party to the license may fetch it.
func (s *LicenseService) AgreementURL(licenseID, actorID uuid.UUID) (string, error) {
	license, err := s.GetLicense(licenseID)
	if err != nil {
		return "", err
	}
	if err := s.authorizeParty(s.db, license, actorID); err != nil {
		return "", err
	}
	if license.AgreementDocKey == "" {
		return "", apperrors.NotFound("agreement", licenseID)
	}

	url, err := s.contracts.AgreementURL(license.AgreementDocKey, 15*time.Minute)
	if err != nil {
		return "", apperrors.Validation("could not presign agreement: %v", err)
	}
	return url, nil
}

func (s *LicenseService) SearchLicenses(params LicenseSearchParams) ([]models.License, int64, error) {
	query := s.db.Model(&models.License{}).Preload("Asset").Preload("Brand")

	if params.AssetID != nil {
		query = query.Where("asset_id = ?", *params.AssetID)
	}
	if params.BrandID != nil {
		query = query.Where("brand_id = ?", *params.BrandID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.LicenseType != nil {
		query = query.Where("license_type = ?", *params.LicenseType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licenses: %w", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "start_date", "end_date", "status"}
	query = utils.ApplySort(query, params.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, params.PaginationParams)

	var licenses []models.License
	if err := query.Find(&licenses).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licenses: %w", err)
	}

	return licenses, total, nil
}

// GetStatusHistory returns the append-only transition log, oldest first.
func (s *LicenseService) GetStatusHistory(licenseID uuid.UUID) ([]models.LicenseStatusEvent, error) {
	if _, err := s.GetLicense(licenseID); err != nil {
		return nil, err
	}

	var history []models.LicenseStatusEvent
	if err := s.db.Where("license_id = ?", licenseID).
		Order("created_at ASC").
		Find(&history).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch status history: %w", err)
	}
	return history, nil
}

// GetStats derives lifecycle analytics from the status-history log, which is
// the sole source for rates like renewal rate.
func (s *LicenseService) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	byStatus := make(map[string]int64)
	rows, err := s.db.Model(&models.License{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate license statuses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status aggregate: %w", err)
		}
		byStatus[status] = count
	}
	stats["licenses_by_status"] = byStatus

	var renewedCount int64
	if err := s.db.Model(&models.LicenseStatusEvent{}).
		Where("to_status = ?", models.LicenseStatusRenewed).
		Distinct("license_id").
		Count(&renewedCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count renewals: %w", err)
	}

	var expiredCount int64
	if err := s.db.Model(&models.LicenseStatusEvent{}).
		Where("to_status = ?", models.LicenseStatusExpired).
		Distinct("license_id").
		Count(&expiredCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count expirations: %w", err)
	}

	renewalRate := 0.0
	if expiredCount > 0 {
		renewalRate = float64(renewedCount) / float64(expiredCount)
	}
	stats["renewal_rate"] = renewalRate
	stats["renewed_licenses"] = renewedCount
	stats["expired_licenses"] = expiredCount

	return stats, nil
}

// lockLicense fetches the license FOR UPDATE inside tx, serializing every
// mutating operation on the same license.
func (s *LicenseService) lockLicense(tx *gorm.DB, licenseID uuid.UUID) (*models.License, error) {
	var license models.License
	if err := forUpdate(tx).
		First(&license, "id = ?", licenseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("license", licenseID)
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

// authorizeParty admits the brand, any current owner, or an admin.
func (s *LicenseService) authorizeParty(tx *gorm.DB, license *models.License, actorID uuid.UUID) error {
	if license.BrandID == actorID {
		return nil
	}
	ok, err := s.ownership.IsOwner(tx, license.AssetID, actorID)
	if err == nil && ok {
		return nil
	}

	var actor models.User
	if err := tx.First(&actor, "id = ?", actorID).Error; err != nil {
		return apperrors.Forbidden("actor is not a party to this license")
	}
	if actor.UserType != models.UserTypeAdmin {
		return apperrors.Forbidden("actor is not a party to this license")
	}
	return nil
}

func (s *LicenseService) requireAdmin(tx *gorm.DB, actorID uuid.UUID) error {
	var actor models.User
	if err := tx.First(&actor, "id = ?", actorID).Error; err != nil {
		return apperrors.Forbidden("admin role required")
	}
	if actor.UserType != models.UserTypeAdmin {
		return apperrors.Forbidden("admin role required")
	}
	return nil
}

// pendingApprovals counts undecided approval rows for a subject.
func pendingApprovals(tx *gorm.DB, subject models.ApprovalSubject, subjectID uuid.UUID) (int64, error) {
	var count int64
	if err := tx.Model(&models.Approval{}).
		Where("subject_type = ? AND subject_id = ? AND decision = ?",
			subject, subjectID, models.ApprovalDecisionPending).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count pending approvals: %w", err)
	}
	return count, nil
}
