// internal/services/billing_service.go
package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

// BillingService records billing intents. The engine never executes charges:
// it writes the transaction row inside the caller's database transaction,
// opens a stripe PaymentIntent when configured, and leaves collection to the
// billing collaborator.
type BillingService struct {
	db           *gorm.DB
	config       *config.Config
	stripeActive bool
}

func NewBillingService(db *gorm.DB, config *config.Config) *BillingService {
	stripeActive := false
	if config != nil && config.Billing.StripeSecretKey != "" {
		stripe.Key = config.Billing.StripeSecretKey
		stripeActive = true
	}

	return &BillingService{
		db:           db,
		config:       config,
		stripeActive: stripeActive,
	}
}

// EmitIntent writes the billing-intent row through tx so it commits or rolls
// back with the license change that caused it.
func (s *BillingService) EmitIntent(tx *gorm.DB, license *models.License, txType models.TransactionType, amount int64, metadata models.JSONB) (*models.Transaction, error) {
	if amount <= 0 {
		return nil, nil
	}
	if tx == nil {
		tx = s.db
	}

	transaction := &models.Transaction{
		LicenseID:        license.ID,
		BrandID:          license.BrandID,
		TransactionType:  txType,
		Amount:           amount,
		Currency:         license.Currency,
		BillingFrequency: license.BillingFrequency,
		Status:           models.TransactionStatusPending,
		Metadata:         metadata,
	}

	if s.stripeActive {
		if id, err := s.createPaymentIntent(license, amount); err != nil {
			// Stripe failure downgrades to a bare intent row; the row is
			// the source of truth, the stripe object is an accelerant.
			logrus.WithError(err).WithField("license_id", license.ID).Warn("failed to create stripe payment intent")
		} else {
			transaction.StripePaymentIntentID = id
		}
	}

	if err := tx.Create(transaction).Error; err != nil {
		return nil, fmt.Errorf("failed to record billing intent: %w", err)
	}

	return transaction, nil
}

func (s *BillingService) createPaymentIntent(license *models.License, amount int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(license.Currency),
	}
	params.AddMetadata("license_id", license.ID.String())
	params.AddMetadata("brand_id", license.BrandID.String())

	pi, err := paymentintent.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// LicenseTransactions lists the billing intents recorded against a license.
func (s *BillingService) LicenseTransactions(licenseID uuid.UUID) ([]models.Transaction, error) {
	var transactions []models.Transaction
	if err := s.db.Where("license_id = ?", licenseID).
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	return transactions, nil
}
