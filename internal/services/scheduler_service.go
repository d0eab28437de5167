// internal/services/scheduler_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/machinesoul11/yg-backend-sub001/internal/config"
	"github.com/machinesoul11/yg-backend-sub001/internal/metrics"
	"github.com/machinesoul11/yg-backend-sub001/internal/models"
)

// SchedulerService runs the periodic reconciliation sweep: time-driven
// license transitions, offer expiry, and amendment/extension deadline
// expiry. Every advance re-checks state under a row lock, so the sweep is
// idempotent and safe to run alongside user-triggered transitions and a
// second sweep instance.
type SchedulerService struct {
	db         *gorm.DB
	cfg        *config.Config
	licenses   *LicenseService
	amendments *AmendmentService
	extensions *ExtensionService
	renewals   *RenewalService
	events     *EventService
}

func NewSchedulerService(db *gorm.DB, cfg *config.Config, licenses *LicenseService, amendments *AmendmentService, extensions *ExtensionService, renewals *RenewalService, events *EventService) *SchedulerService {
	return &SchedulerService{
		db:         db,
		cfg:        cfg,
		licenses:   licenses,
		amendments: amendments,
		extensions: extensions,
		renewals:   renewals,
		events:     events,
	}
}

// Run blocks until ctx is canceled, sweeping at the configured interval.
// One sweep runs immediately on startup.
func (s *SchedulerService) Run(ctx context.Context) {
	interval := time.Duration(s.cfg.Engine.SweepIntervalMin) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logrus.WithField("interval", interval.String()).Info("Lifecycle sweep started")

	s.Sweep(time.Now())
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Lifecycle sweep stopped")
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Sweep executes one full pass. Per-entity failures are logged and skipped
// so one stuck row never stalls the rest of the batch.
func (s *SchedulerService) Sweep(now time.Time) {
	batch := s.cfg.Engine.SweepBatchSize

	if n, err := s.advanceExpiringSoon(now, batch); err != nil {
		logrus.WithError(err).Error("Sweep: expiring-soon pass failed")
	} else if n > 0 {
		logrus.WithField("count", n).Info("Sweep: licenses marked expiring soon")
	}

	if n, err := s.advanceExpired(now, batch); err != nil {
		logrus.WithError(err).Error("Sweep: expiry pass failed")
	} else if n > 0 {
		logrus.WithField("count", n).Info("Sweep: licenses expired")
	}

	if n, err := s.renewals.ExpireOverdueOffers(now, batch); err != nil {
		logrus.WithError(err).Error("Sweep: offer-expiry pass failed")
	} else if n > 0 {
		metrics.SweepAdvances.WithLabelValues("offer_expired").Add(float64(n))
	}

	if n, err := s.amendments.ExpireOverdue(now, batch); err != nil {
		logrus.WithError(err).Error("Sweep: amendment-deadline pass failed")
	} else if n > 0 {
		metrics.SweepAdvances.WithLabelValues("amendment_expired").Add(float64(n))
	}

	if n, err := s.extensions.ExpireOverdue(now, batch); err != nil {
		logrus.WithError(err).Error("Sweep: extension-deadline pass failed")
	} else if n > 0 {
		metrics.SweepAdvances.WithLabelValues("extension_expired").Add(float64(n))
	}
}

// advanceExpiringSoon moves ACTIVE licenses into EXPIRING_SOON once they are
// within the configured lead window of their end date.
func (s *SchedulerService) advanceExpiringSoon(now time.Time, batchSize int) (int, error) {
	cutoff := now.AddDate(0, 0, s.cfg.Engine.ExpiringSoonLeadDays)

	var ids []uuid.UUID
	if err := s.db.Model(&models.License{}).
		Where("status = ? AND end_date <= ? AND end_date > ?", models.LicenseStatusActive, cutoff, now).
		Limit(batchSize).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find expiring licenses: %w", err)
	}

	advanced := 0
	for _, id := range ids {
		err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
			license, err := s.licenses.lockLicense(tx, id)
			if err != nil {
				return err
			}
			// Another process may have advanced it already.
			if license.Status != models.LicenseStatusActive || !license.EndDate.After(now) {
				return nil
			}
			return s.licenses.transition(tx, license, models.EventExpireSoon, models.LicenseStatusExpiringSoon, nil, "end date within renewal lead window")
		})
		if err != nil {
			logrus.WithError(err).WithField("license_id", id).Warn("Sweep: could not mark license expiring soon")
			continue
		}
		metrics.SweepAdvances.WithLabelValues("expiring_soon").Inc()
		advanced++
	}
	return advanced, nil
}

// advanceExpired moves licenses past their end date into EXPIRED.
func (s *SchedulerService) advanceExpired(now time.Time, batchSize int) (int, error) {
	var ids []uuid.UUID
	if err := s.db.Model(&models.License{}).
		Where("status IN ? AND end_date <= ?",
			[]models.LicenseStatus{models.LicenseStatusActive, models.LicenseStatusExpiringSoon}, now).
		Limit(batchSize).
		Pluck("id", &ids).Error; err != nil {
		return 0, fmt.Errorf("failed to find expired licenses: %w", err)
	}

	advanced := 0
	for _, id := range ids {
		var license *models.License
		err := runTx(s.db, s.cfg.Engine.TxRetryAttempts, func(tx *gorm.DB) error {
			var err error
			license, err = s.licenses.lockLicense(tx, id)
			if err != nil {
				return err
			}
			if license.Status != models.LicenseStatusActive && license.Status != models.LicenseStatusExpiringSoon {
				license = nil
				return nil
			}
			if license.EndDate.After(now) {
				license = nil
				return nil
			}
			return s.licenses.transition(tx, license, models.EventExpire, models.LicenseStatusExpired, nil, "end date reached")
		})
		if err != nil {
			logrus.WithError(err).WithField("license_id", id).Warn("Sweep: could not expire license")
			continue
		}
		if license == nil {
			continue
		}
		metrics.SweepAdvances.WithLabelValues("expired").Inc()
		s.events.Emit(EventLicenseExpired, license.ID, nil, map[string]interface{}{
			"end_date": license.EndDate.Format(time.RFC3339),
		})
		advanced++
	}
	return advanced, nil
}
