// internal/services/tx.go
package services

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/machinesoul11/yg-backend-sub001/internal/apperrors"
	"github.com/machinesoul11/yg-backend-sub001/internal/database"
	"github.com/machinesoul11/yg-backend-sub001/internal/metrics"
)

// forUpdate applies row locking where the database supports it. sqlite
// serializes writers at the connection level and rejects FOR UPDATE, so the
// clause is skipped there.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// runTx executes fn inside a transaction, retrying a bounded number of times
// when the database reports write contention. Business errors are never
// retried; exhausted retries surface as ConcurrentModification.
func runTx(db *gorm.DB, attempts int, fn func(tx *gorm.DB) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = database.WithTransaction(db, fn)
		if err == nil {
			return nil
		}
		if !isContention(err) {
			return err
		}
		metrics.TxRetries.Inc()
	}

	return apperrors.ConcurrentModification()
}

// isContention recognizes serialization and lock failures worth retrying.
func isContention(err error) bool {
	if apperrors.IsRetryable(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not serialize") ||
		strings.Contains(msg, "deadlock detected") ||
		strings.Contains(msg, "database is locked")
}
