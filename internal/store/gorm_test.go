package store

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"tenant-config-service/internal/model"
)

func TestUniqueViolationClassification(t *testing.T) {
	dup := &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "idx_documents_tenant_kind",
	}
	assert.True(t, isUniqueViolation(dup))
	assert.True(t, isUniqueViolation(fmt.Errorf("create head row: %w", dup)))
	assert.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))

	// Other SQLSTATEs, including an aborted transaction, are not a
	// duplicate document.
	aborted := &pgconn.PgError{Code: "25P01"}
	assert.False(t, isUniqueViolation(aborted))
	assert.False(t, isUniqueViolation(fmt.Errorf("plain failure")))
}

func TestUniqueViolationIsNotRetried(t *testing.T) {
	// A classified duplicate maps onto the AlreadyExists sentinel, which
	// the retry loop must surface immediately instead of backing off on.
	err := fmt.Errorf("document %s/%s: %w", "acme", "branding", model.ErrAlreadyExists)
	assert.False(t, transient(err))

	// An unclassified backend failure stays retryable.
	assert.True(t, transient(&pgconn.PgError{Code: "08006"}))
}
