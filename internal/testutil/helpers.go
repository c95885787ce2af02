package testutil

import (
	"database/sql"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/watchtowerhq/watchtower/internal/repository"
	"github.com/watchtowerhq/watchtower/internal/service"
)

// NewTestPeakService wires a PeakService against the test database.
func NewTestPeakService(t *testing.T, db *sql.DB) *service.PeakService {
	t.Helper()

	return service.NewPeakService(
		repository.NewPeakRepository(db),
		repository.NewFlowRepository(db),
		repository.NewAuditRepository(db),
		DiscardLogger(),
	)
}

// NewTestPnLService wires a PnLService against the test database.
func NewTestPnLService(t *testing.T, db *sql.DB) *service.PnLService {
	t.Helper()

	return service.NewPnLService(
		repository.NewSnapshotRepository(db),
		repository.NewFlowRepository(db),
		repository.NewBaselineRepository(db),
		repository.NewAuditRepository(db),
		DiscardLogger(),
	)
}

// NewTestLedgerService wires a LedgerService against the test database with
// the given oracle.
func NewTestLedgerService(t *testing.T, db *sql.DB, o *FakeOracle) *service.LedgerService {
	t.Helper()

	return service.NewLedgerService(
		repository.NewFlowRepository(db),
		NewTestPeakService(t, db),
		repository.NewAuditRepository(db),
		o,
		TestAccount(),
		DiscardLogger(),
	)
}

// NewTestTradeService wires a TradeService against the test database.
func NewTestTradeService(t *testing.T, db *sql.DB) *service.TradeService {
	t.Helper()

	return service.NewTradeService(repository.NewTradeRepository(db), DiscardLogger())
}

// MakeID generates a UUID string for use in tests.
func MakeID() string {
	return uuid.New().String()
}

// MakeReference generates a unique external reference, shaped like an
// on-chain transaction signature.
func MakeReference() string {
	return "sig-" + randomAlphanumeric(16)
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
