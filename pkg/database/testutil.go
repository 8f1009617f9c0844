package database

import (
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

// NewMockPool returns a pgxmock pool that satisfies DBTX, plus a cleanup that
// asserts all expectations were met.
func NewMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()

	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("create mock pool: %v", err)
	}

	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet mock expectations: %v", err)
		}
		mock.Close()
	})

	return mock
}
