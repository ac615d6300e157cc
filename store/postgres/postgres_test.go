package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceplan/itpei/store/storetest"
)

func TestDialect_Rebind(t *testing.T) {
	got := Dialect{}.Rebind("SELECT * FROM t WHERE a = ? AND b >= ? LIMIT ?")
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b >= $2 LIMIT $3", got)
}

func TestDialect_UniqueViolation(t *testing.T) {
	d := Dialect{}

	// GIVEN: A unique violation wrapped the way database/sql surfaces it
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "ux_it_pei_historial_natural"})
	name, ok := d.UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "ux_it_pei_historial_natural", name)

	// Other integrity errors are not conflicts
	_, ok = d.UniqueViolation(&pgconn.PgError{Code: "23502"})
	assert.False(t, ok)

	_, ok = d.UniqueViolation(errors.New("ERROR: duplicate key value (SQLSTATE 23505)"))
	assert.True(t, ok)

	_, ok = d.UniqueViolation(errors.New("connection refused"))
	assert.False(t, ok)
}

func TestNew_PingFailureIsReported(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ctx, "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping postgres")
}

// Runs only against a disposable database, e.g.
// ITPEI_TEST_POSTGRES_DSN=postgres://localhost/itpei_test?sslmode=disable
func TestPostgres_Gateway(t *testing.T) {
	dsn := os.Getenv("ITPEI_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ITPEI_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) storetest.Backend {
		ctx := context.Background()
		s, err := New(ctx, dsn)
		require.NoError(t, err)
		_, err = s.DB().ExecContext(ctx, `TRUNCATE it_pei_historial, unidades_ejecutoras RESTART IDENTITY`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
