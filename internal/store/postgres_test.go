package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutQueryReplacesOnlyExpiredRows(t *testing.T) {
	q := strings.Join(strings.Fields(putQuery), " ")
	assert.Contains(t, q, "ON CONFLICT (report_key) DO UPDATE")
	assert.Contains(t, q, "SET report = EXCLUDED.report, expires_at = EXCLUDED.expires_at")
	assert.Contains(t, q, "WHERE bestarm_reports.expires_at <= NOW()")
	assert.NotContains(t, q, "DO NOTHING")
}

// Set BESTARM_TEST_POSTGRES to a connection string to run against a live
// database.
func TestPostgresStoreExpiredKeyIsRewritten(t *testing.T) {
	conn := os.Getenv("BESTARM_TEST_POSTGRES")
	if conn == "" {
		t.Skip("BESTARM_TEST_POSTGRES not set")
	}
	ctx := context.Background()

	ps, err := NewPostgresStore(conn)
	require.NoError(t, err)
	defer ps.Close()

	key := "test:" + time.Now().Format(time.RFC3339Nano)

	require.NoError(t, ps.Put(ctx, key, sampleReport("first"), time.Hour))
	require.NoError(t, ps.Put(ctx, key, sampleReport("second"), time.Hour))
	got, err := ps.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Digest)

	// age the row past its expiry
	_, err = ps.pool.Exec(ctx, `UPDATE bestarm_reports SET expires_at = NOW() - INTERVAL '1 second' WHERE report_key = $1`, key)
	require.NoError(t, err)

	got, err = ps.Get(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, ps.Put(ctx, key, sampleReport("third"), time.Hour))
	got, err = ps.Get(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "third", got.Digest)

	_, err = ps.pool.Exec(ctx, `UPDATE bestarm_reports SET expires_at = NOW() - INTERVAL '1 second' WHERE report_key = $1`, key)
	require.NoError(t, err)
	n, err := ps.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))
}
