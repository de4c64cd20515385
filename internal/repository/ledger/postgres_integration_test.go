//go:build integration

package ledger

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/mailrag/internal/db/postgres"
	"github.com/kailas-cloud/mailrag/internal/db/postgres/pgtest"
	"github.com/kailas-cloud/mailrag/internal/retry"
)

var dsn string

func TestMain(m *testing.M) {
	var teardown func()
	var err error
	dsn, teardown, err = pgtest.Start(context.Background())
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	code := m.Run()
	teardown()
	os.Exit(code)
}

func initLedger(t *testing.T) *Postgres {
	t.Helper()
	d, err := postgres.Open(postgres.Config{DSN: dsn, MaxOpenConns: 16})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	require.NoError(t, d.WaitForReady(context.Background(), 30*time.Second))

	l, err := NewPostgres(context.Background(), d)
	require.NoError(t, err)
	return l
}

func TestPostgres_RecordFilterCount(t *testing.T) {
	l := initLedger(t)
	ctx := context.Background()
	owner := fmt.Sprintf("owner-%d", time.Now().UnixNano())

	n, err := l.Record(ctx, owner, []string{"a", "b", "a"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = l.Record(ctx, owner, []string{"b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	known, err := l.Filter(ctx, owner, []string{"a", "x", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"a": true, "c": true}, known)

	ok, err := l.Has(ctx, owner, "b")
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := l.Count(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestPostgres_ConcurrentWritersConverge(t *testing.T) {
	l := WithRetry(initLedger(t), retry.Policy{MaxAttempts: 20, BaseDelay: 5 * time.Millisecond})
	ctx := context.Background()
	owner := fmt.Sprintf("owner-%d", time.Now().UnixNano())

	ids := make([]string, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("m-%d", i)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := l.Record(ctx, owner, ids)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, len(ids), total)
	count, err := l.Count(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, len(ids), count)
}
