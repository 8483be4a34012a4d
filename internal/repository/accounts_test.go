package repository

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// captureBus records published events so tests can assert on them.
type captureBus struct {
	mu     sync.Mutex
	topics []string
	data   [][]byte
}

func (b *captureBus) Publish(topic string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.data = append(b.data, data)
	return nil
}

func (b *captureBus) published(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.topics {
		if t == topic {
			n++
		}
	}
	return n
}

// newTestRepo wires a repo against the database from CHEFBOT_TEST_DATABASE_URL
// (tests are skipped when unset) and a throwaway miniredis.
func newTestRepo(t *testing.T) (*AccountingRepo, *captureBus) {
	t.Helper()

	dsn := os.Getenv("CHEFBOT_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("CHEFBOT_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, dsn, "up"))

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bus := &captureBus{}
	return NewAccountingRepo(pool, rdb, bus, 3), bus
}

func testUserID() int64 {
	return time.Now().UnixNano()
}

func TestBalance_ServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	// The pool is nil on purpose: a warm mirror must short-circuit before
	// any database access.
	repo := NewAccountingRepo(nil, rdb, &captureBus{}, 3)
	require.NoError(t, mr.Set("balance:42", "7"))

	bal, err := repo.Balance(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 7, bal)
}

func TestGetOrCreate_GrantsStartingBalanceOnce(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := testUserID()

	acc, err := repo.GetOrCreate(ctx, userID, "alice", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 3, acc.TokensBalance)

	_, debited, err := repo.DebitIfPositive(ctx, userID)
	require.NoError(t, err)
	require.True(t, debited)

	// A returning user keeps the spent-down balance, only the profile refreshes.
	acc, err = repo.GetOrCreate(ctx, userID, "alice_new", "Alice")
	require.NoError(t, err)
	assert.Equal(t, 2, acc.TokensBalance)
	assert.Equal(t, "alice_new", acc.Username)
}

func TestBalance_UnseenAccountReportsDefault(t *testing.T) {
	repo, _ := newTestRepo(t)

	bal, err := repo.Balance(context.Background(), testUserID())
	require.NoError(t, err)
	assert.Equal(t, 3, bal)
}

func TestDebitIfPositive_StopsAtZero(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := testUserID()

	_, err := repo.GetOrCreate(ctx, userID, "bob", "Bob")
	require.NoError(t, err)

	for want := 2; want >= 0; want-- {
		bal, debited, err := repo.DebitIfPositive(ctx, userID)
		require.NoError(t, err)
		require.True(t, debited)
		assert.Equal(t, want, bal)
	}

	_, debited, err := repo.DebitIfPositive(ctx, userID)
	require.NoError(t, err)
	assert.False(t, debited)

	bal, err := repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, bal)
}

func TestDebitIfPositive_ConcurrentDrain(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	userID := testUserID()

	_, err := repo.GetOrCreate(ctx, userID, "carol", "Carol")
	require.NoError(t, err)

	// Balance 3, 10 racing debits: exactly 3 may win.
	var succeeded atomic.Int64
	var g errgroup.Group
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, debited, err := repo.DebitIfPositive(ctx, userID)
			if err != nil {
				return err
			}
			if debited {
				succeeded.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 3, succeeded.Load())

	bal, err := repo.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, bal)
}
