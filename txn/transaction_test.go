package txn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateTransactionCommitDropsFromActive(t *testing.T) {
	m := NewManager()
	var committed bool
	tx := m.CreateTransaction(Options{
		MutationFn: func(ctx context.Context, t *Transaction) error {
			committed = true
			return nil
		},
	})

	require.Len(t, m.Active(), 1)

	err := tx.Commit(context.Background())
	require.NoError(t, err)
	require.True(t, committed)

	require.NoError(t, tx.IsPersisted(context.Background()))

	require.Eventually(t, func() bool { return len(m.Active()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCommitFailurePropagatesErr(t *testing.T) {
	m := NewManager()
	tx := m.CreateTransaction(Options{
		MutationFn: func(ctx context.Context, t *Transaction) error {
			return require.AnError
		},
	})

	err := tx.Commit(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, tx.IsPersisted(context.Background()), err)
}

func TestCreateTransactionOrdersByCreationEvenWhenClockTies(t *testing.T) {
	m := NewManager()
	var txns []*Transaction
	for i := 0; i < 8; i++ {
		txns = append(txns, m.CreateTransaction(Options{}))
	}

	active := m.Active()
	require.Len(t, active, len(txns))
	for i, tx := range txns {
		require.Equal(t, tx.ID(), active[i].ID(), "transaction %d out of creation order", i)
	}
}

func TestStatusVarObservesCommitTransition(t *testing.T) {
	m := NewManager()
	release := make(chan struct{})
	tx := m.CreateTransaction(Options{
		MutationFn: func(ctx context.Context, t *Transaction) error {
			<-release
			return nil
		},
	})

	status, changed := tx.StatusVar().Get()
	require.Equal(t, tx.Status(), status)

	go func() {
		close(release)
	}()
	_ = tx.Commit(context.Background())

	<-changed
	require.NotEqual(t, status, tx.Status())
}

func TestCommitAllCommitsEveryActiveTransaction(t *testing.T) {
	m := NewManager()
	n := 5
	var count int
	for i := 0; i < n; i++ {
		m.CreateTransaction(Options{
			MutationFn: func(ctx context.Context, t *Transaction) error {
				count++
				return nil
			},
		})
	}

	require.Len(t, m.Active(), n)
	require.NoError(t, m.CommitAll(context.Background()))
	require.Equal(t, n, count)
}
