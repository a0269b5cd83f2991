package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteLedger_AppendAndReadAll(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")

	l, err := NewSQLiteLedger(path)
	require.NoError(t, err)

	for _, e := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`} {
		require.NoError(t, l.Append(ctx, []byte(e)))
	}
	assert.ErrorIs(t, l.Append(ctx, nil), ErrInvalidEntry)
	require.NoError(t, l.Close())

	l, err = NewSQLiteLedger(path)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, collect(t, l.ReadAll(ctx)))
}

func TestSQLiteLedger_EarlyStop(t *testing.T) {
	ctx := context.Background()
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Append(ctx, []byte(`{}`)))
	}

	n := 0
	for _, err := range l.ReadAll(ctx) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	// The connection is released after an early break.
	require.NoError(t, l.Append(ctx, []byte(`{}`)))
}
