package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankbook-dev/bankbook/internal/annotate"
	"github.com/bankbook-dev/bankbook/internal/model"
	"github.com/bankbook-dev/bankbook/internal/statement"
)

const statementHeader = `"Booking Date","Value Date","","Description","Debit","Credit","Balance"` + "\n"

// memStore dedups on the composite key like the real ledger.
type memStore struct {
	rows map[string]model.Transaction
	err  error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]model.Transaction)}
}

func (s *memStore) Insert(_ context.Context, records []model.Transaction) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	inserted := 0
	for _, rec := range records {
		key := fmt.Sprintf("%s#%d", rec.BookingDateTime.Format("2006-01-02T15:04:05"), rec.DayOrderID)
		if _, ok := s.rows[key]; ok {
			continue
		}
		s.rows[key] = rec
		inserted++
	}
	return inserted, nil
}

type stubAnnotator struct {
	count int
	err   error
	calls int
}

func (a *stubAnnotator) AnnotateAllUnannotated(context.Context) (int, error) {
	a.calls++
	return a.count, a.err
}

func writeStatement(t *testing.T, dir, name, rows string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(statementHeader+rows), 0o644))
	return path
}

func TestProcess_EndToEnd(t *testing.T) {
	path := writeStatement(t, t.TempDir(), "jan.csv",
		`"05 Jan 2024","05 Jan 2024","","Payment STAN (123456)","100.00","","900.00"`+"\n")

	store := newMemStore()
	p := New(statement.NewParser(), store, nil)

	res, err := p.Process(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Extracted)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Annotated)

	require.Len(t, store.rows, 1)
	for _, txn := range store.rows {
		require.NotNil(t, txn.StanID)
		assert.Equal(t, "123456", *txn.StanID)
		require.True(t, txn.Debit.Valid)
		assert.Equal(t, "100.00", txn.Debit.Decimal.StringFixed(2))
		assert.False(t, txn.Credit.Valid)
		assert.Equal(t, "900.00", txn.AvailableBalance.StringFixed(2))
		assert.Equal(t, 1, txn.DayOrderID)
	}

	// Importing the same file again inserts nothing.
	res, err = p.Process(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Extracted)
	assert.Equal(t, 0, res.Inserted)
}

func TestProcess_AnnotateWithoutAnnotator(t *testing.T) {
	path := writeStatement(t, t.TempDir(), "jan.csv",
		`"05 Jan 2024","05 Jan 2024","","Groceries","42.00","","858.00"`+"\n")

	p := New(statement.NewParser(), newMemStore(), nil)
	res, err := p.Process(context.Background(), path, true)

	// Extraction and insertion results survive the configuration error.
	require.Error(t, err)
	assert.ErrorIs(t, err, annotate.ErrNotConfigured)
	assert.Equal(t, 1, res.Extracted)
	assert.Equal(t, 1, res.Inserted)
}

func TestProcess_Annotates(t *testing.T) {
	path := writeStatement(t, t.TempDir(), "jan.csv",
		`"05 Jan 2024","05 Jan 2024","","Groceries","42.00","","858.00"`+"\n")

	ann := &stubAnnotator{count: 3}
	p := New(statement.NewParser(), newMemStore(), ann)

	res, err := p.Process(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Annotated)
	assert.Equal(t, 1, ann.calls)
}

func TestProcess_HeaderErrorPropagates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("no,header\n"), 0o644))

	p := New(statement.NewParser(), newMemStore(), nil)
	_, err := p.Process(context.Background(), path, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, statement.ErrHeaderNotFound)
}

func TestProcess_InsertErrorPropagates(t *testing.T) {
	path := writeStatement(t, t.TempDir(), "jan.csv",
		`"05 Jan 2024","05 Jan 2024","","Groceries","42.00","","858.00"`+"\n")

	store := newMemStore()
	store.err = errors.New("connection lost")
	p := New(statement.NewParser(), store, nil)

	_, err := p.Process(context.Background(), path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection lost")
}

func TestProcessDir_DrainsImportDirectory(t *testing.T) {
	root := t.TempDir()
	importDir := filepath.Join(root, "import")
	require.NoError(t, os.MkdirAll(importDir, 0o755))
	writeStatement(t, importDir, "jan.csv",
		`"05 Jan 2024","05 Jan 2024","","Payment A","10.00","","90.00"`+"\n")
	writeStatement(t, importDir, "feb.csv",
		`"05 Feb 2024","05 Feb 2024","","Payment B","20.00","","70.00"`+"\n")

	ann := &stubAnnotator{count: 2}
	p := New(statement.NewParser(), newMemStore(), ann)

	res, err := p.ProcessDir(context.Background(), root, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 2, res.Extracted)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 2, res.Annotated)
	assert.Equal(t, 1, ann.calls, "annotation runs once per drain, not per file")

	// Both files moved to processed/.
	left, err := statement.Scan(root)
	require.NoError(t, err)
	assert.Empty(t, left)
	_, err = os.Stat(filepath.Join(importDir, "processed", "jan.csv"))
	assert.NoError(t, err)
}

func TestProcessDir_EmptyRoot(t *testing.T) {
	p := New(statement.NewParser(), newMemStore(), nil)
	res, err := p.ProcessDir(context.Background(), t.TempDir(), false)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
}
