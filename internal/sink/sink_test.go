package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

type row []string

func (r row) Columns() []string { return r }

var target = scraper.Target{Name: "classic-items", Entity: scraper.EntityItem, Expansion: "classic", LastID: 3}

func TestTSVWritesBothOutputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewTSV(dir, target, []string{"id", "name", "sellPriceCopper"})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, scraper.Record{ID: 1, Name: "Sword", Entity: row{"1", "Sword", "10"}}))
	require.NoError(t, s.Write(ctx, scraper.Excluded(2, "Monster\tClaw", "name has identifier Monster")))
	require.NoError(t, s.Write(ctx, scraper.Record{ID: 3, Name: "Shield\nof Light", Entity: row{"3", "Shield\nof Light", "0"}}))
	require.NoError(t, s.Close())

	assert.Equal(t, []string{
		filepath.Join(dir, "classic", "items-available.tsv"),
		filepath.Join(dir, "classic", "items-not-available.tsv"),
	}, s.Paths())

	available, err := os.ReadFile(s.Paths()[0])
	require.NoError(t, err)
	assert.Equal(t, "id\tname\tsellPriceCopper\n1\tSword\t10\n3\tShield of Light\t0\n", string(available))

	notAvailable, err := os.ReadFile(s.Paths()[1])
	require.NoError(t, err)
	assert.Equal(t, "id\tname\treason\n2\tMonster Claw\tname has identifier Monster\n", string(notAvailable))
}

func TestTSVFlushesEachLine(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewTSV(dir, target, []string{"id"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Write(context.Background(), scraper.Excluded(1, "", "name was empty")))
	data, err := os.ReadFile(NotAvailablePath(dir, target))
	require.NoError(t, err)
	assert.Equal(t, "id\tname\treason\n1\t\tname was empty\n", string(data))
}

func TestTSVTruncatesPreviousRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "classic"), 0o750))
	require.NoError(t, os.WriteFile(AvailablePath(dir, target), []byte("stale\n"), 0o600))

	s, err := NewTSV(dir, target, []string{"id"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(AvailablePath(dir, target))
	require.NoError(t, err)
	assert.Equal(t, "id\n", string(data))
}

func TestNewTSVRequiresDir(t *testing.T) {
	t.Parallel()

	_, err := NewTSV(" ", target, nil)
	assert.Error(t, err)
}

type recordingSink struct {
	records  []scraper.Record
	writeErr error
	closeErr error
	closed   bool
}

func (s *recordingSink) Write(_ context.Context, r scraper.Record) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.records = append(s.records, r)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return s.closeErr
}

func TestMulti(t *testing.T) {
	t.Parallel()

	a, b := &recordingSink{}, &recordingSink{closeErr: errors.New("b close")}
	m := Multi{a, b}

	require.NoError(t, m.Write(context.Background(), scraper.Excluded(1, "x", "y")))
	assert.Len(t, a.records, 1)
	assert.Len(t, b.records, 1)

	err := m.Close()
	assert.EqualError(t, err, "b close")
	assert.True(t, a.closed)
	assert.True(t, b.closed)

	boom := errors.New("boom")
	failing := Multi{&recordingSink{writeErr: boom}, a}
	assert.ErrorIs(t, failing.Write(context.Background(), scraper.Excluded(2, "", "z")), boom)
	assert.Len(t, a.records, 1)
}
