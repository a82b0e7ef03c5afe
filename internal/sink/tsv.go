// Package sink writes ordered records to their outputs.
package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JakeFAU/gamedb-scraper/internal/scraper"
)

var notAvailableHeader = []string{"id", "name", "reason"}

var cellReplacer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

type tsvFile struct {
	path string
	f    *os.File
	w    *bufio.Writer
}

func createTSV(path string, header []string) (*tsvFile, error) {
	f, err := os.Create(path) // #nosec G304 -- path is derived from configured output dir.
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	t := &tsvFile{path: path, f: f, w: bufio.NewWriter(f)}
	if err := t.writeRow(header); err != nil {
		_ = f.Close()
		return nil, err
	}
	return t, nil
}

func (t *tsvFile) writeRow(cells []string) error {
	for i, cell := range cells {
		if i > 0 {
			if err := t.w.WriteByte('\t'); err != nil {
				return fmt.Errorf("write %s: %w", t.path, err)
			}
		}
		if _, err := t.w.WriteString(cellReplacer.Replace(cell)); err != nil {
			return fmt.Errorf("write %s: %w", t.path, err)
		}
	}
	if err := t.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("write %s: %w", t.path, err)
	}
	// Rows are flushed as they are written.
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", t.path, err)
	}
	return nil
}

func (t *tsvFile) close() error {
	flushErr := t.w.Flush()
	closeErr := t.f.Close()
	if flushErr != nil {
		return fmt.Errorf("flush %s: %w", t.path, flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", t.path, closeErr)
	}
	return nil
}

// TSV writes available records and excluded records to two files under
// dir/<expansion>/.
type TSV struct {
	available    *tsvFile
	notAvailable *tsvFile
}

// AvailablePath returns the available output path for target.
func AvailablePath(dir string, target scraper.Target) string {
	return filepath.Join(dir, target.Expansion, fmt.Sprintf("%ss-available.tsv", target.Entity))
}

// NotAvailablePath returns the not-available output path for target.
func NotAvailablePath(dir string, target scraper.Target) string {
	return filepath.Join(dir, target.Expansion, fmt.Sprintf("%ss-not-available.tsv", target.Entity))
}

// NewTSV truncates both outputs and writes their headers.
func NewTSV(dir string, target scraper.Target, header []string) (*TSV, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, target.Expansion), 0o750); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	available, err := createTSV(AvailablePath(dir, target), header)
	if err != nil {
		return nil, err
	}
	notAvailable, err := createTSV(NotAvailablePath(dir, target), notAvailableHeader)
	if err != nil {
		_ = available.close()
		return nil, err
	}
	return &TSV{available: available, notAvailable: notAvailable}, nil
}

// Paths lists the output files.
func (s *TSV) Paths() []string {
	return []string{s.available.path, s.notAvailable.path}
}

// Write appends one row to the matching output.
func (s *TSV) Write(_ context.Context, record scraper.Record) error {
	if record.Available() {
		return s.available.writeRow(record.Entity.Columns())
	}
	return s.notAvailable.writeRow([]string{strconv.Itoa(record.ID), record.Name, record.Reason})
}

// Close flushes and closes both outputs.
func (s *TSV) Close() error {
	return errors.Join(s.available.close(), s.notAvailable.close())
}
