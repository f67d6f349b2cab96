// Package dataset bulk-loads the paragraph corpus from CSV.
package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fleecekm/fleeceqa/internal/store"
)

// Columns read from the CSV header. Unknown columns are ignored and
// missing ones load as zero values.
const (
	colPageName          = "page_name"
	colSectionName       = "section_name"
	colSubsectionName    = "subsection_name"
	colSubsubsectionName = "subsubsection_name"
	colText              = "text"
	colSectionHierarchy  = "section_hierarchy"
	colTextCleaned       = "text_cleaned"
	colWordCount         = "word_count"
	colIsBad             = "is_bad"
	colProcessed         = "processed"
)

// Result reports what Load did.
type Result struct {
	// Existing is the paragraph count found before loading.
	Existing int
	Loaded   int
	Skipped  bool
}

// ParseError reports a malformed CSV row.
type ParseError struct {
	Line   int
	Column string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("csv line %d, column %s: %v", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("csv line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load reads paragraphs from r and inserts them in one transaction. When
// the paragraph table already has rows nothing is read and the result is
// marked Skipped.
func Load(ctx context.Context, s *store.Store, r io.Reader, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	existing, err := s.CountParagraphs(ctx)
	if err != nil {
		return Result{}, err
	}
	if existing > 0 {
		logger.Info("dataset already loaded, skipping", zap.Int("paragraphs", existing))
		return Result{Existing: existing, Skipped: true}, nil
	}

	paragraphs, err := Read(r)
	if err != nil {
		return Result{}, err
	}

	tx, err := s.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	if err := tx.InsertParagraphs(ctx, paragraphs); err != nil {
		tx.Rollback()
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit dataset: %w", err)
	}

	logger.Info("dataset loaded", zap.Int("paragraphs", len(paragraphs)))
	return Result{Loaded: len(paragraphs)}, nil
}

// Read parses every row of r. within_page_order counts the earlier rows
// of the same page, starting at 0. Rows without a processed column start
// unprocessed.
func Read(r io.Reader) ([]store.Paragraph, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csv: empty input")
		}
		return nil, fmt.Errorf("csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	if _, ok := index[colPageName]; !ok {
		return nil, &ParseError{Line: 1, Column: colPageName, Err: errors.New("missing required column")}
	}

	pageOrder := make(map[string]int)
	var out []store.Paragraph
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return record[i]
		}

		p := store.Paragraph{
			PageName:          field(colPageName),
			SectionName:       field(colSectionName),
			SubsectionName:    field(colSubsectionName),
			SubsubsectionName: field(colSubsubsectionName),
			Text:              field(colText),
			SectionHierarchy:  field(colSectionHierarchy),
			TextCleaned:       field(colTextCleaned),
			Processed:         store.Unprocessed,
		}
		if p.WordCount, err = parseInt(field(colWordCount), 0); err != nil {
			return nil, &ParseError{Line: line, Column: colWordCount, Err: err}
		}
		if p.IsBad, err = parseBool(field(colIsBad)); err != nil {
			return nil, &ParseError{Line: line, Column: colIsBad, Err: err}
		}
		if p.Processed, err = parseInt(field(colProcessed), store.Unprocessed); err != nil {
			return nil, &ParseError{Line: line, Column: colProcessed, Err: err}
		}

		p.WithinPageOrder = pageOrder[p.PageName]
		pageOrder[p.PageName]++
		out = append(out, p)
	}
	return out, nil
}

// parseInt accepts integers and integral floats ("12.0"), which is how
// numeric columns come out of dataframe exports.
func parseInt(s string, empty int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return empty, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return int(f), nil
}

func parseBool(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return false, nil
	}
	return strconv.ParseBool(s)
}
