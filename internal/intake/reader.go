// Package intake reads survey exports into ingest rows.
package intake

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/service/ingest"
)

// ErrNoHeader is returned for an empty export.
var ErrNoHeader = fmt.Errorf("%w: export has no header row", domain.ErrInvalidArgument)

// ErrNoTimestamp is returned when no column maps to the submission time.
var ErrNoTimestamp = fmt.Errorf("%w: no timestamp column", domain.ErrInvalidArgument)

// ErrNoIdentity is returned when no column identifies the respondent.
var ErrNoIdentity = fmt.Errorf("%w: no email or name column", domain.ErrInvalidArgument)

// Batch is the parsed content of one export.
type Batch struct {
	Rows []ingest.Row
	// Rejected lists rows that could not be parsed; each counts as a
	// failed row of the import.
	Rejected []domain.ParseWarning
	// Warnings lists metric cells that were dropped from otherwise valid
	// rows.
	Warnings []domain.ParseWarning
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"2006-01-02",
	"1/2/2006",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// errNonFinite marks NaN and infinite cells. They reject the row since they
// cannot take part in any average.
var errNonFinite = errors.New("not a finite number")

func parseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: %q", errNonFinite, s)
	}
	return &v, nil
}

// Read parses a CSV export. Structural problems (no header, no timestamp or
// identity column) fail the whole read; problems in a single row reject only
// that row.
func Read(r io.Reader, situationPrefix string) (*Batch, error) {
	reader := csv.NewReader(stripBOM(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", domain.ErrInvalidArgument, err)
	}

	mapping := MapColumns(header, situationPrefix)
	if _, ok := mapping.Fields[FieldTimestamp]; !ok {
		return nil, ErrNoTimestamp
	}
	if !mapping.HasIdentity() {
		return nil, ErrNoIdentity
	}

	batch := &Batch{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return nil, fmt.Errorf("intake: reading line %d: %w", line, err)
			}
			batch.Rejected = append(batch.Rejected, domain.ParseWarning{Line: line, Reason: err.Error()})
			continue
		}
		if blank(record) {
			continue
		}

		row, dropped, reason := buildRow(record, mapping)
		if reason != "" {
			batch.Rejected = append(batch.Rejected, domain.ParseWarning{Line: line, Reason: reason})
			continue
		}
		for _, d := range dropped {
			batch.Warnings = append(batch.Warnings, domain.ParseWarning{Line: line, Reason: d})
		}
		row.Line = line
		batch.Rows = append(batch.Rows, row)
	}
	return batch, nil
}

// buildRow maps one record. Unparsable metric cells are left absent and
// described in dropped; reason is set when the whole row is rejected.
func buildRow(record []string, m *ColumnMapping) (row ingest.Row, dropped []string, reason string) {
	cell := func(f Field) string {
		i, ok := m.Fields[f]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	ts := cell(FieldTimestamp)
	if ts == "" {
		return row, nil, "missing timestamp"
	}
	t, err := parseTimestamp(ts)
	if err != nil {
		return row, nil, err.Error()
	}
	row.SubmittedAt = t

	row.Email = cell(FieldEmail)
	row.Cohort = cell(FieldCohort)
	row.Name = cell(FieldName)
	if row.Name == "" {
		row.Name = strings.TrimSpace(cell(FieldFirstName) + " " + cell(FieldLastName))
	}

	metric := func(column, raw string) (*float64, bool) {
		v, err := parseNumber(raw)
		switch {
		case errors.Is(err, errNonFinite):
			reason = column + ": " + err.Error()
			return nil, false
		case err != nil:
			dropped = append(dropped, column+": "+err.Error())
		}
		return v, true
	}

	var ok bool
	if row.Confidence, ok = metric("confidence", cell(FieldConfidence)); !ok {
		return row, nil, reason
	}

	for i, name := range m.Situations {
		if i >= len(record) {
			continue
		}
		v, ok := metric(name, record[i])
		if !ok {
			return row, nil, reason
		}
		if v == nil {
			continue
		}
		if row.Situations == nil {
			row.Situations = make(map[string]float64)
		}
		row.Situations[name] = *v
	}
	return row, dropped, ""
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// stripBOM wraps a reader to strip a UTF-8 BOM if present.
func stripBOM(r io.Reader) io.Reader {
	buf := make([]byte, 3)
	n, err := io.ReadFull(r, buf)
	if err != nil || n < 3 {
		return io.MultiReader(strings.NewReader(string(buf[:n])), r)
	}
	if buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF {
		return r
	}
	return io.MultiReader(strings.NewReader(string(buf[:n])), r)
}
