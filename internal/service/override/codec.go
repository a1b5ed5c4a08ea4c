package override

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
)

const (
	fieldSep = "|"
	kvSep    = "="

	keyFields   = 4
	valueFields = 9
	// Entries written before the audit columns existed carry seven fields.
	minValueFields = 7
)

// Percent-escaping of the characters that carry structure in a line. '%' is
// listed first so an escaped sequence never re-escapes.
var (
	escaper = strings.NewReplacer(
		"%", "%25",
		"|", "%7C",
		"=", "%3D",
		"#", "%23",
		"!", "%21",
		"\n", "%0A",
		"\r", "%0D",
	)
	unescaper = strings.NewReplacer(
		"%25", "%",
		"%7C", "|",
		"%3D", "=",
		"%23", "#",
		"%21", "!",
		"%0A", "\n",
		"%0D", "\r",
	)
)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }

// formatTimestamp renders a local date-time without zone. Nil renders as "".
func formatTimestamp(t *time.Time) string { return domain.FormatLocalDateTime(t) }

// parseTimestamp accepts ISO-8601 local date-times with optional seconds
// and fraction. "" parses as absent.
func parseTimestamp(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid timestamp %q", s)
}

// encodeKey renders the lookup key. Two keys are equal iff their encodings are.
func encodeKey(k domain.OverrideKey) string {
	return strings.Join([]string{
		escape(k.Cohort),
		formatTimestamp(k.Timestamp),
		escape(k.NormalizedEmail),
		escape(k.Name),
	}, fieldSep)
}

func encodeValue(e *domain.ManualOverrideEntry) string {
	return strings.Join([]string{
		escape(e.BeforeEmail),
		escape(e.BeforeName),
		escape(e.AfterCohort),
		formatTimestamp(e.AfterTimestamp),
		escape(e.AfterEmail),
		escape(e.AfterName),
		escape(e.Notes),
		escape(e.CreatedBy),
		formatTimestamp(e.CreatedAt),
	}, fieldSep)
}

// encodeLine renders one entry as it is stored.
func encodeLine(e *domain.ManualOverrideEntry) string {
	return encodeKey(e.Key()) + kvSep + encodeValue(e)
}

// isComment reports whether a line carries no entry.
func isComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!")
}

// decodeLine parses one stored line into its entry and the key as written.
// The returned reason is non-empty when the line is malformed.
func decodeLine(line string) (*domain.ManualOverrideEntry, domain.OverrideKey, string) {
	line = strings.TrimSuffix(line, "\r")

	idx := strings.Index(line, kvSep)
	if idx < 0 {
		return nil, domain.OverrideKey{}, "missing '='"
	}
	keyParts := strings.Split(line[:idx], fieldSep)
	if len(keyParts) < keyFields {
		return nil, domain.OverrideKey{}, fmt.Sprintf("key has %d fields, want %d", len(keyParts), keyFields)
	}
	valParts := strings.Split(line[idx+1:], fieldSep)
	if len(valParts) < minValueFields {
		return nil, domain.OverrideKey{}, fmt.Sprintf("value has %d fields, want at least %d", len(valParts), minValueFields)
	}
	for len(valParts) < valueFields {
		valParts = append(valParts, "")
	}

	beforeTS, err := parseTimestamp(keyParts[1])
	if err != nil {
		return nil, domain.OverrideKey{}, "before timestamp: " + err.Error()
	}
	afterTS, err := parseTimestamp(valParts[3])
	if err != nil {
		return nil, domain.OverrideKey{}, "after timestamp: " + err.Error()
	}
	createdAt, err := parseTimestamp(valParts[8])
	if err != nil {
		return nil, domain.OverrideKey{}, "created_at: " + err.Error()
	}

	key := domain.OverrideKey{
		Cohort:          unescape(keyParts[0]),
		Timestamp:       beforeTS,
		NormalizedEmail: unescape(keyParts[2]),
		Name:            unescape(keyParts[3]),
	}
	e := &domain.ManualOverrideEntry{
		BeforeCohort:    key.Cohort,
		BeforeTimestamp: beforeTS,
		BeforeEmail:     unescape(valParts[0]),
		BeforeName:      unescape(valParts[1]),
		AfterCohort:     unescape(valParts[2]),
		AfterTimestamp:  afterTS,
		AfterEmail:      unescape(valParts[4]),
		AfterName:       unescape(valParts[5]),
		Notes:           unescape(valParts[6]),
		CreatedBy:       unescape(valParts[7]),
		CreatedAt:       createdAt,
	}
	// Entries whose value lost the raw email fall back to the key's copy.
	if e.BeforeEmail == "" {
		e.BeforeEmail = key.NormalizedEmail
	}
	if e.BeforeName == "" {
		e.BeforeName = key.Name
	}
	return e, key, ""
}
