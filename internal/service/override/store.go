package override

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/logger"
	"github.com/ignite/cohort-match/internal/storage"
)

// Store is the manual-override file. It is safe for concurrent use within
// one process; writers in different processes must hold
// distlock.OverrideWriteKey.
type Store struct {
	backend storage.Backend
	now     func() time.Time
	mu      sync.Mutex
}

// NewStore creates a store over the given backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend, now: time.Now}
}

// line is one physical line of the file. Parsed lines carry their entry;
// comments and malformed lines carry only the raw text.
type line struct {
	raw   string
	key   string
	entry *domain.ManualOverrideEntry
}

type document struct {
	lines []line
	index map[string]int // encoded key -> position of the effective line
}

func parseDocument(data []byte) (*document, []domain.ParseWarning) {
	doc := &document{index: make(map[string]int)}
	if len(data) == 0 {
		return doc, nil
	}

	rawLines := strings.Split(string(data), "\n")
	if rawLines[len(rawLines)-1] == "" {
		rawLines = rawLines[:len(rawLines)-1]
	}

	var warnings []domain.ParseWarning
	for i, raw := range rawLines {
		l := line{raw: raw}
		parsed := raw
		if i == 0 {
			parsed = strings.TrimPrefix(raw, "\ufeff")
		}
		if !isComment(parsed) {
			entry, key, reason := decodeLine(parsed)
			if reason != "" {
				warnings = append(warnings, domain.ParseWarning{Line: i + 1, Reason: reason})
			} else {
				l.entry = entry
				l.key = encodeKey(key)
				// later lines shadow earlier ones with the same key
				doc.index[l.key] = len(doc.lines)
			}
		}
		doc.lines = append(doc.lines, l)
	}
	return doc, warnings
}

func (d *document) bytes() []byte {
	var b strings.Builder
	for _, l := range d.lines {
		b.WriteString(l.raw)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

func (d *document) upsert(e *domain.ManualOverrideEntry) {
	key := encodeKey(e.Key())
	l := line{raw: encodeLine(e), key: key, entry: e}
	if pos, ok := d.index[key]; ok {
		d.lines[pos] = l
		return
	}
	d.index[key] = len(d.lines)
	d.lines = append(d.lines, l)
}

func (d *document) entries() []domain.ManualOverrideEntry {
	out := make([]domain.ManualOverrideEntry, 0, len(d.index))
	for pos, l := range d.lines {
		if l.entry == nil || d.index[l.key] != pos {
			continue
		}
		out = append(out, *l.entry)
	}
	return out
}

func (s *Store) load(ctx context.Context) (*document, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return nil, domain.NewStorageError("override.load", err)
	}
	doc, warnings := parseDocument(data)
	for _, w := range warnings {
		logger.Warn("[overrides] skipping malformed line",
			"location", s.backend.Location(), "line", w.Line, "reason", w.Reason)
	}
	return doc, nil
}

// Save records a confirmed pairing keyed by the BEFORE side, replacing any
// entry with the same key. The whole file is rewritten atomically.
func (s *Store) Save(ctx context.Context, before domain.RespondentRef, beforeTS *time.Time,
	after domain.RespondentRef, afterTS *time.Time, notes, createdBy string) (*domain.ManualOverrideEntry, error) {
	if strings.TrimSpace(before.Cohort) == "" {
		return nil, ErrMissingCohort
	}
	if strings.TrimSpace(after.Cohort) == "" {
		return nil, ErrMissingAfter
	}

	createdAt := s.now()
	entry := &domain.ManualOverrideEntry{
		BeforeCohort:    strings.TrimSpace(before.Cohort),
		BeforeTimestamp: beforeTS,
		BeforeEmail:     before.Email,
		BeforeName:      before.Name,
		AfterCohort:     strings.TrimSpace(after.Cohort),
		AfterTimestamp:  afterTS,
		AfterEmail:      after.Email,
		AfterName:       after.Name,
		Notes:           notes,
		CreatedBy:       createdBy,
		CreatedAt:       &createdAt,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	doc.upsert(entry)
	if err := s.backend.Write(ctx, doc.bytes()); err != nil {
		return nil, domain.NewStorageError("override.save", err)
	}

	logger.Info("[overrides] saved manual override",
		"cohort", entry.BeforeCohort, "before_email", entry.BeforeEmail, "created_by", createdBy)
	return entry, nil
}

// FindByBeforeKey looks up the entry for a BEFORE respondent. The inputs are
// normalized the same way Save normalizes them.
func (s *Store) FindByBeforeKey(ctx context.Context, cohort string, ts *time.Time, email, name string) (*domain.ManualOverrideEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, false, err
	}
	pos, ok := doc.index[encodeKey(domain.NewOverrideKey(cohort, ts, email, name))]
	if !ok {
		return nil, false, nil
	}
	entry := *doc.lines[pos].entry
	return &entry, true, nil
}

// AllEntries returns every effective entry in file order.
func (s *Store) AllEntries(ctx context.Context) ([]domain.ManualOverrideEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.entries(), nil
}
