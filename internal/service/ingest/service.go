package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/logger"
)

// ErrEmptyRespondentID is returned when a respondent insert did not yield
// an id to reference from the response.
var ErrEmptyRespondentID = errors.New("respondent insert returned an empty id")

// Row is one questionnaire as read from an export.
type Row struct {
	// Line is the source line, used only in logs.
	Line        int
	Cohort      string
	SubmittedAt time.Time
	Email       string
	Name        string
	Confidence  *float64
	Situations  map[string]float64
}

// Result counts the outcome of an import.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// Service imports survey rows.
type Service struct {
	people    PersonWriter
	responses ResponseStore
	tx        TxRunner
}

// NewService creates an ingest service.
func NewService(people PersonWriter, responses ResponseStore, tx TxRunner) *Service {
	return &Service{people: people, responses: responses, tx: tx}
}

// Import stores every row not already present. A row is present when a
// response of the same side, cohort and submission time exists for the
// same name or normalized email. Each row commits on its own; a row that
// fails to insert is counted and logged. Only a failed existence check
// aborts the import.
func (s *Service) Import(ctx context.Context, side domain.SurveySide, rows []Row) (Result, error) {
	var result Result
	if !side.Valid() {
		return result, fmt.Errorf("%w: side %q", domain.ErrInvalidArgument, side)
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		cohort := domain.NormalizeCohort(row.Cohort)
		name := strings.TrimSpace(row.Name)
		email := domain.NormalizeEmail(row.Email)

		if row.SubmittedAt.IsZero() || (name == "" && email == "") {
			result.Failed++
			logger.Warn("[ingest] row has no timestamp or identity", "side", side, "line", row.Line)
			continue
		}

		exists, err := s.responses.Exists(ctx, side, cohort, row.SubmittedAt, name, email)
		if err != nil {
			return result, domain.NewStorageError("ingest.exists", err)
		}
		if exists {
			result.Skipped++
			continue
		}

		if err := s.insertRow(ctx, side, cohort, name, row); err != nil {
			result.Failed++
			logger.Warn("[ingest] row insert failed", "side", side, "line", row.Line, "error", err.Error())
			continue
		}
		result.Imported++
	}

	logger.Info("[ingest] import complete", "side", side,
		"imported", result.Imported, "skipped", result.Skipped, "failed", result.Failed)
	return result, nil
}

func (s *Service) insertRow(ctx context.Context, side domain.SurveySide, cohort, name string, row Row) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r := domain.NewRespondent(cohort, side, row.Email, name)
		if err := s.people.Insert(ctx, r); err != nil {
			return fmt.Errorf("insert respondent: %w", err)
		}
		if r.ID == "" {
			return ErrEmptyRespondentID
		}

		var situations map[string]float64
		if len(row.Situations) > 0 {
			situations = make(map[string]float64, len(row.Situations))
			for k, v := range row.Situations {
				situations[k] = v
			}
		}

		resp := &domain.Response{
			RespondentID:    r.ID,
			Side:            side,
			Cohort:          r.Cohort,
			SubmittedAt:     row.SubmittedAt,
			Name:            name,
			NormalizedEmail: r.NormalizedEmail,
			Confidence:      row.Confidence,
			Situations:      situations,
		}
		if err := s.responses.Insert(ctx, resp); err != nil {
			return fmt.Errorf("insert response: %w", err)
		}
		return nil
	})
}
