package intake

import (
	"context"
	"io"

	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/pkg/logger"
	"github.com/ignite/cohort-match/internal/service/ingest"
)

// Importer stores parsed rows for one side.
type Importer interface {
	Import(ctx context.Context, side domain.SurveySide, rows []ingest.Row) (ingest.Result, error)
}

// Import reads an export and hands its rows to imp. Rows the reader
// rejected are added to the failed count and returned for reporting.
func Import(ctx context.Context, imp Importer, side domain.SurveySide, r io.Reader, situationPrefix string) (ingest.Result, []domain.ParseWarning, error) {
	batch, err := Read(r, situationPrefix)
	if err != nil {
		return ingest.Result{}, nil, err
	}
	for _, w := range batch.Rejected {
		logger.Warn("[intake] row rejected", "side", string(side), "line", w.Line, "reason", w.Reason)
	}
	for _, w := range batch.Warnings {
		logger.Warn("[intake] cell ignored", "side", string(side), "line", w.Line, "reason", w.Reason)
	}

	result, err := imp.Import(ctx, side, batch.Rows)
	if err != nil {
		return result, batch.Rejected, err
	}
	result.Failed += len(batch.Rejected)
	return result, batch.Rejected, nil
}
