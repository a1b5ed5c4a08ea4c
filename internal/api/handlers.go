package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ignite/cohort-match/internal/domain"
	"github.com/ignite/cohort-match/internal/intake"
	"github.com/ignite/cohort-match/internal/pkg/distlock"
	"github.com/ignite/cohort-match/internal/pkg/httputil"
	"github.com/ignite/cohort-match/internal/pkg/logger"
	"github.com/ignite/cohort-match/internal/report"
	"github.com/ignite/cohort-match/internal/service/analysis"
	"github.com/ignite/cohort-match/internal/service/ingest"
	"github.com/ignite/cohort-match/internal/service/matching"
	"github.com/ignite/cohort-match/internal/service/override"
)

// LockFunc returns the single-flight lock for key.
type LockFunc func(key string) distlock.DistLock

// Options tunes handler behaviour.
type Options struct {
	// RestoreOverrides replays the override file before every automatic run.
	RestoreOverrides bool
	SituationPrefix  string
	MaxUploadBytes   int64
}

// Handlers contains all HTTP handlers
type Handlers struct {
	matcher   *matching.Service
	ingester  *ingest.Service
	analyzer  *analysis.Service
	overrides *override.Store
	lock      LockFunc
	opts      Options
}

// NewHandlers creates a new Handlers instance
func NewHandlers(matcher *matching.Service, ingester *ingest.Service, analyzer *analysis.Service,
	overrides *override.Store, lock LockFunc, opts Options) *Handlers {
	if opts.SituationPrefix == "" {
		opts.SituationPrefix = "situation_"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	return &Handlers{
		matcher:   matcher,
		ingester:  ingester,
		analyzer:  analyzer,
		overrides: overrides,
		lock:      lock,
		opts:      opts,
	}
}

// withLock runs fn under the single-flight lock for key. A held lock is
// reported as a conflict.
func (h *Handlers) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	err := distlock.WithLock(ctx, h.lock(key), fn)
	if errors.Is(err, distlock.ErrNotAcquired) {
		return errors.Join(domain.ErrConflict, err)
	}
	return err
}

// RunMatchResponse is the body returned by RunAutoMatch.
type RunMatchResponse struct {
	EmailMatches int                     `json:"email_matches"`
	NameMatches  int                     `json:"name_matches"`
	Total        int                     `json:"total"`
	Restored     *matching.RestoreResult `json:"restored,omitempty"`
}

// RunAutoMatch pairs unmatched respondents cohort by cohort.
//
//	POST /api/match/run
func (h *Handlers) RunAutoMatch(w http.ResponseWriter, r *http.Request) {
	var resp RunMatchResponse
	err := h.withLock(r.Context(), distlock.AutoMatchKey, func(ctx context.Context) error {
		if h.opts.RestoreOverrides {
			restored, err := h.matcher.RestoreOverrides(ctx)
			if err != nil {
				return err
			}
			resp.Restored = &restored
		}
		result, err := h.matcher.RunAutoMatch(ctx)
		if err != nil {
			return err
		}
		resp.EmailMatches = result.EmailMatches
		resp.NameMatches = result.NameMatches
		resp.Total = result.Total()
		return nil
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	logger.Info("[api] auto-match run", "email_matches", resp.EmailMatches, "name_matches", resp.NameMatches)
	httputil.OK(w, resp)
}

// ManualPairingRequest is the body of CreateManualPairing.
type ManualPairingRequest struct {
	BeforeID  string `json:"before_id"`
	AfterID   string `json:"after_id"`
	CreatedBy string `json:"created_by"`
	Notes     string `json:"notes"`
}

// CreateManualPairing records an operator's pairing and its override entry.
//
//	POST /api/match/manual
func (h *Handlers) CreateManualPairing(w http.ResponseWriter, r *http.Request) {
	var req ManualPairingRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.BeforeID == "" || req.AfterID == "" {
		httputil.BadRequest(w, "before_id and after_id are required")
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}

	var pairing *domain.Pairing
	err := h.withLock(r.Context(), distlock.OverrideWriteKey, func(ctx context.Context) error {
		var err error
		pairing, err = h.matcher.CreateManualPairing(ctx, req.BeforeID, req.AfterID, req.CreatedBy, req.Notes)
		return err
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, pairing)
}

// MatchStats reports pairings by origin and unmatched counts.
//
//	GET /api/match/stats
func (h *Handlers) MatchStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.matcher.Stats(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// Unmatched lists respondents of one side without a pairing, paged by
// ?page and ?limit.
//
//	GET /api/match/unmatched/{side}
func (h *Handlers) Unmatched(w http.ResponseWriter, r *http.Request) {
	side, err := domain.ParseSurveySide(chi.URLParam(r, "side"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	people, err := h.matcher.Unmatched(r.Context(), side)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	page, meta := paginate(people, ParsePagination(r, defaultPageLimit, maxPageLimit))
	httputil.OK(w, map[string]any{"side": side, "count": meta.Total, "respondents": page, "pagination": meta})
}

// PairingsByCohort lists the pairings of one cohort.
//
//	GET /api/match/cohorts/{cohort}
func (h *Handlers) PairingsByCohort(w http.ResponseWriter, r *http.Request) {
	cohort, err := url.PathUnescape(chi.URLParam(r, "cohort"))
	if err != nil {
		httputil.BadRequest(w, "invalid cohort")
		return
	}
	pairings, err := h.matcher.PairingsByCohort(r.Context(), cohort)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	page, meta := paginate(pairings, ParsePagination(r, defaultPageLimit, maxPageLimit))
	httputil.OK(w, map[string]any{"cohort": cohort, "count": meta.Total, "pairings": page, "pagination": meta})
}

// ListOverrides returns every entry of the override file.
//
//	GET /api/overrides
func (h *Handlers) ListOverrides(w http.ResponseWriter, r *http.Request) {
	entries, err := h.overrides.AllEntries(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.ManualOverrideEntry{}
	}
	httputil.OK(w, map[string]any{"count": len(entries), "entries": entries})
}

// RestoreOverrides re-creates manual pairings from the override file.
//
//	POST /api/overrides/restore
func (h *Handlers) RestoreOverrides(w http.ResponseWriter, r *http.Request) {
	var result matching.RestoreResult
	err := h.withLock(r.Context(), distlock.AutoMatchKey, func(ctx context.Context) error {
		var err error
		result, err = h.matcher.RestoreOverrides(ctx)
		return err
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, result)
}

// ImportResponse is the body returned by Import.
type ImportResponse struct {
	Side     domain.SurveySide     `json:"side"`
	Imported int                   `json:"imported"`
	Skipped  int                   `json:"skipped"`
	Failed   int                   `json:"failed"`
	Rejected []domain.ParseWarning `json:"rejected,omitempty"`
}

// Import reads a CSV export for one side. The export is either the raw
// request body or the "file" part of a multipart form.
//
//	POST /api/import/{side}
func (h *Handlers) Import(w http.ResponseWriter, r *http.Request) {
	side, err := domain.ParseSurveySide(chi.URLParam(r, "side"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	body, closeBody, err := uploadReader(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	defer closeBody()

	result, rejected, err := intake.Import(r.Context(), h.ingester, side, body, h.opts.SituationPrefix)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		httputil.FromError(w, err)
		return
	}
	logger.Info("[api] import finished", "side", string(side),
		"imported", result.Imported, "skipped", result.Skipped, "failed", result.Failed)
	httputil.OK(w, ImportResponse{
		Side:     side,
		Imported: result.Imported,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
		Rejected: rejected,
	})
}

func uploadReader(r *http.Request) (io.Reader, func(), error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		return r.Body, func() {}, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, nil, errors.New("multipart upload needs a \"file\" part")
	}
	return file, func() { file.Close() }, nil
}

// Analysis computes change metrics over all pairings. With ?format=text the
// plain-text report is returned instead of JSON.
//
//	GET /api/analysis
func (h *Handlers) Analysis(w http.ResponseWriter, r *http.Request) {
	result, err := h.analyzer.Analyze(r.Context())
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if r.URL.Query().Get("format") != "text" {
		httputil.OK(w, result)
		return
	}

	renderer, err := report.NewRenderer()
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	text, err := renderer.Text(result)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, text)
}
