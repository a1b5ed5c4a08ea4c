// Package memory provides in-process implementations of the repository
// interfaces. It backs the service tests and the CLI's --memory mode.
package memory

import (
	"context"
	"sync"

	"github.com/ignite/cohort-match/internal/domain"
)

// Store holds all tables. The repositories returned by People, Matches and
// Responses share it, and WithinTx gives them all-or-nothing semantics by
// restoring a snapshot on failure.
type Store struct {
	mu          sync.RWMutex
	txMu        sync.Mutex
	respondents []domain.Respondent
	pairings    []domain.Pairing
	responses   []domain.Response
}

// NewStore creates an empty store.
func NewStore() *Store { return &Store{} }

// People returns the respondent repository.
func (s *Store) People() *PersonRepo { return &PersonRepo{s: s} }

// Matches returns the pairing repository.
func (s *Store) Matches() *MatchRepo { return &MatchRepo{s: s} }

// Responses returns the response repository.
func (s *Store) Responses() *ResponseRepo { return &ResponseRepo{s: s} }

type txKey struct{}

// WithinTx runs fn; if fn fails every change made through this store
// since the call began is discarded. Transactions are serialized; a nested
// call joins the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snap := snapshot{
		respondents: append([]domain.Respondent(nil), s.respondents...),
		pairings:    append([]domain.Pairing(nil), s.pairings...),
		responses:   append([]domain.Response(nil), s.responses...),
	}
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.respondents, s.pairings, s.responses = snap.respondents, snap.pairings, snap.responses
		s.mu.Unlock()
		return err
	}
	return nil
}

type snapshot struct {
	respondents []domain.Respondent
	pairings    []domain.Pairing
	responses   []domain.Response
}
