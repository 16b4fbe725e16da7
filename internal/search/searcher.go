package search

import (
	"context"
	"sync"

	"github.com/conorfennell/qvet/internal/domain"
)

// Lister runs the faceted list query against the external store.
type Lister interface {
	ListQuestions(ctx context.Context, q Query, offset, limit int) ([]domain.Question, error)
}

// Result is one completed search: the parsed query and its page of matches.
type Result struct {
	Query     Query
	Questions []domain.Question
}

// Searcher serialises searches by a monotonically increasing sequence
// number. When a newer search is issued while an older one is still
// resolving names or waiting on the store, the older result is discarded
// on arrival: last write wins.
type Searcher struct {
	resolver Resolver
	lister   Lister

	mu  sync.Mutex
	seq uint64
}

func NewSearcher(resolver Resolver, lister Lister) *Searcher {
	return &Searcher{resolver: resolver, lister: lister}
}

// Search parses raw and fetches the matching page. The second return value
// reports whether the result is current; a superseded search returns
// ok=false with no error, and its outcome (including any error) is dropped.
func (s *Searcher) Search(ctx context.Context, raw string, offset, limit int) (Result, bool, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	q := Parse(ctx, raw, s.resolver)
	questions, err := s.lister.ListQuestions(ctx, q, offset, limit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, true, err
	}
	return Result{Query: q, Questions: questions}, true, nil
}
