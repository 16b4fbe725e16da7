package search

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/conorfennell/qvet/internal/domain"
)

type scriptedLister struct {
	mu      sync.Mutex
	calls   int
	results [][]domain.Question
	errs    []error
	// firstStarted is closed when the first call begins; blockFirst, when
	// non-nil, makes that call wait until released.
	firstStarted chan struct{}
	blockFirst   chan struct{}
}

func (l *scriptedLister) ListQuestions(_ context.Context, _ Query, _ int, _ int) ([]domain.Question, error) {
	l.mu.Lock()
	call := l.calls
	l.calls++
	l.mu.Unlock()
	if call == 0 {
		if l.firstStarted != nil {
			close(l.firstStarted)
		}
		if l.blockFirst != nil {
			<-l.blockFirst
		}
	}
	var err error
	if call < len(l.errs) {
		err = l.errs[call]
	}
	var qs []domain.Question
	if call < len(l.results) {
		qs = l.results[call]
	}
	return qs, err
}

func TestSearcherReturnsCurrentResult(t *testing.T) {
	lister := &scriptedLister{results: [][]domain.Question{{{ID: 5, Question: "q5"}}}}
	s := NewSearcher(&fakeResolver{}, lister)

	res, ok, err := s.Search(context.Background(), "plain text", 0, 10)
	if err != nil {
		t.Fatalf("Search() returned an unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("Expected the only search to be current")
	}
	if len(res.Questions) != 1 || res.Questions[0].ID != 5 {
		t.Errorf("Expected question 5, got %v", res.Questions)
	}
}

func TestSearcherDiscardsStaleResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	lister := &scriptedLister{
		firstStarted: started,
		blockFirst:   release,
		results: [][]domain.Question{
			{{ID: 1, Question: "old"}},
			{{ID: 2, Question: "new"}},
		},
	}
	s := NewSearcher(&fakeResolver{}, lister)

	type outcome struct {
		res Result
		ok  bool
		err error
	}
	firstDone := make(chan outcome)
	go func() {
		res, ok, err := s.Search(context.Background(), "old query", 0, 10)
		firstDone <- outcome{res, ok, err}
	}()

	// The first search is parked inside the lister; it already holds its
	// sequence number, so a second search supersedes it.
	<-started
	res, ok, err := s.Search(context.Background(), "new query", 0, 10)
	if err != nil || !ok {
		t.Fatalf("Expected the newer search to land, got ok=%v err=%v", ok, err)
	}
	if len(res.Questions) != 1 || res.Questions[0].ID != 2 {
		t.Errorf("Expected the newer page, got %v", res.Questions)
	}

	close(release)
	first := <-firstDone
	if first.ok {
		t.Error("Expected the superseded search to be discarded")
	}
	if first.err != nil {
		t.Errorf("Expected no error from a discarded search, got %v", first.err)
	}
}

func TestSearcherSurfacesListError(t *testing.T) {
	lister := &scriptedLister{errs: []error{errors.New("store down")}}
	s := NewSearcher(&fakeResolver{}, lister)

	_, ok, err := s.Search(context.Background(), "anything", 0, 10)
	if !ok {
		t.Fatal("Expected the only search to be current")
	}
	if err == nil {
		t.Fatal("Expected the store error to surface")
	}
}
