package review

import (
	"context"
	"errors"
	"testing"

	"github.com/conorfennell/qvet/internal/domain"
)

type fakeStore struct {
	reviewerID int

	assignments [][]int
	assignErrs  []error
	assignCalls int

	questions     map[int]domain.Question
	remoteHistory []domain.HistoryEntry
	historyErr    error

	reviews     map[[2]int]domain.Review
	nextID      int
	createCalls int
	updateCalls int

	skipped []int
	skipErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reviewerID: 7,
		nextID:     100,
		questions:  make(map[int]domain.Question),
		reviews:    make(map[[2]int]domain.Review),
	}
}

func (f *fakeStore) UpsertAuthor(context.Context, domain.ReviewerProfile) (int, error) {
	return f.reviewerID, nil
}

func (f *fakeStore) NextAssignment(context.Context, int, []string) ([]int, error) {
	call := f.assignCalls
	f.assignCalls++
	if call < len(f.assignErrs) && f.assignErrs[call] != nil {
		return nil, f.assignErrs[call]
	}
	if call < len(f.assignments) {
		return f.assignments[call], nil
	}
	return nil, nil
}

func (f *fakeStore) QuestionsByIDs(_ context.Context, ids []int) ([]domain.Question, error) {
	var out []domain.Question
	for _, id := range ids {
		if q, ok := f.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeStore) ReviewHistory(context.Context, int) ([]domain.HistoryEntry, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.remoteHistory, nil
}

func (f *fakeStore) FindReview(_ context.Context, reviewerID, questionID int) (*domain.Review, error) {
	if r, ok := f.reviews[[2]int{reviewerID, questionID}]; ok {
		found := r
		return &found, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateReview(_ context.Context, review domain.Review) (int, error) {
	f.createCalls++
	f.nextID++
	review.ID = f.nextID
	f.reviews[[2]int{review.ReviewerID, review.QuestionID}] = review
	return review.ID, nil
}

func (f *fakeStore) UpdateReview(_ context.Context, id int, review domain.Review) (int, error) {
	f.updateCalls++
	review.ID = id
	f.reviews[[2]int{review.ReviewerID, review.QuestionID}] = review
	return id, nil
}

func (f *fakeStore) Skip(_ context.Context, _, questionID int) error {
	if f.skipErr != nil {
		return f.skipErr
	}
	f.skipped = append(f.skipped, questionID)
	return nil
}

type fakeJournal struct {
	entries map[int][]domain.HistoryEntry
	appends int
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{entries: make(map[int][]domain.HistoryEntry)}
}

func (j *fakeJournal) Append(_ context.Context, reviewerID int, entry domain.HistoryEntry) error {
	j.appends++
	j.entries[reviewerID] = append([]domain.HistoryEntry{entry}, j.entries[reviewerID]...)
	return nil
}

func (j *fakeJournal) Recent(_ context.Context, reviewerID, limit int) ([]domain.HistoryEntry, error) {
	entries := j.entries[reviewerID]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func physicsProfile() domain.ReviewerProfile {
	return domain.ReviewerProfile{
		Name:            "Jane Doe",
		Affiliation:     "ANL",
		Position:        "Early Career",
		EligibleDomains: []string{"physics"},
	}
}

func TestConfigureAndDecideScenario(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "What cools a neutron star?"}
	store.assignments = [][]int{{42}} // second call: caught up

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}

	session := engine.Session()
	if session.State != StateAssigned || session.Current == nil || session.Current.Question.ID != 42 {
		t.Fatalf("Expected question 42 assigned, got %+v", session)
	}
	if session.ProgressGoal != 10 {
		t.Errorf("Expected advisory goal 10, got %d", session.ProgressGoal)
	}

	reviewID, err := engine.Decide(context.Background(), 42, domain.DefaultScores(), "ok", true)
	if err != nil {
		t.Fatalf("Decide() returned an unexpected error: %v", err)
	}
	if reviewID == 0 {
		t.Fatal("Expected an authoritative review id")
	}

	session = engine.Session()
	if session.ProgressSoFar != 1 {
		t.Errorf("Expected progress 1, got %d", session.ProgressSoFar)
	}
	if len(session.History) != 1 || session.History[0].QuestionID != 42 || session.History[0].Action != domain.ActionApproved {
		t.Errorf("Expected one approved history entry for question 42, got %+v", session.History)
	}
	if session.State != StateExhausted || session.Current != nil {
		t.Errorf("Expected an exhausted session after the pool emptied, got %+v", session)
	}
}

func TestDecideTwiceUpdatesSameReview(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "q"}
	store.assignments = [][]int{{42}}
	// The fetch after the first decision fails, so question 42 stays on the
	// desk with its persisted review id attached.
	store.assignErrs = []error{nil, errors.New("pool unreachable")}

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}

	firstID, err := engine.Decide(context.Background(), 42, domain.DefaultScores(), "first pass", true)
	if err != nil {
		t.Fatalf("First Decide() returned an unexpected error: %v", err)
	}

	finalScores := domain.DefaultScores()
	finalScores.AnswerUnique = 4
	secondID, err := engine.Decide(context.Background(), 42, finalScores, "second pass", true)
	if err != nil {
		t.Fatalf("Second Decide() returned an unexpected error: %v", err)
	}

	if firstID != secondID {
		t.Errorf("Expected the same review id both times, got %d and %d", firstID, secondID)
	}
	if store.createCalls != 1 || store.updateCalls != 1 {
		t.Errorf("Expected one create and one update, got %d creates and %d updates", store.createCalls, store.updateCalls)
	}
	stored, err := store.FindReview(context.Background(), 7, 42)
	if err != nil || stored == nil {
		t.Fatalf("Expected exactly one stored review, got %+v (err %v)", stored, err)
	}
	if stored.ID != firstID || stored.Scores.AnswerUnique != 4 || stored.Comments != "second pass" {
		t.Errorf("Expected the update to win, got %+v", stored)
	}
}

func TestSkipNeverPersistsAReview(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "q"}
	store.assignments = [][]int{{42}}

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	if err := engine.Skip(context.Background(), 42); err != nil {
		t.Fatalf("Skip() returned an unexpected error: %v", err)
	}

	if stored, _ := store.FindReview(context.Background(), 7, 42); stored != nil {
		t.Errorf("Expected no persisted review after a skip, got %+v", stored)
	}
	session := engine.Session()
	if len(session.History) != 1 || session.History[0].Action != domain.ActionSkipped || session.History[0].ReviewID != 0 {
		t.Errorf("Expected exactly one skip history entry, got %+v", session.History)
	}
	if session.ProgressSoFar != 1 {
		t.Errorf("Expected session progress 1, got %d", session.ProgressSoFar)
	}
	if len(store.skipped) != 1 || store.skipped[0] != 42 {
		t.Errorf("Expected skip bookkeeping for question 42, got %v", store.skipped)
	}
}

func TestExhaustedThenNavigateHistory(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "old question"}
	store.remoteHistory = []domain.HistoryEntry{{ReviewID: 90, QuestionID: 42, Action: domain.ActionApproved}}
	// Pool is empty from the start.

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}

	session := engine.Session()
	if session.State != StateExhausted || session.Current != nil {
		t.Fatalf("Expected an exhausted session, got %+v", session)
	}

	q, err := engine.NavigateHistory(context.Background(), 42)
	if err != nil {
		t.Fatalf("NavigateHistory() returned an unexpected error: %v", err)
	}
	if q.ID != 42 {
		t.Errorf("Expected question 42, got %+v", q)
	}

	session = engine.Session()
	if session.Current != nil {
		t.Error("Expected history navigation to leave the current assignment nil")
	}
	if session.ProgressSoFar != 0 || len(session.History) != 1 {
		t.Errorf("Expected history navigation to mutate nothing, got %+v", session)
	}
}

func TestPoolContractViolationUsesFirstID(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "first"}
	store.questions[43] = domain.Question{ID: 43, Question: "second"}
	store.assignments = [][]int{{42, 43}}

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	session := engine.Session()
	if session.Current == nil || session.Current.Question.ID != 42 {
		t.Errorf("Expected the first offered id to win, got %+v", session.Current)
	}
}

func TestDecideWithoutConfiguration(t *testing.T) {
	engine := NewEngine(newFakeStore(), nil)
	if _, err := engine.Decide(context.Background(), 42, domain.DefaultScores(), "", true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestDecideWhenExhausted(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	if _, err := engine.Decide(context.Background(), 42, domain.DefaultScores(), "", true); !errors.Is(err, ErrNoAssignment) {
		t.Errorf("Expected ErrNoAssignment, got %v", err)
	}
}

func TestDecideRejectsOutOfRangeScores(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "q"}
	store.assignments = [][]int{{42}}

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}

	bad := domain.DefaultScores()
	bad.ArithmeticFree = 5
	if _, err := engine.Decide(context.Background(), 42, bad, "", true); err == nil {
		t.Fatal("Expected out-of-range scores to be rejected")
	}
	if store.createCalls != 0 {
		t.Errorf("Expected no store write for invalid scores, got %d creates", store.createCalls)
	}
}

func TestFailedSkipLeavesSessionUnchanged(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "q"}
	store.assignments = [][]int{{42}}
	store.skipErr = errors.New("store down")

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	before := engine.Session()

	if err := engine.Skip(context.Background(), 42); err == nil {
		t.Fatal("Expected the skip failure to surface")
	}

	after := engine.Session()
	if after.ProgressSoFar != before.ProgressSoFar || len(after.History) != len(before.History) {
		t.Errorf("Expected session unchanged after a failed skip, got %+v", after)
	}
	if after.Current == nil || after.Current.Question.ID != 42 {
		t.Errorf("Expected question 42 still assigned, got %+v", after.Current)
	}
}

func TestSkipForSupersededQuestionIsRejected(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "first"}
	store.questions[43] = domain.Question{ID: 43, Question: "second"}
	store.assignments = [][]int{{42}, {43}}

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	if _, err := engine.Decide(context.Background(), 42, domain.DefaultScores(), "ok", true); err != nil {
		t.Fatalf("Decide() returned an unexpected error: %v", err)
	}

	// The deciding reviewer was still looking at question 42 when this
	// skip left their browser; question 43 is on the desk now.
	if err := engine.Skip(context.Background(), 42); !errors.Is(err, ErrStaleAssignment) {
		t.Fatalf("Expected ErrStaleAssignment, got %v", err)
	}

	if len(store.skipped) != 0 {
		t.Errorf("Expected no skip bookkeeping for the superseded submission, got %v", store.skipped)
	}
	session := engine.Session()
	if session.Current == nil || session.Current.Question.ID != 43 {
		t.Errorf("Expected question 43 still assigned, got %+v", session.Current)
	}
	if session.ProgressSoFar != 1 {
		t.Errorf("Expected progress unchanged at 1, got %d", session.ProgressSoFar)
	}
}

func TestDecideForSupersededQuestionIsRejected(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "first"}
	store.questions[43] = domain.Question{ID: 43, Question: "second"}
	store.assignments = [][]int{{42}, {43}}

	engine := NewEngine(store, nil)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	if err := engine.Skip(context.Background(), 42); err != nil {
		t.Fatalf("Skip() returned an unexpected error: %v", err)
	}

	if _, err := engine.Decide(context.Background(), 42, domain.DefaultScores(), "", true); !errors.Is(err, ErrStaleAssignment) {
		t.Fatalf("Expected ErrStaleAssignment, got %v", err)
	}
	if store.createCalls != 0 {
		t.Errorf("Expected no review persisted for the superseded submission, got %d creates", store.createCalls)
	}
}

func TestConfigureFallsBackToJournalHistory(t *testing.T) {
	store := newFakeStore()
	store.historyErr = errors.New("history endpoint down")

	journal := newFakeJournal()
	journal.Append(context.Background(), 7, domain.HistoryEntry{ReviewID: 90, QuestionID: 42, Action: domain.ActionApproved})

	engine := NewEngine(store, journal)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	session := engine.Session()
	if len(session.History) != 1 || session.History[0].ReviewID != 90 {
		t.Errorf("Expected the journal entry as fallback history, got %+v", session.History)
	}
}

func TestDecisionsAreJournaled(t *testing.T) {
	store := newFakeStore()
	store.questions[42] = domain.Question{ID: 42, Question: "q"}
	store.assignments = [][]int{{42}}

	journal := newFakeJournal()
	engine := NewEngine(store, journal)
	if err := engine.Configure(context.Background(), physicsProfile()); err != nil {
		t.Fatalf("Configure() returned an unexpected error: %v", err)
	}
	if _, err := engine.Decide(context.Background(), 42, domain.DefaultScores(), "ok", false); err != nil {
		t.Fatalf("Decide() returned an unexpected error: %v", err)
	}
	if journal.appends != 1 {
		t.Errorf("Expected one journal append, got %d", journal.appends)
	}
	entries := journal.entries[7]
	if len(entries) != 1 || entries[0].Action != domain.ActionRejected {
		t.Errorf("Expected a rejected entry in the journal, got %+v", entries)
	}
}
