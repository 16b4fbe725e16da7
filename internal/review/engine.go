// Package review drives the reviewer workflow: request one assignment at a
// time from the pool, record an accept/reject/skip decision, and keep a
// navigable history of past decisions.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/qvet/internal/domain"
)

// ProgressGoal is the advisory per-session target shown to the reviewer.
// Reaching it never blocks further reviewing.
const ProgressGoal = 10

// State is the workflow position of a session.
type State int

const (
	StateUnconfigured State = iota
	StateAssigned
	StateExhausted
)

var (
	ErrNotConfigured   = errors.New("reviewer session not configured")
	ErrNoAssignment    = errors.New("no current assignment")
	ErrStaleAssignment = errors.New("decision targets a question that is no longer assigned")
)

// Store is the slice of the external record store the engine depends on.
type Store interface {
	UpsertAuthor(ctx context.Context, profile domain.ReviewerProfile) (int, error)
	NextAssignment(ctx context.Context, reviewerID int, domains []string) ([]int, error)
	QuestionsByIDs(ctx context.Context, ids []int) ([]domain.Question, error)
	ReviewHistory(ctx context.Context, reviewerID int) ([]domain.HistoryEntry, error)
	FindReview(ctx context.Context, reviewerID, questionID int) (*domain.Review, error)
	CreateReview(ctx context.Context, review domain.Review) (int, error)
	UpdateReview(ctx context.Context, id int, review domain.Review) (int, error)
	Skip(ctx context.Context, reviewerID, questionID int) error
}

// Journal is the optional local audit trail. Appends are best effort and
// never block a transition; Recent is only consulted when the remote
// history fetch fails during Configure.
type Journal interface {
	Append(ctx context.Context, reviewerID int, entry domain.HistoryEntry) error
	Recent(ctx context.Context, reviewerID, limit int) ([]domain.HistoryEntry, error)
}

// Assignment is the item currently on the reviewer's desk, with the prior
// review for the (reviewer, question) pair looked up when it was shown.
// A non-nil PriorReview turns the next decision into an update.
type Assignment struct {
	Question    domain.Question
	PriorReview *domain.Review
}

// Session is the reviewer's in-memory workflow state. It lives from
// Configure until the reviewer reconfigures or the process exits.
type Session struct {
	ReviewerID      int
	EligibleDomains []string
	State           State
	Current         *Assignment
	History         []domain.HistoryEntry // most-recent-first
	ProgressSoFar   int
	ProgressGoal    int
}

// Engine owns one Session and applies workflow transitions to it. The
// mutex serialises state-advancing operations, so at most one assignment
// request is outstanding per session.
type Engine struct {
	store    Store
	journal  Journal
	validate *validator.Validate

	mu      sync.Mutex
	session Session
}

func NewEngine(store Store, journal Journal) *Engine {
	return &Engine{
		store:    store,
		journal:  journal,
		validate: validator.New(),
	}
}

// Session returns a snapshot of the current session state for display.
func (e *Engine) Session() Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := e.session
	snapshot.EligibleDomains = slices.Clone(e.session.EligibleDomains)
	snapshot.History = slices.Clone(e.session.History)
	if e.session.Current != nil {
		current := *e.session.Current
		snapshot.Current = &current
	}
	return snapshot
}

// Configure registers the reviewer (upsert keyed on name+affiliation by
// the author API), loads their decision history, and requests exactly one
// assignment. A failed call leaves any existing session untouched.
func (e *Engine) Configure(ctx context.Context, profile domain.ReviewerProfile) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.validate.Struct(profile); err != nil {
		return fmt.Errorf("invalid reviewer profile: %w", err)
	}

	reviewerID, err := e.store.UpsertAuthor(ctx, profile)
	if err != nil {
		return fmt.Errorf("register reviewer: %w", err)
	}

	next := Session{
		ReviewerID:      reviewerID,
		EligibleDomains: slices.Clone(profile.EligibleDomains),
		State:           StateExhausted,
		ProgressGoal:    ProgressGoal,
	}

	history, err := e.store.ReviewHistory(ctx, reviewerID)
	if err != nil {
		slog.Warn("review history fetch failed, falling back to local journal", "reviewer_id", reviewerID, "error", err)
		history = e.journalHistory(ctx, reviewerID)
	}
	next.History = history

	assignment, err := e.fetchAssignment(ctx, reviewerID, next.EligibleDomains)
	if err != nil {
		return err
	}
	if assignment != nil {
		next.Current = assignment
		next.State = StateAssigned
	}

	e.session = next
	return nil
}

// Decide persists the reviewer's judgment on the current assignment: an
// update when a prior review exists for the (reviewer, question) pair,
// a create otherwise. On success it prepends a history entry, bumps the
// progress counter, and advances to the next assignment. The returned id
// is the authoritative review id from the store. questionID names the
// question the judgment was formed against; a submission raced by an
// earlier transition is rejected rather than applied to whatever is
// assigned now.
func (e *Engine) Decide(ctx context.Context, questionID int, scores domain.Scores, comments string, accept bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.currentAssignment(questionID)
	if err != nil {
		return 0, err
	}
	if err := e.validate.Struct(scores); err != nil {
		return 0, fmt.Errorf("invalid scores: %w", err)
	}

	review := domain.Review{
		ReviewerID: e.session.ReviewerID,
		QuestionID: current.Question.ID,
		Scores:     scores,
		Comments:   comments,
		Accept:     accept,
	}

	var reviewID int
	if current.PriorReview != nil {
		reviewID, err = e.store.UpdateReview(ctx, current.PriorReview.ID, review)
	} else {
		reviewID, err = e.store.CreateReview(ctx, review)
	}
	if err != nil {
		return 0, err
	}

	action := domain.ActionRejected
	if accept {
		action = domain.ActionApproved
	}
	e.record(ctx, domain.HistoryEntry{
		ReviewID:   reviewID,
		QuestionID: current.Question.ID,
		Question:   current.Question.Question,
		Action:     action,
		Modified:   time.Now(),
	})

	e.advance(ctx, reviewID, &review)
	return reviewID, nil
}

// Skip records server-side skip bookkeeping and a session-local history
// entry, then advances. A skip is never persisted as a review. Like
// Decide, it names the question it was issued for and is rejected when
// that question is no longer the current assignment.
func (e *Engine) Skip(ctx context.Context, questionID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.currentAssignment(questionID)
	if err != nil {
		return err
	}

	if err := e.store.Skip(ctx, e.session.ReviewerID, current.Question.ID); err != nil {
		return err
	}

	e.record(ctx, domain.HistoryEntry{
		QuestionID: current.Question.ID,
		Question:   current.Question.Question,
		Action:     domain.ActionSkipped,
		Modified:   time.Now(),
	})

	e.advance(ctx, 0, nil)
	return nil
}

// NavigateHistory fetches a previously-seen question for read-only
// re-display. It never touches the session: the current assignment,
// history, and progress counters are all left as they are.
func (e *Engine) NavigateHistory(ctx context.Context, questionID int) (domain.Question, error) {
	questions, err := e.store.QuestionsByIDs(ctx, []int{questionID})
	if err != nil {
		return domain.Question{}, err
	}
	if len(questions) != 1 {
		return domain.Question{}, fmt.Errorf("question %d not found", questionID)
	}
	return questions[0], nil
}

func (e *Engine) currentAssignment(questionID int) (*Assignment, error) {
	if e.session.State == StateUnconfigured {
		return nil, ErrNotConfigured
	}
	if e.session.Current == nil {
		return nil, ErrNoAssignment
	}
	if e.session.Current.Question.ID != questionID {
		return nil, fmt.Errorf("%w: question %d submitted, question %d assigned",
			ErrStaleAssignment, questionID, e.session.Current.Question.ID)
	}
	return e.session.Current, nil
}

// record prepends a history entry, bumps session progress, and mirrors the
// entry into the local journal.
func (e *Engine) record(ctx context.Context, entry domain.HistoryEntry) {
	e.session.History = append([]domain.HistoryEntry{entry}, e.session.History...)
	e.session.ProgressSoFar++
	if e.journal != nil {
		if err := e.journal.Append(ctx, e.session.ReviewerID, entry); err != nil {
			slog.Warn("journal append failed", "reviewer_id", e.session.ReviewerID, "error", err)
		}
	}
}

// advance replaces the current assignment with the pool's next offer. The
// preceding decision or skip is already durable, so a failed fetch keeps
// the reviewed item on screen instead of unwinding anything; the next
// decision on it is idempotent because the prior review id is now known.
func (e *Engine) advance(ctx context.Context, reviewID int, persisted *domain.Review) {
	next, err := e.fetchAssignment(ctx, e.session.ReviewerID, e.session.EligibleDomains)
	if err != nil {
		slog.Warn("next assignment fetch failed", "reviewer_id", e.session.ReviewerID, "error", err)
		if persisted != nil && e.session.Current != nil {
			stored := *persisted
			stored.ID = reviewID
			e.session.Current.PriorReview = &stored
		}
		return
	}
	e.session.Current = next
	if next == nil {
		e.session.State = StateExhausted
	} else {
		e.session.State = StateAssigned
	}
}

// fetchAssignment asks the pool for at most one question id and loads the
// question plus any prior review by this reviewer. nil means the reviewer
// is caught up.
func (e *Engine) fetchAssignment(ctx context.Context, reviewerID int, domains []string) (*Assignment, error) {
	ids, err := e.store.NextAssignment(ctx, reviewerID, domains)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > 1 {
		slog.Warn("assignment pool returned more than one id", "count", len(ids), "ids", ids)
	}
	questionID := ids[0]

	questions, err := e.store.QuestionsByIDs(ctx, []int{questionID})
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("assigned question %d not found", questionID)
	}

	prior, err := e.store.FindReview(ctx, reviewerID, questionID)
	if err != nil {
		slog.Warn("prior review lookup failed, treating as new", "question_id", questionID, "error", err)
		prior = nil
	}
	return &Assignment{Question: questions[0], PriorReview: prior}, nil
}

func (e *Engine) journalHistory(ctx context.Context, reviewerID int) []domain.HistoryEntry {
	if e.journal == nil {
		return nil
	}
	entries, err := e.journal.Recent(ctx, reviewerID, 50)
	if err != nil {
		slog.Warn("journal read failed", "reviewer_id", reviewerID, "error", err)
		return nil
	}
	return entries
}
