// Package api is the HTTP client for the external question/author/review
// store. The console owns no record data; every method here is a thin,
// retried call against the collaborator API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/qvet/internal/domain"
	"github.com/conorfennell/qvet/internal/resilience"
	"github.com/conorfennell/qvet/internal/search"
)

// Client talks to the store API rooted at baseURL (".../api").
type Client struct {
	baseURL    string
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(baseURL string, timeout time.Duration, exec *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
	}
}

// Domain is a directory entry for a question domain.
type Domain struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type idRecord struct {
	ID int `json:"id"`
}

// reviewPayload is the flattened wire form of a review: the twelve
// sub-scores sit at the top level next to author and question_id.
type reviewPayload struct {
	Author     int `json:"author"`
	QuestionID int `json:"question_id"`
	domain.Scores
	Comments string `json:"comments"`
	Accept   bool   `json:"accept"`
}

type reviewRecord struct {
	ID         int `json:"id"`
	Author     int `json:"author"`
	QuestionID int `json:"question_id"`
	domain.Scores
	Comments string `json:"comments"`
	Accept   bool   `json:"accept"`
}

// ResolveDomains returns the IDs of directory domains matching name
// exactly. An unknown name is an empty result, not an error.
func (c *Client) ResolveDomains(ctx context.Context, name string) ([]int, error) {
	return c.resolve(ctx, "/domain", "resolve domain", name)
}

// ResolveAuthors returns the IDs of authors matching name exactly.
func (c *Client) ResolveAuthors(ctx context.Context, name string) ([]int, error) {
	return c.resolve(ctx, "/author", "resolve author", name)
}

func (c *Client) resolve(ctx context.Context, path, operation, name string) ([]int, error) {
	var records []idRecord
	query := url.Values{"name": {name}}
	err := c.exec.Do(ctx, operation, func(ctx context.Context) error {
		return c.getJSON(ctx, path, query, &records, operation)
	})
	if err != nil {
		return nil, err
	}
	ids := make([]int, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// ListDomains returns the full domain directory.
func (c *Client) ListDomains(ctx context.Context) ([]Domain, error) {
	var domains []Domain
	err := c.exec.Do(ctx, "list domains", func(ctx context.Context) error {
		return c.getJSON(ctx, "/domain", nil, &domains, "list domains")
	})
	if err != nil {
		return nil, err
	}
	return domains, nil
}

// UpsertAuthor registers the reviewer, or looks them up when a record
// keyed on name+affiliation already exists, and returns the reviewer id.
func (c *Client) UpsertAuthor(ctx context.Context, profile domain.ReviewerProfile) (int, error) {
	var record idRecord
	err := c.exec.Do(ctx, "upsert author", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, "/author", nil, profile, &record, "upsert author")
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

// NextAssignment asks the pool for the next unreviewed question for this
// reviewer within domains. The pool contract is at most one id per call;
// the raw slice is returned so the caller can log contract violations.
func (c *Client) NextAssignment(ctx context.Context, reviewerID int, domains []string) ([]int, error) {
	payload := struct {
		Author  int      `json:"author"`
		Domains []string `json:"domains"`
	}{Author: reviewerID, Domains: domains}

	query := url.Values{"limit": {"1"}, "validations": {"1"}}
	var ids []int
	err := c.exec.Do(ctx, "next assignment", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, "/review_batch", query, payload, &ids, "next assignment")
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindReview returns this reviewer's persisted review of the question, or
// nil when none exists.
func (c *Client) FindReview(ctx context.Context, reviewerID, questionID int) (*domain.Review, error) {
	query := url.Values{
		"reviewer_id": {strconv.Itoa(reviewerID)},
		"question_id": {strconv.Itoa(questionID)},
	}
	var records []reviewRecord
	err := c.exec.Do(ctx, "find review", func(ctx context.Context) error {
		return c.getJSON(ctx, "/review", query, &records, "find review")
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	r := records[0]
	return &domain.Review{
		ID:         r.ID,
		ReviewerID: r.Author,
		QuestionID: r.QuestionID,
		Scores:     r.Scores,
		Comments:   r.Comments,
		Accept:     r.Accept,
	}, nil
}

// CreateReview persists a new review and returns its id.
func (c *Client) CreateReview(ctx context.Context, review domain.Review) (int, error) {
	var record idRecord
	err := c.exec.Do(ctx, "create review", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, "/review", nil, toPayload(review), &record, "create review")
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

// UpdateReview replaces the persisted review with the given id.
func (c *Client) UpdateReview(ctx context.Context, id int, review domain.Review) (int, error) {
	var record idRecord
	path := fmt.Sprintf("/review/%d", id)
	err := c.exec.Do(ctx, "update review", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPut, path, nil, toPayload(review), &record, "update review")
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}

func toPayload(review domain.Review) reviewPayload {
	return reviewPayload{
		Author:     review.ReviewerID,
		QuestionID: review.QuestionID,
		Scores:     review.Scores,
		Comments:   review.Comments,
		Accept:     review.Accept,
	}
}

// Skip records server-side skip bookkeeping so the pool does not re-offer
// the question to this reviewer. It never creates a review.
func (c *Client) Skip(ctx context.Context, reviewerID, questionID int) error {
	payload := struct {
		Author     int `json:"author"`
		QuestionID int `json:"question_id"`
	}{Author: reviewerID, QuestionID: questionID}

	return c.exec.Do(ctx, "skip question", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, "/skip", nil, payload, nil, "skip question")
	})
}

// QuestionsByIDs fetches full question records for the given ids.
func (c *Client) QuestionsByIDs(ctx context.Context, ids []int) ([]domain.Question, error) {
	query := url.Values{}
	for _, id := range ids {
		query.Add("ids", strconv.Itoa(id))
	}
	var questions []domain.Question
	err := c.exec.Do(ctx, "questions by ids", func(ctx context.Context) error {
		return c.getJSON(ctx, "/question", query, &questions, "questions by ids")
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// ReviewHistory fetches the reviewer's full decision history,
// most-recent-first.
func (c *Client) ReviewHistory(ctx context.Context, reviewerID int) ([]domain.HistoryEntry, error) {
	var history []domain.HistoryEntry
	path := fmt.Sprintf("/reviewhistory/%d", reviewerID)
	err := c.exec.Do(ctx, "review history", func(ctx context.Context) error {
		return c.getJSON(ctx, path, nil, &history, "review history")
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}

// ListQuestions runs the faceted editorial list query.
func (c *Client) ListQuestions(ctx context.Context, q search.Query, offset, limit int) ([]domain.Question, error) {
	query := url.Values{
		"skip":  {strconv.Itoa(offset)},
		"limit": {strconv.Itoa(limit)},
		"q":     {q.ResidualText},
	}
	for _, id := range q.DomainIDs {
		query.Add("domain", strconv.Itoa(id))
	}
	for _, id := range q.AuthorIDs {
		query.Add("author_ids", strconv.Itoa(id))
	}
	switch q.Validated {
	case search.TriTrue:
		query.Set("validated", "true")
	case search.TriFalse:
		query.Set("validated", "false")
	}

	var questions []domain.Question
	err := c.exec.Do(ctx, "list questions", func(ctx context.Context) error {
		return c.getJSON(ctx, "/question", query, &questions, "list questions")
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// CreateQuestion submits a new question on behalf of authorID and returns
// the stored question id. Used by the bank importer.
func (c *Client) CreateQuestion(ctx context.Context, q domain.Question, authorID int) (int, error) {
	payload := struct {
		domain.Question
		Author int `json:"author"`
	}{Question: q, Author: authorID}

	var record idRecord
	err := c.exec.Do(ctx, "create question", func(ctx context.Context) error {
		return c.sendJSON(ctx, http.MethodPost, "/question", nil, payload, &record, "create question")
	})
	if err != nil {
		return 0, err
	}
	return record.ID, nil
}
