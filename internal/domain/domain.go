package domain

import "time"

// Question is a multiple-choice benchmark question owned by the external
// store. The console never mutates one; it only renders and reviews them.
type Question struct {
	ID            int      `json:"id"`
	Question      string   `json:"question"`
	CorrectAnswer string   `json:"correct_answer"`
	Distractors   []string `json:"distractors"`
	Skills        []string `json:"skills"`
	Domains       []string `json:"domains"`
	Difficulty    string   `json:"difficulty"`
	Reference     string   `json:"doi"`
	Support       string   `json:"support"`
	Comments      string   `json:"comments"`
}

// Scores holds the twelve review sub-scores. Each is on a 1-4 scale:
// 1: absolutely not, 2: likely not, 3: likely, 4: absolutely.
type Scores struct {
	QuestionRelevant      int `json:"questionrelevent" validate:"min=1,max=4"`
	QuestionFromArticle   int `json:"questionfromarticle" validate:"min=1,max=4"`
	QuestionIndependence  int `json:"questionindependence" validate:"min=1,max=4"`
	QuestionChallenging   int `json:"questionchallenging" validate:"min=1,max=4"`
	AnswerRelevant        int `json:"answerrelevent" validate:"min=1,max=4"`
	AnswerComplete        int `json:"answercomplete" validate:"min=1,max=4"`
	AnswerFromArticle     int `json:"answerfromarticle" validate:"min=1,max=4"`
	AnswerUnique          int `json:"answerunique" validate:"min=1,max=4"`
	AnswerUncontroversial int `json:"answeruncontroverial" validate:"min=1,max=4"`
	ArithmeticFree        int `json:"arithmaticfree" validate:"min=1,max=4"`
	SkillCorrect          int `json:"skillcorrect" validate:"min=1,max=4"`
	DomainCorrect         int `json:"domaincorrect" validate:"min=1,max=4"`
}

// DefaultScores returns a Scores with every sub-score at 3, the neutral
// starting position of the feedback form.
func DefaultScores() Scores {
	return Scores{
		QuestionRelevant:      3,
		QuestionFromArticle:   3,
		QuestionIndependence:  3,
		QuestionChallenging:   3,
		AnswerRelevant:        3,
		AnswerComplete:        3,
		AnswerFromArticle:     3,
		AnswerUnique:          3,
		AnswerUncontroversial: 3,
		ArithmeticFree:        3,
		SkillCorrect:          3,
		DomainCorrect:         3,
	}
}

// Review is one reviewer's judgment on one question. ID is zero until the
// store has persisted it. At most one review exists per
// (ReviewerID, QuestionID) pair; a revisit updates the existing record.
type Review struct {
	ID         int    `json:"id"`
	ReviewerID int    `json:"author"`
	QuestionID int    `json:"question_id"`
	Scores     Scores `json:"-"`
	Comments   string `json:"comments"`
	Accept     bool   `json:"accept"`
}

// Action is the outcome recorded in a history entry.
type Action string

const (
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
	ActionSkipped  Action = "skip"
)

// HistoryEntry is one line of a reviewer's decision history,
// most-recent-first. ReviewID is zero for skips, which are session-local
// and never persisted as reviews.
type HistoryEntry struct {
	ReviewID   int       `json:"review_id"`
	QuestionID int       `json:"question_id"`
	Question   string    `json:"question"`
	Action     Action    `json:"action"`
	Modified   time.Time `json:"modified"`
}

// ReviewerProfile identifies a reviewer. Name and affiliation form the
// natural key the author API upserts on. EligibleDomains scopes the
// assignment pool to the reviewer's declared competency.
type ReviewerProfile struct {
	Name            string   `json:"name" validate:"required"`
	Affiliation     string   `json:"affilliation" validate:"required"`
	Position        string   `json:"position"`
	ORCID           string   `json:"orcid"`
	EligibleDomains []string `json:"-"`
}
