// Package web serves the local review console: the editorial search page
// and the reviewer workflow pages, rendered server-side with partial
// re-renders in the HTMX style.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/conorfennell/qvet/internal/api"
	"github.com/conorfennell/qvet/internal/domain"
	"github.com/conorfennell/qvet/internal/review"
	"github.com/conorfennell/qvet/internal/search"
)

//go:embed all:templates
var templateFiles embed.FS

// Directory lists the domains a reviewer can declare competency in.
type Directory interface {
	ListDomains(ctx context.Context) ([]api.Domain, error)
}

// Server holds the dependencies for the console HTTP server.
type Server struct {
	searcher  *search.Searcher
	engine    *review.Engine
	directory Directory
	router    *http.ServeMux
	templates *template.Template
}

// NewServer creates and configures a new console server.
func NewServer(searcher *search.Searcher, engine *review.Engine, directory Directory) *Server {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		// Embedded templates; a parse failure is a build defect.
		panic("failed to parse templates: " + err.Error())
	}

	s := &Server{
		searcher:  searcher,
		engine:    engine,
		directory: directory,
		router:    http.NewServeMux(),
		templates: tpl,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/", s.handleIndex())
	s.router.HandleFunc("/editorial", s.handleEditorial())
	s.router.HandleFunc("/editorial/results", s.handleEditorialResults())
	s.router.HandleFunc("/review", s.handleReview())
	s.router.HandleFunc("/review/configure", s.handleConfigure())
	s.router.HandleFunc("/review/decide", s.handleDecide())
	s.router.HandleFunc("/review/skip", s.handleSkip())
	s.router.HandleFunc("/review/history/", s.handleHistoryQuestion())
}

func (s *Server) handleIndex() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/editorial", http.StatusSeeOther)
	}
}

func (s *Server) handleEditorial() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, "editorial", nil)
	}
}

// handleEditorialResults runs one faceted search and renders the result
// table. A search superseded by a newer one renders nothing, so the stale
// response never replaces newer rows on the page.
func (s *Server) handleEditorialResults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("q")
		offset := intQuery(r, "offset", 0)
		limit := intQuery(r, "limit", 10)

		result, current, err := s.searcher.Search(r.Context(), raw, offset, limit)
		if !current {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if err != nil {
			slog.Error("search failed", "error", err)
			s.render(w, "notice", "The search could not be completed. Try again.")
			return
		}
		s.render(w, "results", map[string]interface{}{
			"Questions": result.Questions,
			"Misses":    result.Query.Misses,
			"Offset":    offset,
			"Limit":     limit,
		})
	}
}

func (s *Server) handleReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.engine.Session()
		if session.State == review.StateUnconfigured {
			domains, err := s.directory.ListDomains(r.Context())
			if err != nil {
				slog.Error("domain directory fetch failed", "error", err)
			}
			s.render(w, "configure", map[string]interface{}{
				"Domains": domains,
			})
			return
		}
		s.renderSession(w, session)
	}
}

func (s *Server) handleConfigure() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		profile := domain.ReviewerProfile{
			Name:            r.PostFormValue("name"),
			Affiliation:     r.PostFormValue("affiliation"),
			Position:        r.PostFormValue("position"),
			ORCID:           r.PostFormValue("orcid"),
			EligibleDomains: r.PostForm["domains"],
		}
		if err := s.engine.Configure(r.Context(), profile); err != nil {
			slog.Error("configure failed", "error", err)
			s.render(w, "notice", "Could not configure the reviewer session. Try again.")
			return
		}
		s.renderSession(w, s.engine.Session())
	}
}

func (s *Server) handleDecide() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		questionID, err := strconv.Atoi(r.PostFormValue("question_id"))
		if err != nil {
			http.Error(w, "Invalid question ID", http.StatusBadRequest)
			return
		}
		scores, err := scoresFromForm(r)
		if err != nil {
			http.Error(w, "Invalid scores", http.StatusBadRequest)
			return
		}
		accept := r.PostFormValue("accept") == "true"

		if _, err := s.engine.Decide(r.Context(), questionID, scores, r.PostFormValue("comments"), accept); err != nil {
			if errors.Is(err, review.ErrStaleAssignment) {
				slog.Warn("stale decide dropped", "question_id", questionID)
				s.renderSession(w, s.engine.Session())
				return
			}
			slog.Error("decide failed", "error", err)
			s.render(w, "notice", "The review was not saved. Try again.")
			return
		}
		s.renderSession(w, s.engine.Session())
	}
}

func (s *Server) handleSkip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		questionID, err := strconv.Atoi(r.PostFormValue("question_id"))
		if err != nil {
			http.Error(w, "Invalid question ID", http.StatusBadRequest)
			return
		}
		if err := s.engine.Skip(r.Context(), questionID); err != nil {
			if errors.Is(err, review.ErrStaleAssignment) {
				slog.Warn("stale skip dropped", "question_id", questionID)
				s.renderSession(w, s.engine.Session())
				return
			}
			slog.Error("skip failed", "error", err)
			s.render(w, "notice", "The skip was not recorded. Try again.")
			return
		}
		s.renderSession(w, s.engine.Session())
	}
}

// handleHistoryQuestion re-displays a previously-seen question read-only.
// It never changes the current assignment.
func (s *Server) handleHistoryQuestion() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		idStr := strings.TrimPrefix(r.URL.Path, "/review/history/")
		id, err := strconv.Atoi(idStr)
		if err != nil {
			http.Error(w, "Invalid question ID", http.StatusBadRequest)
			return
		}
		question, err := s.engine.NavigateHistory(r.Context(), id)
		if err != nil {
			slog.Error("history navigation failed", "question_id", id, "error", err)
			s.render(w, "notice", "There was a problem loading that question.")
			return
		}
		s.render(w, "history_question", question)
	}
}

func (s *Server) renderSession(w http.ResponseWriter, session review.Session) {
	s.render(w, "session", map[string]interface{}{
		"Session":   session,
		"Assigned":  session.Current != nil,
		"Questions": scoreQuestions,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("template render failed", "template", name, "error", err)
	}
}

func intQuery(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return fallback
	}
	return v
}

// scoreQuestion pairs a form field with its fixed semantic prompt.
type scoreQuestion struct {
	Field  string
	Prompt string
}

var scoreQuestions = []scoreQuestion{
	{"questionrelevent", "Is the question relevant to the original article?"},
	{"questionfromarticle", "Can the question be answered definitively based on the article?"},
	{"questionindependence", "Can this question be answered on its own without the article?"},
	{"questionchallenging", "I think this question is appropriately challenging for a graduate level exam on this topic."},
	{"answerrelevent", "How relevant is the answer to the question?"},
	{"answerfromarticle", "How relevant is the answer to the content of the article?"},
	{"answercomplete", "How completely do the answers respond to the question?"},
	{"answerunique", "There is only one correct answer?"},
	{"answeruncontroverial", "Is the answer uncontroversial to the question?"},
	{"arithmaticfree", "Does this question and answers avoid arithmetic?"},
	{"skillcorrect", "Are the skills selected appropriate for the question?"},
	{"domaincorrect", "Are the domains selected appropriate for the question?"},
}

func scoresFromForm(r *http.Request) (domain.Scores, error) {
	var scores domain.Scores
	fields := map[string]*int{
		"questionrelevent":     &scores.QuestionRelevant,
		"questionfromarticle":  &scores.QuestionFromArticle,
		"questionindependence": &scores.QuestionIndependence,
		"questionchallenging":  &scores.QuestionChallenging,
		"answerrelevent":       &scores.AnswerRelevant,
		"answercomplete":       &scores.AnswerComplete,
		"answerfromarticle":    &scores.AnswerFromArticle,
		"answerunique":         &scores.AnswerUnique,
		"answeruncontroverial": &scores.AnswerUncontroversial,
		"arithmaticfree":       &scores.ArithmeticFree,
		"skillcorrect":         &scores.SkillCorrect,
		"domaincorrect":        &scores.DomainCorrect,
	}
	for field, target := range fields {
		value, err := strconv.Atoi(r.PostFormValue(field))
		if err != nil {
			return domain.Scores{}, err
		}
		*target = value
	}
	return scores, nil
}
