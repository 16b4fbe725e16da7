package bank

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/conorfennell/qvet/internal/domain"
)

// Submitter is the slice of the store API the importer needs.
type Submitter interface {
	CreateQuestion(ctx context.Context, q domain.Question, authorID int) (int, error)
}

// Importer walks a bank source, parses every markdown file, and submits
// the questions on behalf of one author.
type Importer struct {
	submitter Submitter
	authorID  int
}

func NewImporter(submitter Submitter, authorID int) *Importer {
	return &Importer{submitter: submitter, authorID: authorID}
}

// Report summarises one import run.
type Report struct {
	Parsed     int
	Created    int
	Duplicates int
	Invalid    int
	Failed     int
	Errors     []error
}

// ImportSource resolves source (local directory or git URL, synced into
// cacheDir) and imports every question file under it.
func (im *Importer) ImportSource(ctx context.Context, source, cacheDir string) (Report, error) {
	dir := source
	if IsGitSource(source) {
		localPath, err := RepoCachePath(cacheDir, source)
		if err != nil {
			return Report{}, err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), os.ModePerm); err != nil {
			return Report{}, fmt.Errorf("failed to create bank cache directory: %w", err)
		}
		if err := SyncRepo(source, localPath); err != nil {
			return Report{}, err
		}
		dir = localPath
	}
	return im.ImportDir(ctx, dir)
}

// ImportDir parses all .md files under dir and submits each valid,
// not-yet-seen question. Parse and submit failures are collected per file
// or question; they do not abort the run.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Report, error) {
	var report Report
	seen := make(map[string]bool)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}

		questions, parseErr := ParseFile(path)
		if parseErr != nil {
			report.Errors = append(report.Errors, fmt.Errorf("parsing %s: %w", path, parseErr))
			return nil
		}
		report.Parsed += len(questions)

		for _, q := range questions {
			if err := validate(q); err != nil {
				report.Invalid++
				report.Errors = append(report.Errors, fmt.Errorf("%s: %w", path, err))
				continue
			}
			fp := Fingerprint(q)
			if seen[fp] {
				report.Duplicates++
				continue
			}
			seen[fp] = true

			id, err := im.submitter.CreateQuestion(ctx, q, im.authorID)
			if err != nil {
				report.Failed++
				report.Errors = append(report.Errors, fmt.Errorf("submitting question from %s: %w", path, err))
				continue
			}
			report.Created++
			slog.Info("question imported", "id", id, "file", path)
		}
		return nil
	})
	if walkErr != nil {
		return report, fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}
	return report, nil
}

func validate(q domain.Question) error {
	if strings.TrimSpace(q.Question) == "" {
		return errors.New("question text is empty")
	}
	if strings.TrimSpace(q.CorrectAnswer) == "" {
		return errors.New("correct answer is empty")
	}
	if len(q.Distractors) == 0 {
		return errors.New("question has no distractors")
	}
	return nil
}
