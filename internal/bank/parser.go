// Package bank imports question banks: markdown files holding
// multiple-choice questions, from a local directory or a git repository,
// submitted in bulk through the store API.
package bank

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/qvet/internal/domain"
)

// Question files are line-oriented. Each record starts with Q: and ends at
// the next Q:, a --- separator, or end of input. Field bodies may span
// lines until the next prefix.
const (
	questionPrefix   = "Q:"
	answerPrefix     = "A:"
	distractorPrefix = "X:"
	skillPrefix      = "S:"
	domainPrefix     = "D:"
	difficultyPrefix = "F:"
	referencePrefix  = "R:"
	supportPrefix    = "P:"
	commentsPrefix   = "C:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingDistractor
	readingSkill
	readingDomain
	readingDifficulty
	readingReference
	readingSupport
	readingComments
)

var fieldStates = map[string]state{
	questionPrefix:   readingQuestion,
	answerPrefix:     readingAnswer,
	distractorPrefix: readingDistractor,
	skillPrefix:      readingSkill,
	domainPrefix:     readingDomain,
	difficultyPrefix: readingDifficulty,
	referencePrefix:  readingReference,
	supportPrefix:    readingSupport,
	commentsPrefix:   readingComments,
}

// ParseFile reads a file from the given path and extracts all questions.
func ParseFile(path string) ([]domain.Question, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all questions.
func Parse(r io.Reader) ([]domain.Question, error) {
	scanner := bufio.NewScanner(r)
	var questions []domain.Question
	var current domain.Question
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.CorrectAnswer = content
		case readingDistractor:
			current.Distractors = append(current.Distractors, content)
		case readingSkill:
			current.Skills = append(current.Skills, content)
		case readingDomain:
			current.Domains = append(current.Domains, content)
		case readingDifficulty:
			current.Difficulty = content
		case readingReference:
			current.Reference = content
		case readingSupport:
			current.Support = content
		case readingComments:
			current.Comments = content
		}
		block = nil
	}

	finishQuestion := func() {
		flushBlock()
		if current.Question != "" {
			questions = append(questions, current)
		}
		current = domain.Question{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishQuestion()
			continue
		}

		prefix := matchPrefix(line)
		if prefix == "" {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		if prefix == questionPrefix && currentState != seeking {
			// A new question always starts a new record.
			finishQuestion()
		} else {
			flushBlock()
		}
		currentState = fieldStates[prefix]
		content := strings.TrimPrefix(line[len(prefix):], " ")
		block = append(block, content)
	}

	finishQuestion() // Finish the very last record in the input.

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return questions, nil
}

func matchPrefix(line string) string {
	for prefix := range fieldStates {
		if strings.HasPrefix(line, prefix) {
			return prefix
		}
	}
	return ""
}
