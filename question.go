package main

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// AnswerOption is one selectable option; either text or an image
// reference, depending on the question type.
type AnswerOption struct {
	ID       int    `json:"id"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Question is broadcast to clients verbatim, so the answer key is kept
// out of the serialized form and only consulted server-side for grading.
type Question struct {
	ID              int            `json:"id"`
	Text            string         `json:"text"`
	Answers         []AnswerOption `json:"answers"`
	CorrectAnswerID int            `json:"-"`
	Type            string         `json:"type"` // "text" or "image"
}

//go:embed questions.json
var quizFile []byte

type quizEntry struct {
	ID              int            `json:"id"`
	Text            string         `json:"text"`
	Answers         []AnswerOption `json:"answers"`
	CorrectAnswerID int            `json:"correctAnswerId"`
	Type            string         `json:"type"`
}

type quizDocument struct {
	Title     string      `json:"title"`
	Questions []quizEntry `json:"questions"`
}

// loadQuiz parses the embedded quiz, validating that every question has
// at least two options and that its answer key names one of them.
func loadQuiz(data []byte) (string, []Question, error) {
	var doc quizDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", nil, fmt.Errorf("parsing quiz: %w", err)
	}

	if len(doc.Questions) == 0 {
		return "", nil, fmt.Errorf("quiz %q contains no questions", doc.Title)
	}

	questions := make([]Question, 0, len(doc.Questions))
	for _, q := range doc.Questions {
		if len(q.Answers) < 2 {
			return "", nil, fmt.Errorf("question %d needs at least two options", q.ID)
		}

		found := false
		for _, a := range q.Answers {
			if a.ID == q.CorrectAnswerID {
				found = true
				break
			}
		}
		if !found {
			return "", nil, fmt.Errorf("question %d has no option matching its answer key", q.ID)
		}

		questions = append(questions, Question{
			ID:              q.ID,
			Text:            q.Text,
			Answers:         q.Answers,
			CorrectAnswerID: q.CorrectAnswerID,
			Type:            q.Type,
		})
	}

	return doc.Title, questions, nil
}
