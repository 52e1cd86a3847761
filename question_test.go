package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedQuiz(t *testing.T) {
	title, questions, err := loadQuiz(quizFile)
	require.NoError(t, err)

	assert.NotEmpty(t, title)
	require.NotEmpty(t, questions)

	for _, q := range questions {
		assert.GreaterOrEqual(t, len(q.Answers), 2)

		found := false
		for _, a := range q.Answers {
			if a.ID == q.CorrectAnswerID {
				found = true
			}
		}
		assert.True(t, found, "question %d answer key must match an option", q.ID)
	}
}

func TestLoadQuizRejectsDanglingAnswerKey(t *testing.T) {
	_, _, err := loadQuiz([]byte(`{
		"title": "broken",
		"questions": [
			{
				"id": 1,
				"text": "?",
				"answers": [{"id": 1, "text": "a"}, {"id": 2, "text": "b"}],
				"correctAnswerId": 9,
				"type": "text"
			}
		]
	}`))

	assert.Error(t, err)
}

func TestLoadQuizRejectsEmptyQuiz(t *testing.T) {
	_, _, err := loadQuiz([]byte(`{"title": "empty", "questions": []}`))
	assert.Error(t, err)
}

func TestAnswerKeyNeverSerialized(t *testing.T) {
	q := Question{
		ID:              1,
		Text:            "?",
		Answers:         []AnswerOption{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}},
		CorrectAnswerID: 2,
		Type:            "text",
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "correctAnswerId")
	assert.NotContains(t, string(data), "CorrectAnswerID")
}
