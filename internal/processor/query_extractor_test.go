package processor

import (
	"context"
	"errors"
	"testing"

	"resume-search/internal/parser"
	"resume-search/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryReply_Prose(t *testing.T) {
	fields, ok := ParseQueryReply("The user is looking for a senior Go developer.")
	assert.False(t, ok)
	assert.Equal(t, types.EmptyQueryFields(), fields)
}

func TestParseQueryReply_NotAnObject(t *testing.T) {
	for _, reply := range []string{
		`["Go", "Python"]`,
		`{"Skills": ["Go"`,
		"```json\n{\"Skills\": [\"Go\"]}\n```",
	} {
		fields, ok := ParseQueryReply(reply)
		assert.False(t, ok, reply)
		assert.Equal(t, types.EmptyQueryFields(), fields, reply)
	}
}

func TestParseQueryReply_Fields(t *testing.T) {
	reply := `  {
		"Skills": ["Python", "Go"],
		"Work_experience": "Google",
		"Education": [],
		"Certifications": null,
		"Gpa": 3.5
	}`

	fields, ok := ParseQueryReply(reply)
	require.True(t, ok)
	assert.Equal(t, []any{"Python", "Go"}, fields.Skills)
	assert.Equal(t, []any{"Google"}, fields.WorkExperience, "标量应包装为单元素列表")
	assert.Equal(t, []any{}, fields.Education)
	assert.Equal(t, []any{}, fields.Certifications)
	assert.Equal(t, []any{}, fields.Projects)
	assert.Equal(t, "3.5", fields.GPA)
}

func TestParseQueryReply_DefaultGPA(t *testing.T) {
	fields, ok := ParseQueryReply(`{"Skills": ["Go"]}`)
	require.True(t, ok)
	assert.Equal(t, "0", fields.GPA)

	fields, ok = ParseQueryReply(`{"Work experience": ["Stripe"], "Gpa": ""}`)
	require.True(t, ok)
	assert.Equal(t, []any{"Stripe"}, fields.WorkExperience)
	assert.Equal(t, "0", fields.GPA)
}

func TestLLMQueryExtractor_ExtractQuery(t *testing.T) {
	chat := parser.NewMockChatModel(`{"Skills": ["Go"], "Gpa": "3"}`, nil)
	q := NewLLMQueryExtractor(chat)

	fields, err := q.ExtractQuery(context.Background(), "Go developer with GPA above 3")
	require.NoError(t, err)
	assert.Equal(t, []any{"Go"}, fields.Skills)
	assert.Equal(t, "3", fields.GPA)

	msgs := chat.LastMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "Go developer with GPA above 3")
}

func TestLLMQueryExtractor_ProseIsNotAnError(t *testing.T) {
	q := NewLLMQueryExtractor(parser.NewMockChatModel("I think they want a Go developer.", nil))

	fields, err := q.ExtractQuery(context.Background(), "Go developer")
	require.NoError(t, err)
	assert.Equal(t, types.EmptyQueryFields(), fields)
}

func TestLLMQueryExtractor_Failures(t *testing.T) {
	_, err := NewLLMQueryExtractor(nil).ExtractQuery(context.Background(), "Go")
	assert.ErrorIs(t, err, ErrMissingCredentials)

	q := NewLLMQueryExtractor(parser.NewMockChatModel("", errors.New("401 unauthorized")))
	_, err = q.ExtractQuery(context.Background(), "Go")
	assert.ErrorIs(t, err, ErrProviderCall)
}
