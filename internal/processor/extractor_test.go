package processor

import (
	"context"
	"errors"
	"testing"

	"resume-search/internal/parser"
	"resume-search/internal/types"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_UnknownProvider(t *testing.T) {
	e := NewExtractor()
	_, err := e.Extract(context.Background(), "cv.pdf", types.ModelType("tesseract"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	var pe *ResumeProcessError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "extract", pe.Op)
}

func TestExtractor_MissingCredentials(t *testing.T) {
	e := NewExtractor()

	_, err := e.Extract(context.Background(), "cv.pdf", types.ModelTypeGPTFitz)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = e.Extract(context.Background(), "cv.pdf", types.ModelTypeMistral)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestExtractor_GPTFitz(t *testing.T) {
	chat := parser.NewMockChatModel(validReply, nil)
	e := NewExtractor(WithGPTFitz(&fakePDF{text: "Ada Lovelace\nada@example.com"}, chat))

	fields, err := e.Extract(ContextWithJobID(context.Background(), "job-9"), "cv.pdf", types.ModelTypeGPTFitz)
	require.NoError(t, err)
	assert.Equal(t, types.FlexString("Ada Lovelace"), fields.Name)
	assert.Equal(t, types.FlexString("+44 20 0000"), fields.PhoneNumber)
	assert.Equal(t, types.FlexString("3.9"), fields.GPA)
	assert.JSONEq(t, `{"python": "expert", "go": "intermediate"}`, string(fields.Skills))

	msgs := chat.LastMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, extractionSystemPrompt, msgs[0].Content)
	assert.Contains(t, msgs[1].Content, "ada@example.com")
	assert.Contains(t, msgs[1].Content, "- Phone Number")
}

func TestExtractor_GPTFitzEmptyText(t *testing.T) {
	chat := parser.NewMockChatModel(validReply, nil)
	e := NewExtractor(WithGPTFitz(&fakePDF{text: "  \n "}, chat))

	_, err := e.Extract(context.Background(), "scan.pdf", types.ModelTypeGPTFitz)
	assert.ErrorIs(t, err, ErrEmptyText)
	assert.Equal(t, 0, chat.Calls(), "没有文本时不应调用模型")

	e = NewExtractor(WithGPTFitz(&fakePDF{err: errors.New("not a pdf")}, chat))
	_, err = e.Extract(context.Background(), "broken.pdf", types.ModelTypeGPTFitz)
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestExtractor_MalformedReply(t *testing.T) {
	chat := parser.NewMockChatModel("Sorry, I could not find a resume in this text.", nil)
	e := NewExtractor(WithGPTFitz(&fakePDF{text: "hello"}, chat))

	_, err := e.Extract(context.Background(), "cv.pdf", types.ModelTypeGPTFitz)
	assert.ErrorIs(t, err, ErrMalformedReply)
	assert.False(t, IsRetryable(err))

	chat = parser.NewMockChatModel(`{"Name": "Ada", "Email": {"nested": true}}`, nil)
	e = NewExtractor(WithGPTFitz(&fakePDF{text: "hello"}, chat))
	_, err = e.Extract(context.Background(), "cv.pdf", types.ModelTypeGPTFitz)
	assert.ErrorIs(t, err, ErrMalformedReply, "字段类型不符应视为格式错误")
}

func TestExtractor_ProviderFailure(t *testing.T) {
	chat := parser.NewMockChatModel("", errors.New("503 service unavailable"))
	e := NewExtractor(WithGPTFitz(&fakePDF{text: "hello"}, chat))

	_, err := e.Extract(context.Background(), "cv.pdf", types.ModelTypeGPTFitz)
	assert.ErrorIs(t, err, ErrProviderCall)
	assert.True(t, IsRetryable(err))
}

func TestExtractor_Mistral(t *testing.T) {
	chat := parser.NewMockChatModel(validReply, nil)
	e := NewExtractor(WithMistral(&fakeOCR{text: "# Ada Lovelace"}, chat))

	fields, err := e.Extract(context.Background(), "cv.pdf", types.ModelTypeMistral)
	require.NoError(t, err)
	assert.Equal(t, types.FlexString("ada@example.com"), fields.Email)

	msgs := chat.LastMessages()
	require.Len(t, msgs, 1, "mistral 只发送用户消息")
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "# Ada Lovelace")
}

func TestExtractor_MistralNoPages(t *testing.T) {
	chat := parser.NewMockChatModel(validReply, nil)
	e := NewExtractor(WithMistral(&fakeOCR{text: ""}, chat))

	_, err := e.Extract(context.Background(), "cv.pdf", types.ModelTypeMistral)
	assert.ErrorIs(t, err, ErrEmptyText)

	e = NewExtractor(WithMistral(&fakeOCR{err: errors.New("connection reset by peer")}, chat))
	_, err = e.Extract(context.Background(), "cv.pdf", types.ModelTypeMistral)
	assert.ErrorIs(t, err, ErrProviderCall)
	assert.True(t, IsRetryable(err))
}
