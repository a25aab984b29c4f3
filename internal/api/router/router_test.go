package router

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"testing"

	"resume-search/internal/api/handler"
	"resume-search/internal/processor"
	"resume-search/internal/storage/models"
	"resume-search/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStore struct{}

func (stubStore) GetResumeByID(_ context.Context, id uint) (*models.Resume, error) {
	return &models.Resume{ID: id, Email: "a@example.com"}, nil
}

type stubQueue struct{}

func (stubQueue) Enqueue(context.Context, *types.IngestJob) error { return nil }

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string) (*processor.RankedResume, error) {
	return nil, processor.ErrNoMatch
}

func newEngine(t *testing.T, opts Options) *server.Hertz {
	t.Helper()
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	RegisterRoutes(h, Handlers{
		Health: handler.NewHealthHandler(nil, "localhost", "resumes"),
		Resume: handler.NewResumeHandler(stubStore{}, stubQueue{}, t.TempDir()),
		Search: handler.NewSearchHandler(stubSearcher{}),
	}, opts)
	return h
}

func TestRoutes_ProcessTimeHeader(t *testing.T) {
	h := newEngine(t, Options{})

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	v := resp.Header().Get(HeaderProcessTime)
	require.NotEmpty(t, v)
	secs, err := strconv.ParseFloat(v, 64)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, secs, 0.0)
}

func TestRoutes_CORS(t *testing.T) {
	h := newEngine(t, Options{CORSOrigins: []string{"http://localhost:3000"}})

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil,
		ut.Header{Key: "Origin", Value: "http://localhost:3000"})
	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil,
		ut.Header{Key: "Origin", Value: "http://evil.example"})
	assert.Empty(t, resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestRoutes_APIKey(t *testing.T) {
	h := newEngine(t, Options{APIKeys: []string{"secret"}})

	resp := ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/resume/1", nil)
	assert.NotEqual(t, http.StatusOK, resp.Code)

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/resume/1", nil,
		ut.Header{Key: "Authorization", Value: "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/api/v1/resume/1", nil,
		ut.Header{Key: "Authorization", Value: "Bearer secret"})
	assert.Equal(t, http.StatusOK, resp.Code)

	// 健康检查不需要鉴权
	resp = ut.PerformRequest(h.Engine, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRoutes_SearchNoMatch(t *testing.T) {
	h := newEngine(t, Options{})
	body := bytes.NewBufferString(`{"user_prompt":"anyone"}`)

	resp := ut.PerformRequest(h.Engine, http.MethodPost, "/api/v1/search-resume/",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "No suitable matches found")
}
