package storage_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"resume-search/internal/config"
	"resume-search/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeQdrant 内存版 Qdrant，只实现用到的几个接口
type fakeQdrant struct {
	mu         sync.Mutex
	exists     bool
	created    bool
	points     map[string]map[string]interface{}
	lastAPIKey string
	searchHits string
}

func newFakeQdrant(exists bool) *fakeQdrant {
	return &fakeQdrant{exists: exists, points: map[string]map[string]interface{}{}}
}

func filterResumeID(body map[string]interface{}) float64 {
	filter, _ := body["filter"].(map[string]interface{})
	must, _ := filter["must"].([]interface{})
	if len(must) == 0 {
		return -1
	}
	cond, _ := must[0].(map[string]interface{})
	match, _ := cond["match"].(map[string]interface{})
	v, _ := match["value"].(float64)
	return v
}

func (f *fakeQdrant) matching(resumeID float64) []string {
	var ids []string
	for id, payload := range f.points {
		if payload["resume_id"] == resumeID {
			ids = append(ids, id)
		}
	}
	return ids
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAPIKey = r.Header.Get("api-key")

	var body map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&body)

	switch {
	case r.URL.Path == "/collections/test_collection" && r.Method == http.MethodGet:
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status":{"error":"Not found"}}`))
			return
		}
		w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":4,"distance":"Cosine"}}}}}`))
	case r.URL.Path == "/collections/test_collection" && r.Method == http.MethodPut:
		f.exists, f.created = true, true
		w.Write([]byte(`{"result":true}`))
	case r.URL.Path == "/collections/test_collection/index":
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.URL.Path == "/collections/test_collection/points/scroll":
		ids := f.matching(filterResumeID(body))
		pts := make([]map[string]interface{}, 0, len(ids))
		for _, id := range ids {
			pts = append(pts, map[string]interface{}{"id": id})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": map[string]interface{}{"points": pts}})
	case r.URL.Path == "/collections/test_collection/points" && r.Method == http.MethodPut:
		for _, raw := range body["points"].([]interface{}) {
			p := raw.(map[string]interface{})
			f.points[p["id"].(string)] = p["payload"].(map[string]interface{})
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.URL.Path == "/collections/test_collection/points/count":
		json.NewEncoder(w).Encode(map[string]interface{}{"result": map[string]interface{}{"count": len(f.matching(filterResumeID(body)))}})
	case r.URL.Path == "/collections/test_collection/points/delete":
		for _, id := range f.matching(filterResumeID(body)) {
			delete(f.points, id)
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.URL.Path == "/collections/test_collection/points/search":
		w.Write([]byte(f.searchHits))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestQdrant(t *testing.T, fake *fakeQdrant) *storage.Qdrant {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := &config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
		APIKey:     "secret",
	}
	client, err := storage.NewQdrant(context.Background(), cfg,
		storage.WithDistanceMetric("Cosine"),
		storage.WithHttpTimeout(5*time.Second))
	require.NoError(t, err, "应该成功创建Qdrant客户端")
	require.NotNil(t, client)
	return client
}

func TestQdrant_NewQdrant_CreatesMissingCollection(t *testing.T) {
	fake := newFakeQdrant(false)
	newTestQdrant(t, fake)

	assert.True(t, fake.created, "集合不存在时应自动创建")
	assert.Equal(t, "secret", fake.lastAPIKey, "请求应带上 api-key")
}

func TestQdrant_NewQdrant_CollectionMismatch(t *testing.T) {
	fake := newFakeQdrant(true)
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	// 已有集合是 4 维
	cfg := &config.QdrantConfig{Endpoint: server.URL, Collection: "test_collection", Dimension: 8}
	client, err := storage.NewQdrant(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrCollectionMismatch)
	assert.Nil(t, client)
	assert.False(t, fake.created, "不应重建已有集合")

	cfg.Dimension = 4
	_, err = storage.NewQdrant(context.Background(), cfg, storage.WithDistanceMetric("Dot"))
	assert.ErrorIs(t, err, storage.ErrCollectionMismatch)

	_, err = storage.NewQdrant(context.Background(), cfg, storage.WithDistanceMetric("cosine"))
	assert.NoError(t, err)
}

func TestQdrant_UpsertResume_Idempotent(t *testing.T) {
	fake := newFakeQdrant(true)
	client := newTestQdrant(t, fake)
	ctx := context.Background()
	vec := []float64{0.1, 0.2, 0.3, 0.4}

	first, err := client.UpsertResume(ctx, 7, vec, "Name: A", "gpt_fitz")
	require.NoError(t, err)
	assert.Equal(t, storage.ResumePointID(7), first)

	second, err := client.UpsertResume(ctx, 7, vec, "Name: A v2", "mistral")
	require.NoError(t, err)
	assert.Equal(t, first, second, "同一记录重复写入应复用同一个点")

	count, err := client.CountResumePoints(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "Name: A v2", fake.points[first]["text"])
}

func TestQdrant_UpsertResume_ReusesExistingPointID(t *testing.T) {
	fake := newFakeQdrant(true)
	fake.points["legacy-point"] = map[string]interface{}{"resume_id": float64(9), "text": "old"}
	client := newTestQdrant(t, fake)

	id, err := client.UpsertResume(context.Background(), 9, []float64{1, 0, 0, 0}, "new", "gpt_fitz")
	require.NoError(t, err)
	assert.Equal(t, "legacy-point", id)
	assert.Len(t, fake.points, 1)
}

func TestQdrant_UpsertResume_DimensionMismatch(t *testing.T) {
	client := newTestQdrant(t, newFakeQdrant(true))

	_, err := client.UpsertResume(context.Background(), 1, []float64{1, 2}, "x", "gpt_fitz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "不匹配")
}

func TestQdrant_DeleteResumePoints(t *testing.T) {
	fake := newFakeQdrant(true)
	client := newTestQdrant(t, fake)
	ctx := context.Background()

	_, err := client.UpsertResume(ctx, 3, []float64{1, 1, 1, 1}, "x", "gpt_fitz")
	require.NoError(t, err)
	require.NoError(t, client.DeleteResumePoints(ctx, 3))

	_, err = client.FindPointByResumeID(ctx, 3)
	assert.ErrorIs(t, err, storage.ErrPointNotFound)
}

func TestQdrant_SearchResumes(t *testing.T) {
	fake := newFakeQdrant(true)
	fake.searchHits = `{"result":[
		{"id":"a","score":0.9,"payload":{"resume_id":5}},
		{"id":42,"score":0.8,"payload":{"resume_id":2}},
		{"id":"c","score":0.7,"payload":{"resume_id":5}},
		{"id":"d","score":0.6,"payload":{}}
	]}`
	client := newTestQdrant(t, fake)

	hits, err := client.SearchResumes(context.Background(), []float64{0, 0, 0, 1}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 2, "重复记录与缺少 resume_id 的点应被跳过")
	assert.Equal(t, uint(5), hits[0].ResumeID)
	assert.Equal(t, uint(2), hits[1].ResumeID)
	assert.Equal(t, "42", hits[1].PointID, "整数点ID应转成字符串")
}

func TestQdrant_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer server.Close()

	_, err := storage.NewQdrant(context.Background(), &config.QdrantConfig{
		Endpoint:   server.URL,
		Collection: "test_collection",
		Dimension:  4,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}
