package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"resume-search/internal/config"
	"resume-search/internal/logger"
	"resume-search/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var qdrantTracer = otel.Tracer("resume-search/storage/qdrant")

// QdrantPointIDNamespace 生成确定性点ID的命名空间，同一条简历记录永远映射到同一个点
var QdrantPointIDNamespace = uuid.Must(uuid.FromString("fd6c72c2-5a33-4b53-8e7c-8298f3f5a7e1"))

const payloadResumeID = "resume_id"

// Qdrant 基于 REST 接口的向量库客户端
type Qdrant struct {
	endpoint       string
	collectionName string
	vectorSize     int
	distanceMetric string
	apiKey         string
	httpClient     *http.Client
}

// ScoredResume 相似度检索命中
type ScoredResume struct {
	PointID  string
	ResumeID uint
	Score    float64
}

// QdrantOption Qdrant构造选项
type QdrantOption func(*Qdrant)

// WithDistanceMetric 设置距离度量
func WithDistanceMetric(metric string) QdrantOption {
	return func(q *Qdrant) {
		q.distanceMetric = metric
	}
}

// WithHttpTimeout 设置HTTP客户端超时
func WithHttpTimeout(timeout time.Duration) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = &http.Client{Timeout: timeout}
	}
}

// WithHTTPClient 替换底层 HTTP 客户端
func WithHTTPClient(client *http.Client) QdrantOption {
	return func(q *Qdrant) {
		q.httpClient = client
	}
}

// ErrCollectionMismatch 已存在集合的向量维度或距离与配置不一致
var ErrCollectionMismatch = errors.New("qdrant collection config mismatch")

// NewQdrant 创建客户端并确保集合存在
func NewQdrant(ctx context.Context, cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	q := &Qdrant{
		endpoint:       strings.TrimRight(cfg.Endpoint, "/"),
		collectionName: cfg.Collection,
		vectorSize:     cfg.Dimension,
		distanceMetric: "Cosine",
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
	}
	if q.endpoint == "" {
		q.endpoint = "http://localhost:6333"
	}
	if q.collectionName == "" {
		q.collectionName = "resumes"
	}
	if q.vectorSize <= 0 {
		q.vectorSize = 3072
	}
	if cfg.TimeoutSeconds > 0 {
		q.httpClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	for _, opt := range opts {
		opt(q)
	}

	if err := q.ensureCollectionExists(ctx); err != nil {
		return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", q.collectionName, err)
	}

	logger.Info().Str("endpoint", q.endpoint).Str("collection", q.collectionName).Msg("Qdrant连接成功")
	return q, nil
}

// ResumePointID 简历记录对应的确定性点ID
func ResumePointID(resumeID uint) string {
	return uuid.NewV5(QdrantPointIDNamespace, "resume:"+strconv.FormatUint(uint64(resumeID), 10)).String()
}

func resumeIDFilter(resumeID uint) map[string]interface{} {
	return map[string]interface{}{
		"must": []map[string]interface{}{
			{"key": payloadResumeID, "match": map[string]interface{}{"value": resumeID}},
		},
	}
}

func (q *Qdrant) ensureCollectionExists(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.collection", q.collectionName),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := q.doRequest(ctx, http.MethodGet, "/collections/"+q.collectionName, nil, &info)
	if status == http.StatusNotFound {
		span.AddEvent("collection_not_found")
		return q.createCollection(ctx)
	}
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}

	// 维度不一致时每次写入都会失败，启动时直接报错
	existing := info.Result.Config.Params.Vectors
	if existing.Size != q.vectorSize || !strings.EqualFold(existing.Distance, q.distanceMetric) {
		err := fmt.Errorf("%w: collection has size=%d distance=%s, configured size=%d distance=%s",
			ErrCollectionMismatch, existing.Size, existing.Distance, q.vectorSize, q.distanceMetric)
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (q *Qdrant) createCollection(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
	}
	if _, err := q.doRequest(ctx, http.MethodPut, "/collections/"+q.collectionName, body, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建集合失败: %w", err)
	}

	// resume_id 上建整数索引，按记录查点时走索引
	indexBody := map[string]interface{}{"field_name": payloadResumeID, "field_schema": "integer"}
	if _, err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/index?wait=true", q.collectionName), indexBody, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return fmt.Errorf("创建payload索引失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	logger.Info().Str("collection", q.collectionName).Int("dimension", q.vectorSize).Msg("已创建Qdrant集合")
	return nil
}

// Ping 检查集合是否可访问
func (q *Qdrant) Ping(ctx context.Context) error {
	_, err := q.doRequest(ctx, http.MethodGet, "/collections/"+q.collectionName, nil, nil)
	return err
}

// FindPointByResumeID 按 payload 中的 resume_id 精确查找点，不存在时返回 ErrPointNotFound
func (q *Qdrant) FindPointByResumeID(ctx context.Context, resumeID uint) (string, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.FindPointByResumeID",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("resume_id", int64(resumeID))))
	defer span.End()

	body := map[string]interface{}{
		"filter":       resumeIDFilter(resumeID),
		"with_payload": false,
		"with_vector":  false,
		"limit":        1,
	}
	var resp struct {
		Result struct {
			Points []struct {
				ID pointID `json:"id"`
			} `json:"points"`
		} `json:"result"`
	}
	if _, err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", q.collectionName), body, &resp); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return "", err
	}
	if len(resp.Result.Points) == 0 {
		return "", ErrPointNotFound
	}
	return string(resp.Result.Points[0].ID), nil
}

// UpsertResume 写入简历向量。已存在该记录的点时原地覆盖，否则使用确定性ID新建
func (q *Qdrant) UpsertResume(ctx context.Context, resumeID uint, vector []float64, text string, modelType string) (string, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.UpsertResume",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "qdrant"),
			attribute.String("db.collection", q.collectionName),
			attribute.Int64("resume_id", int64(resumeID)),
		))
	defer span.End()

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("向量维度(%d)与集合维度(%d)不匹配", len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return "", err
	}

	pointIDStr, err := q.FindPointByResumeID(ctx, resumeID)
	switch {
	case err == nil:
		span.SetAttributes(attribute.Bool("point.overwrite", true))
	case errors.Is(err, ErrPointNotFound):
		pointIDStr = ResumePointID(resumeID)
		span.SetAttributes(attribute.Bool("point.overwrite", false))
	default:
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return "", fmt.Errorf("查询已有向量失败: %w", err)
	}

	body := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":     pointIDStr,
				"vector": vector,
				"payload": map[string]interface{}{
					payloadResumeID: resumeID,
					"text":          text,
					"model_type":    modelType,
				},
			},
		},
	}
	if _, err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collectionName), body, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return "", fmt.Errorf("写入向量失败: %w", err)
	}

	span.SetAttributes(attribute.String("point.id", pointIDStr))
	span.SetStatus(codes.Ok, "")
	return pointIDStr, nil
}

// SearchResumes 相似度检索，按分数从高到低返回，同一记录只保留最高分
func (q *Qdrant) SearchResumes(ctx context.Context, vector []float64, limit int) ([]ScoredResume, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.SearchResumes",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "qdrant"),
			attribute.String("db.collection", q.collectionName),
			attribute.Int("search.limit", limit),
		))
	defer span.End()

	if len(vector) != q.vectorSize {
		err := fmt.Errorf("查询向量维度(%d)与集合维度(%d)不匹配", len(vector), q.vectorSize)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if limit <= 0 {
		limit = 3
	}

	body := map[string]interface{}{
		"vector":       vector,
		"limit":        limit,
		"with_payload": []string{payloadResumeID},
	}
	var resp struct {
		Result []struct {
			ID      pointID `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				ResumeID *uint `json:"resume_id"`
			} `json:"payload"`
		} `json:"result"`
	}
	if _, err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collectionName), body, &resp); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return nil, err
	}

	seen := make(map[uint]struct{}, len(resp.Result))
	hits := make([]ScoredResume, 0, len(resp.Result))
	for _, p := range resp.Result {
		if p.Payload.ResumeID == nil {
			continue
		}
		id := *p.Payload.ResumeID
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		hits = append(hits, ScoredResume{PointID: string(p.ID), ResumeID: id, Score: p.Score})
	}

	span.SetAttributes(attribute.Int("search.results.count", len(hits)))
	span.SetStatus(codes.Ok, "")
	return hits, nil
}

// DeleteResumePoints 删除某条简历记录的全部点
func (q *Qdrant) DeleteResumePoints(ctx context.Context, resumeID uint) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.DeleteResumePoints",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int64("resume_id", int64(resumeID))))
	defer span.End()

	body := map[string]interface{}{"filter": resumeIDFilter(resumeID)}
	if _, err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collectionName), body, nil); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// CountResumePoints 统计某条简历记录的点数量
func (q *Qdrant) CountResumePoints(ctx context.Context, resumeID uint) (int64, error) {
	body := map[string]interface{}{
		"filter": resumeIDFilter(resumeID),
		"exact":  true,
	}
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if _, err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collectionName), body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

// doRequest 发送请求并解析响应，返回HTTP状态码（请求未发出时为0）
func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) (int, error) {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
	)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return 0, fmt.Errorf("序列化请求失败: %w", err)
		}
		reader = bytes.NewReader(data)
		span.SetAttributes(attribute.Int("http.request.body.size", len(data)))
	}

	req, err := http.NewRequestWithContext(ctx, method, q.endpoint+path, reader)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return 0, fmt.Errorf("qdrant请求失败: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return resp.StatusCode, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, tracing.TruncateString(string(respBody), tracing.DefaultMaxLength))
		tracing.RecordHTTPError(span, err, resp.StatusCode, tracing.ErrorTypeVectorDB)
		return resp.StatusCode, err
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return resp.StatusCode, fmt.Errorf("解析qdrant响应失败: %w", err)
		}
	}

	span.SetStatus(codes.Ok, "")
	return resp.StatusCode, nil
}

// pointID Qdrant 的点ID可能是UUID字符串，也可能是无符号整数
type pointID string

func (p *pointID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = pointID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = pointID(n.String())
	return nil
}
