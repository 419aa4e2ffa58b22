package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"job-match-go/internal/config"
	"job-match-go/internal/tracing"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// 定义Qdrant的专用tracer
var qdrantTracer = otel.Tracer("job-match-go/storage/qdrant")

// Qdrant 提供向量数据库功能。
// 简历向量和岗位向量分属两个集合，推荐查询用 lookup_from 做跨集合召回。
type Qdrant struct {
	endpoint         string
	resumeCollection string
	jobCollection    string
	vectorSize       int
	distanceMetric   string
	apiKey           string
	httpClient       *http.Client
}

// SearchResult 表示一个搜索/召回结果项
type SearchResult struct {
	ID      string                 // 向量点ID
	Score   float32                // 相似度分数 [0,1]
	Payload map[string]interface{} // 载荷数据
}

// QdrantOption 定义Qdrant构造函数选项
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

// NewQdrant 创建Qdrant客户端并确保两个集合存在
func NewQdrant(cfg *config.QdrantConfig, opts ...QdrantOption) (*Qdrant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("qdrant配置不能为空")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:6333"
	}

	vectorSize := cfg.Dimension
	if vectorSize <= 0 {
		vectorSize = 1024 // 与上游Embedding服务的输出维度一致
	}

	q := &Qdrant{
		endpoint:         endpoint,
		resumeCollection: cfg.ResumeCollection,
		jobCollection:    cfg.JobCollection,
		vectorSize:       vectorSize,
		distanceMetric:   "Cosine",
		apiKey:           cfg.APIKey,
		httpClient:       &http.Client{Timeout: 30 * time.Second},
	}
	if q.resumeCollection == "" {
		q.resumeCollection = "resumes"
	}
	if q.jobCollection == "" {
		q.jobCollection = "jobs"
	}

	for _, opt := range opts {
		opt(q)
	}

	for _, collection := range []string{q.resumeCollection, q.jobCollection} {
		if err := q.ensureCollectionExists(context.Background(), collection); err != nil {
			return nil, fmt.Errorf("确保集合 '%s' 存在失败: %w", collection, err)
		}
	}

	log.Printf("成功连接到Qdrant服务器: %s，集合: %s / %s", endpoint, q.resumeCollection, q.jobCollection)
	return q, nil
}

// ensureCollectionExists 确保向量集合存在，不存在则创建
func (q *Qdrant) ensureCollectionExists(ctx context.Context, collection string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.EnsureCollectionExists",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "check_collection"),
		attribute.String("db.collection", collection),
		attribute.Int("db.vector_size", q.vectorSize),
	)

	url := fmt.Sprintf("%s/collections/%s", q.endpoint, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("创建检查集合请求失败: %w", err)
	}
	q.setHeaders(req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("发送检查集合请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		span.AddEvent("collection_not_found", trace.WithAttributes(
			attribute.String("action", "create_collection"),
		))
		log.Printf("集合 '%s' 不存在，将创建新集合", collection)
		return q.createCollection(ctx, collection)
	} else if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("检查集合失败，状态码: %d, 响应: %s", resp.StatusCode, string(body))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	var collectionInfo struct {
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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("读取集合信息响应失败: %w", err)
	}
	if err := json.Unmarshal(body, &collectionInfo); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("解析集合信息失败: %w", err)
	}

	existingSize := collectionInfo.Result.Config.Params.Vectors.Size
	existingDistance := collectionInfo.Result.Config.Params.Vectors.Distance

	if existingSize != q.vectorSize || existingDistance != q.distanceMetric {
		log.Printf("警告: 集合 '%s' 配置与当前配置不匹配。现有: 维度=%d, 距离=%s; 当前: 维度=%d, 距离=%s",
			collection, existingSize, existingDistance, q.vectorSize, q.distanceMetric)
		span.AddEvent("collection_config_mismatch", trace.WithAttributes(
			attribute.Int("expected_vector_size", q.vectorSize),
			attribute.String("expected_distance", q.distanceMetric),
		))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// createCollection 创建新的向量集合
func (q *Qdrant) createCollection(ctx context.Context, collection string) error {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.CreateCollection",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "create_collection"),
		attribute.String("db.collection", collection),
		attribute.Int("db.vector_size", q.vectorSize),
		attribute.String("db.vector.distance", q.distanceMetric),
	)

	createReqBody := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": q.distanceMetric,
		},
		"optimizers_config": map[string]interface{}{
			"default_segment_number": 2,
		},
	}

	var result struct {
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}
	if err := q.doRequest(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", collection), createReqBody, &result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("创建集合失败: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	log.Printf("已成功创建Qdrant集合: %s，维度: %d", collection, q.vectorSize)
	return nil
}

// ValidatePointID 校验向量点ID是UUID格式。
// 非法ID直接拒绝，避免拼进Qdrant请求后返回难以定位的400。
func ValidatePointID(pointID string) error {
	if _, err := uuid.FromString(pointID); err != nil {
		return fmt.Errorf("非法的向量点ID %q: %w", pointID, err)
	}
	return nil
}

// RecommendSimilarJobs 以简历向量点为正例，在岗位集合中召回相似岗位。
// 返回按相似度降序排列的岗位点，分数在[0,1]区间。
func (q *Qdrant) RecommendSimilarJobs(ctx context.Context, resumeVectorID string, limit int) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.RecommendSimilarJobs",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "recommend"),
		attribute.String("db.collection", q.jobCollection),
		attribute.String("lookup.collection", q.resumeCollection),
		attribute.String("resume.vector_id", resumeVectorID),
		attribute.Int("search.limit", limit),
	)

	if err := ValidatePointID(resumeVectorID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if limit <= 0 {
		limit = 10
	}

	recommendReq := map[string]interface{}{
		"positive":     []string{resumeVectorID},
		"limit":        limit,
		"with_payload": true,
		"lookup_from": map[string]interface{}{
			"collection": q.resumeCollection,
		},
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Score   float32                `json:"score"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/recommend", q.jobCollection), recommendReq, &result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	searchResults := make([]SearchResult, 0, len(result.Result))
	for _, point := range result.Result {
		searchResults = append(searchResults, SearchResult{
			ID:      point.ID,
			Score:   point.Score,
			Payload: point.Payload,
		})
	}

	span.SetAttributes(
		attribute.Int("search.results.count", len(searchResults)),
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)

	span.SetStatus(codes.Ok, "")
	return searchResults, nil
}

// RetrieveResumePayload 按向量点ID获取简历点的payload。
// 点不存在时返回 (nil, nil)，由调用方决定回源失败的语义。
func (q *Qdrant) RetrieveResumePayload(ctx context.Context, resumeVectorID string) (map[string]interface{}, error) {
	ctx, span := qdrantTracer.Start(ctx, "Qdrant.RetrieveResumePayload",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", "retrieve"),
		attribute.String("db.collection", q.resumeCollection),
		attribute.String("resume.vector_id", resumeVectorID),
	)

	if err := ValidatePointID(resumeVectorID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	retrieveReq := map[string]interface{}{
		"ids":          []string{resumeVectorID},
		"with_payload": true,
	}

	var result struct {
		Result []struct {
			ID      string                 `json:"id"`
			Payload map[string]interface{} `json:"payload"`
		} `json:"result"`
		Status string  `json:"status"`
		Time   float64 `json:"time"`
	}

	err := q.doRequest(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points", q.resumeCollection), retrieveReq, &result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("retrieved_points_count", len(result.Result)),
		attribute.String("qdrant.response_status", result.Status),
		attribute.Float64("qdrant.response_time", result.Time),
	)

	if len(result.Result) == 0 {
		span.SetStatus(codes.Ok, "point not found")
		return nil, nil
	}

	span.SetStatus(codes.Ok, "")
	return result.Result[0].Payload, nil
}

// setHeaders 设置通用请求头
func (q *Qdrant) setHeaders(req *http.Request) {
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
}

func (q *Qdrant) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	ctx, span := qdrantTracer.Start(ctx, fmt.Sprintf("%s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("net.peer.name", q.endpoint),
		attribute.String("db.system", "qdrant"),
		attribute.String("db.operation", path),
	)

	var req *http.Request
	var err error

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}

		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, bytes.NewBuffer(jsonBody))
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		span.SetAttributes(attribute.Int("http.request.body.size", len(jsonBody)))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, q.endpoint+path, nil)
		if err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	q.setHeaders(req)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := q.httpClient.Do(req)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeHTTP)
		return err
	}

	span.SetAttributes(attribute.Int("http.response.body.size", len(respBody)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err = fmt.Errorf("qdrant API error: status=%d, body=%s", resp.StatusCode, string(respBody))
		tracing.RecordHTTPError(span, err, resp.StatusCode)
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err = json.Unmarshal(respBody, result); err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeVectorDB)
			return err
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
