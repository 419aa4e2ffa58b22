package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"job-match-go/internal/config"
	"job-match-go/internal/constants"
	"job-match-go/internal/tracing"
	"job-match-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("job-match-go/storage/redis")

// Redis操作前缀采样率配置。
// 列表和匹配结果读多写少，低采样即可；简历内容读取是回源路径的一环，采样高一些
var redisKeySamplingRates = map[string]float64{
	"jobs:":       0.05, // 推荐列表缓存采样5%
	"match:":      0.1,  // 匹配结果缓存采样10%
	"resumeData:": 0.25, // 简历内容回源采样25%
}

var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	source := rand.NewSource(time.Now().UnixNano())
	rnd = rand.New(source)
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}
	// 默认采样率5%
	return randFloat() < 0.05
}

func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// Get 获取键的值
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	// 根据key前缀决定是否创建span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			// 避免与redisotel hook产生的span重复
			attribute.Bool("otel.propagate_to_child", false),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()

	if span != nil {
		if err != nil {
			// key不存在不算错误
			if err == redis.Nil {
				span.SetStatus(codes.Ok, "key not found")
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return "", err
		}

		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}
	if err != nil {
		return "", err
	}

	return val, nil
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			attribute.String("db.system", "redis"),
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			attribute.Int("db.redis.value_length", len(value)),
			attribute.Bool("otel.propagate_to_child", false),
		)

		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// GetMatchList 读取简历的岗位推荐列表缓存。
// 未命中时返回 (nil, ErrNotFound)。
func (r *Redis) GetMatchList(ctx context.Context, resumeVectorID string) ([]types.MatchListEntry, error) {
	key := fmt.Sprintf(constants.KeyJobMatchList, resumeVectorID)
	val, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var entries []types.MatchListEntry
	if err := json.Unmarshal([]byte(val), &entries); err != nil {
		return nil, fmt.Errorf("反序列化推荐列表缓存失败: %w", err)
	}
	return entries, nil
}

// SetMatchList 写入简历的岗位推荐列表缓存
func (r *Redis) SetMatchList(ctx context.Context, resumeVectorID string, entries []types.MatchListEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("序列化推荐列表失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyJobMatchList, resumeVectorID)
	return r.Set(ctx, key, string(data), constants.MatchListCacheTTL)
}

// GetMatchResult 读取详细匹配结果缓存。
// 未命中时返回 (nil, ErrNotFound)。
func (r *Redis) GetMatchResult(ctx context.Context, resumeID, jobID string) (*types.MatchResult, error) {
	key := fmt.Sprintf(constants.KeyMatchResult, resumeID, jobID)
	val, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var result types.MatchResult
	if err := json.Unmarshal([]byte(val), &result); err != nil {
		return nil, fmt.Errorf("反序列化匹配结果缓存失败: %w", err)
	}
	return &result, nil
}

// SetMatchResult 写入详细匹配结果缓存
func (r *Redis) SetMatchResult(ctx context.Context, resumeID, jobID string, result *types.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化匹配结果失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyMatchResult, resumeID, jobID)
	return r.Set(ctx, key, string(data), constants.MatchResultCacheTTL)
}

// GetResumeData 读取上游解析服务写入的简历内容缓存，返回原始字符串。
// 值可能是裸JSON字符串、结构化对象或 {"resumeData": ...} 信封，
// 解码交由调用方统一处理。
func (r *Redis) GetResumeData(ctx context.Context, resumeVectorID string) (string, error) {
	key := fmt.Sprintf(constants.KeyResumeData, resumeVectorID)
	return r.Get(ctx, key)
}
