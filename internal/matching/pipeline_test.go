package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"job-match-go/internal/storage"
	"job-match-go/internal/storage/models"
	"job-match-go/internal/types"
)

// ---- 端口的内存实现 ----

type fakeResumeStore struct {
	resumes map[string]*models.Resume
}

func (f *fakeResumeStore) FindResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	if r, ok := f.resumes[resumeID]; ok {
		return r, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeJobStore struct {
	jobs map[string]*models.Job
}

func (f *fakeJobStore) FindJobByID(ctx context.Context, jobID string) (*models.Job, error) {
	if j, ok := f.jobs[jobID]; ok {
		return j, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeCache struct {
	mu           sync.Mutex
	matchLists   map[string][]types.MatchListEntry
	matchResults map[string]*types.MatchResult
	resumeData   map[string]string

	getErr         error // 非未命中的读失败
	setListCalls   int
	setResultCalls int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		matchLists:   make(map[string][]types.MatchListEntry),
		matchResults: make(map[string]*types.MatchResult),
		resumeData:   make(map[string]string),
	}
}

func (f *fakeCache) GetMatchList(ctx context.Context, vid string) ([]types.MatchListEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if entries, ok := f.matchLists[vid]; ok {
		return entries, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeCache) SetMatchList(ctx context.Context, vid string, entries []types.MatchListEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setListCalls++
	f.matchLists[vid] = entries
	return nil
}

func (f *fakeCache) GetMatchResult(ctx context.Context, resumeID, jobID string) (*types.MatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if r, ok := f.matchResults[resumeID+":"+jobID]; ok {
		return r, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeCache) SetMatchResult(ctx context.Context, resumeID, jobID string, result *types.MatchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setResultCalls++
	f.matchResults[resumeID+":"+jobID] = result
	return nil
}

func (f *fakeCache) GetResumeData(ctx context.Context, vid string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if raw, ok := f.resumeData[vid]; ok {
		return raw, nil
	}
	return "", storage.ErrNotFound
}

type fakeVectorIndex struct {
	mu       sync.Mutex
	results  []storage.SearchResult
	payloads map[string]map[string]interface{}

	recommendErr error
	retrieveErr  error

	recommendCalls int
	retrieveCalls  int
}

func (f *fakeVectorIndex) RecommendSimilarJobs(ctx context.Context, vid string, limit int) ([]storage.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recommendCalls++
	if f.recommendErr != nil {
		return nil, f.recommendErr
	}
	return f.results, nil
}

func (f *fakeVectorIndex) RetrieveResumePayload(ctx context.Context, vid string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieveCalls++
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return f.payloads[vid], nil
}

type fakeSkillEstimator struct {
	mu      sync.Mutex
	overlap *types.SkillOverlap
	err     error
	calls   int
}

func (f *fakeSkillEstimator) Estimate(ctx context.Context, resume *types.ResumeContent, job *types.JobContent) (*types.SkillOverlap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.overlap, nil
}

type fakeExplainer struct {
	mu          sync.Mutex
	explanation *types.MatchExplanation
	err         error
	calls       int
}

func (f *fakeExplainer) Explain(ctx context.Context, resume *types.ResumeContent, job *types.JobContent) (*types.MatchExplanation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.explanation, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*storage.MatchComputedEvent
	err    error
}

func (f *fakePublisher) PublishMatchComputed(ctx context.Context, event *storage.MatchComputedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

// ---- 测试装配 ----

type pipelineFixture struct {
	resumes   *fakeResumeStore
	jobs      *fakeJobStore
	cache     *fakeCache
	vectors   *fakeVectorIndex
	skills    *fakeSkillEstimator
	explainer *fakeExplainer
	publisher *fakePublisher
	pipeline  *Pipeline
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		resumes: &fakeResumeStore{resumes: map[string]*models.Resume{
			"resume-1": {
				ResumeID:      "resume-1",
				UserID:        "user-1",
				VectorID:      "11111111-1111-1111-1111-111111111111",
				ParsedContent: datatypes.JSON(`{"name": "张三", "skills": ["Go", "Redis"]}`),
			},
		}},
		jobs: &fakeJobStore{jobs: map[string]*models.Job{
			"job-1": {
				JobID:       "job-1",
				Title:       "后端工程师",
				Employer:    "示例科技",
				Description: "负责核心服务开发",
			},
		}},
		cache: newFakeCache(),
		vectors: &fakeVectorIndex{
			payloads: make(map[string]map[string]interface{}),
		},
		skills: &fakeSkillEstimator{overlap: &types.SkillOverlap{SkillRatio: 0.70, ExperienceRatio: 0.40}},
		explainer: &fakeExplainer{explanation: &types.MatchExplanation{
			MatchedSkills: []string{"Go"},
			MissingSkills: []string{"Kubernetes"},
			MatchReason:   "核心技能匹配",
		}},
		publisher: &fakePublisher{},
	}
	f.pipeline = NewPipeline(f.resumes, f.jobs, f.cache, f.vectors, f.skills, f.explainer, f.publisher, 20)
	return f
}

// ---- ListMatches ----

func TestListMatchesCacheMiss(t *testing.T) {
	f := newPipelineFixture()
	f.vectors.results = []storage.SearchResult{
		{ID: "job-1", Score: 0.87},
		{ID: "job-2", Score: 0.62},
	}

	entries, cached, err := f.pipeline.ListMatches(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, entries, 2)
	assert.Equal(t, types.MatchListEntry{JobID: "job-1", Score: 87}, entries[0])
	assert.Equal(t, types.MatchListEntry{JobID: "job-2", Score: 62}, entries[1])
	assert.Equal(t, 1, f.cache.setListCalls, "结果应写入缓存")
}

func TestListMatchesCacheHit(t *testing.T) {
	f := newPipelineFixture()
	f.cache.matchLists["vid-1"] = []types.MatchListEntry{{JobID: "job-9", Score: 55}}

	entries, cached, err := f.pipeline.ListMatches(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, []types.MatchListEntry{{JobID: "job-9", Score: 55}}, entries)
	assert.Equal(t, 0, f.vectors.recommendCalls, "缓存命中时不应调用向量召回")
}

func TestListMatchesEmptyVectorID(t *testing.T) {
	f := newPipelineFixture()

	_, _, err := f.pipeline.ListMatches(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrValidation)
}

func TestListMatchesCacheReadFailureFallsBackToRecall(t *testing.T) {
	f := newPipelineFixture()
	f.cache.getErr = errors.New("redis连接被重置")
	f.vectors.results = []storage.SearchResult{{ID: "job-1", Score: 0.87}}

	entries, cached, err := f.pipeline.ListMatches(context.Background(), "vid-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []types.MatchListEntry{{JobID: "job-1", Score: 87}}, entries)
	assert.Equal(t, 1, f.vectors.recommendCalls, "缓存读失败应按未命中处理并走向量召回")
}

func TestListMatchesVectorIndexFailure(t *testing.T) {
	f := newPipelineFixture()
	f.vectors.recommendErr = errors.New("qdrant不可达")

	_, _, err := f.pipeline.ListMatches(context.Background(), "vid-1")
	assert.ErrorIs(t, err, types.ErrRetrieval)
	assert.Equal(t, 0, f.cache.setListCalls, "失败时不应写缓存")
}

// ---- ComputeDetailedMatch ----

func TestComputeDetailedMatchCacheReadFailureRecomputes(t *testing.T) {
	f := newPipelineFixture()
	f.cache.getErr = errors.New("redis连接被重置")

	result, cached, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 80)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 72, result.FinalScore)
	assert.Equal(t, 1, f.skills.calls, "缓存读失败应按未命中处理并重新计算")
}

func TestComputeDetailedMatchFresh(t *testing.T) {
	f := newPipelineFixture()

	result, cached, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 80)
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, 80, result.VectorScore)
	assert.Equal(t, 70, result.SkillScore)
	assert.Equal(t, 40, result.ExpRelevanceScore)
	assert.Equal(t, 72, result.FinalScore)
	assert.Equal(t, []string{"Go"}, result.MatchedSkills)
	assert.Equal(t, []string{"Kubernetes"}, result.MissingSkills)
	assert.Equal(t, "核心技能匹配", result.MatchReason)
	assert.NotZero(t, result.ComputedAt)

	assert.Equal(t, 1, f.cache.setResultCalls, "新结果应写入缓存")
	require.Len(t, f.publisher.events, 1, "应发布匹配完成事件")
	assert.Equal(t, "resume-1", f.publisher.events[0].ResumeID)
	assert.Equal(t, 72, f.publisher.events[0].FinalScore)
	assert.NotEmpty(t, f.publisher.events[0].EventID)
}

func TestComputeDetailedMatchCacheHit(t *testing.T) {
	f := newPipelineFixture()
	want := &types.MatchResult{ResumeID: "resume-1", JobID: "job-1", FinalScore: 88}
	f.cache.matchResults["resume-1:job-1"] = want

	result, cached, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 80)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, want, result, "缓存命中应原样返回缓存值")
	assert.Equal(t, 0, f.skills.calls, "缓存命中时不应调用LLM")
	assert.Equal(t, 0, f.explainer.calls)
	assert.Empty(t, f.publisher.events, "缓存命中不应重复发事件")
}

func TestComputeDetailedMatchValidatesVectorScore(t *testing.T) {
	f := newPipelineFixture()

	for _, score := range []int{-1, 101, 1000} {
		_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", score)
		assert.ErrorIs(t, err, types.ErrValidation, "vector_score=%d", score)
	}
}

func TestComputeDetailedMatchResumeNotFound(t *testing.T) {
	f := newPipelineFixture()

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "no-such-resume", "job-1", 50)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, f.cache.setResultCalls)
}

func TestComputeDetailedMatchJobNotFound(t *testing.T) {
	f := newPipelineFixture()

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "no-such-job", 50)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, f.cache.setResultCalls)
}

func TestComputeDetailedMatchEstimatorFailure(t *testing.T) {
	f := newPipelineFixture()
	f.skills.err = errors.New("LLM超时")

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 80)
	assert.ErrorIs(t, err, types.ErrComputation)
	assert.Equal(t, 0, f.cache.setResultCalls, "评估失败不应写缓存")
	assert.Empty(t, f.publisher.events, "评估失败不应发事件")
}

func TestComputeDetailedMatchExplainerFailure(t *testing.T) {
	f := newPipelineFixture()
	f.explainer.err = errors.New("解析失败")

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 80)
	assert.ErrorIs(t, err, types.ErrComputation)
	assert.Equal(t, 0, f.cache.setResultCalls)
}

func TestComputeDetailedMatchNilListsBecomeEmpty(t *testing.T) {
	f := newPipelineFixture()
	f.explainer.explanation = &types.MatchExplanation{MatchReason: "一般匹配"}

	result, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 50)
	require.NoError(t, err)
	assert.NotNil(t, result.MatchedSkills)
	assert.Empty(t, result.MatchedSkills)
	assert.NotNil(t, result.MissingSkills)
	assert.NotNil(t, result.ImprovementSuggestions)
}

func TestComputeDetailedMatchEmptyJobText(t *testing.T) {
	f := newPipelineFixture()
	f.jobs.jobs["job-empty"] = &models.Job{JobID: "job-empty"}

	result, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-empty", 60)
	require.NoError(t, err, "岗位文本为空时应降级而不是失败")
	assert.Equal(t, "job-empty", result.JobID)
}

func TestComputeDetailedMatchPublishFailureIgnored(t *testing.T) {
	f := newPipelineFixture()
	f.publisher.err = errors.New("rabbitmq不可达")

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 80)
	require.NoError(t, err, "事件发布失败不应影响计算结果")
	assert.Equal(t, 1, f.cache.setResultCalls)
}

func TestComputeDetailedMatchConcurrent(t *testing.T) {
	f := newPipelineFixture()

	var wg sync.WaitGroup
	results := make([]*types.MatchResult, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _, errs[i] = f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 80)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 72, results[i].FinalScore, "并发计算应得到相同分数")
	}
}

// ---- 简历内容三级解析 ----

func TestResolveResumeContentFromStore(t *testing.T) {
	f := newPipelineFixture()
	f.cache.resumeData["11111111-1111-1111-1111-111111111111"] = `{"name": "缓存里的人"}`

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-1", "job-1", 50)
	require.NoError(t, err)
	assert.Equal(t, 0, f.vectors.retrieveCalls, "解析列有内容时不应访问向量库")
}

func TestResolveResumeContentFromCache(t *testing.T) {
	f := newPipelineFixture()
	vid := "22222222-2222-2222-2222-222222222222"
	f.resumes.resumes["resume-2"] = &models.Resume{
		ResumeID: "resume-2",
		UserID:   "user-1",
		VectorID: vid,
	}
	f.cache.resumeData[vid] = `{"resumeData": {"name": "李四", "skills": ["Python"]}}`

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-2", "job-1", 50)
	require.NoError(t, err)
	assert.Equal(t, 0, f.vectors.retrieveCalls, "缓存有内容时不应访问向量库")
}

func TestResolveResumeContentFromVectorIndex(t *testing.T) {
	f := newPipelineFixture()
	vid := "33333333-3333-3333-3333-333333333333"
	f.resumes.resumes["resume-3"] = &models.Resume{
		ResumeID: "resume-3",
		UserID:   "user-1",
		VectorID: vid,
	}
	f.vectors.payloads[vid] = map[string]interface{}{"name": "王五", "summary": "数据工程师"}

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-3", "job-1", 50)
	require.NoError(t, err)
	assert.Equal(t, 1, f.vectors.retrieveCalls, "前两级都为空时应访问向量库一次")
}

func TestResolveResumeContentAllEmpty(t *testing.T) {
	f := newPipelineFixture()
	vid := "44444444-4444-4444-4444-444444444444"
	f.resumes.resumes["resume-4"] = &models.Resume{
		ResumeID: "resume-4",
		UserID:   "user-1",
		VectorID: vid,
	}

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-4", "job-1", 50)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, f.cache.setResultCalls, "无简历内容时不应写缓存")
	assert.Equal(t, 0, f.skills.calls, "无简历内容时不应调用LLM")
}

func TestResolveResumeContentNoVectorID(t *testing.T) {
	f := newPipelineFixture()
	f.resumes.resumes["resume-5"] = &models.Resume{
		ResumeID: "resume-5",
		UserID:   "user-1",
	}

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-5", "job-1", 50)
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, 0, f.vectors.retrieveCalls)
}

func TestResolveResumeContentVectorIndexFailure(t *testing.T) {
	f := newPipelineFixture()
	vid := "55555555-5555-5555-5555-555555555555"
	f.resumes.resumes["resume-6"] = &models.Resume{
		ResumeID: "resume-6",
		UserID:   "user-1",
		VectorID: vid,
	}
	f.vectors.retrieveErr = fmt.Errorf("连接超时")

	_, _, err := f.pipeline.ComputeDetailedMatch(context.Background(), "resume-6", "job-1", 50)
	assert.ErrorIs(t, err, types.ErrRetrieval)
	assert.Equal(t, 0, f.cache.setResultCalls)
}
