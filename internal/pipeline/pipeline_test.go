package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"jobgenius-go/internal/analyzer"
	"jobgenius-go/internal/constants"
	"jobgenius-go/internal/extractor"
	"jobgenius-go/internal/storage"
	"jobgenius-go/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExtractor 返回预设的提取结果
type fakeExtractor struct {
	result *extractor.Result
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, _ string) *extractor.Result {
	return f.result
}

// fakeBlobStore 记录上传和删除调用
type fakeBlobStore struct {
	uploadErr   error
	deleteErr   error
	uploads     int
	deletedKeys []string
}

func (f *fakeBlobStore) UploadResumeFile(_ context.Context, _ string, _ []byte, _ string) (*storage.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploads++
	return &storage.UploadResult{
		ObjectKey: fmt.Sprintf("jobgenius/resumes/run-%d/resume.pdf", f.uploads),
		URL:       fmt.Sprintf("https://minio.local/presigned/run-%d", f.uploads),
	}, nil
}

func (f *fakeBlobStore) DeleteFile(_ context.Context, objectKey string) error {
	f.deletedKeys = append(f.deletedKeys, objectKey)
	return f.deleteErr
}

// fakeAnalyzer 返回预设的分析结果
type fakeAnalyzer struct {
	analysis *analyzer.Analysis
	calls    int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ string) *analyzer.Analysis {
	f.calls++
	return f.analysis
}

// fakeRecordStore 内存版关系存储，未预置用户时模拟惰性建档
type fakeRecordStore struct {
	user        *models.User
	userErr     error
	createErr   error
	created     []*models.Resume
	provisioned []string
}

func (f *fakeRecordStore) GetOrCreateUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.user == nil {
		f.provisioned = append(f.provisioned, externalID)
		f.user = &models.User{UserID: "u-new", ExternalID: externalID}
	}
	return f.user, nil
}

func (f *fakeRecordStore) CreateResume(_ context.Context, resume *models.Resume) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, resume)
	return nil
}

func okExtraction() *extractor.Result {
	return &extractor.Result{
		Text:      strings.Repeat("education skills experience project word ", 10),
		WordCount: 60,
		PageCount: 1,
	}
}

func okAnalysis() *analyzer.Analysis {
	return &analyzer.Analysis{
		Report: &analyzer.Report{
			StrengthScore:   82,
			ATSScore:        75,
			Strengths:       []string{"clear"},
			Improvements:    []string{"metrics"},
			SuggestedSkills: []string{"Go"},
			Recommendations: []string{"tailor"},
		},
		Outcome: analyzer.OutcomeOK,
	}
}

func testInput() *Input {
	return &Input{
		OwnerExternalID: "ext-1",
		FileName:        "resume.pdf",
		MimeType:        constants.MimePDF,
		Data:            []byte("%PDF-fake"),
	}
}

func newTestPipeline(ext *fakeExtractor, blobs *fakeBlobStore, an *fakeAnalyzer, records *fakeRecordStore) *Pipeline {
	return New(ext, blobs, an, records)
}

// TestIngestSuccess 完整流程成功，记录和提示都返回
func TestIngestSuccess(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{user: &models.User{UserID: "u-1", ExternalID: "ext-1"}}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	res, err := p.Ingest(context.Background(), testInput())

	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, records.created, 1, "应恰好落库一条记录")

	resume := records.created[0]
	assert.Equal(t, "u-1", resume.UserID)
	assert.Equal(t, 82, resume.StrengthScore)
	assert.Equal(t, 75, resume.ATSScore)
	assert.NotEmpty(t, resume.ResumeID)
	assert.NotEmpty(t, resume.ObjectKey)
	assert.NotEmpty(t, resume.FileURL)
	assert.False(t, resume.IsPrimary, "新简历不应自动成为主简历")
	assert.Empty(t, blobs.deletedKeys, "成功路径不应触发补偿删除")
	assert.NotNil(t, res.Validation)
}

// TestIngestUserResolutionFailureAborts 用户解析失败时立即终止
func TestIngestUserResolutionFailureAborts(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{userErr: fmt.Errorf("connection refused")}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	_, err := p.Ingest(context.Background(), testInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Zero(t, blobs.uploads)
}

// TestIngestProvisionsFirstTimeOwner 首次出现的外部标识先建档再完整走完摄取流程
func TestIngestProvisionsFirstTimeOwner(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	res, err := p.Ingest(context.Background(), testInput())

	require.NoError(t, err, "空库上的首次请求必须成功")
	require.Len(t, records.provisioned, 1, "应为新外部标识建档")
	assert.Equal(t, "ext-1", records.provisioned[0])
	require.Len(t, records.created, 1)
	assert.Equal(t, records.user.UserID, records.created[0].UserID, "落库记录应挂在新建用户下")
	assert.NotNil(t, res.Resume)
}

// TestIngestUnsupportedMime 未声明支持的MIME类型直接拒绝
func TestIngestUnsupportedMime(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{user: &models.User{UserID: "u-1"}}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	in := testInput()
	in.MimeType = "image/png"
	_, err := p.Ingest(context.Background(), in)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedMedia)
	assert.Contains(t, err.Error(), "image/png")
	assert.Zero(t, blobs.uploads)
}

// TestIngestExtractionFailureAbortsBeforeSideEffects 提取失败必须发生在任何持久副作用之前
func TestIngestExtractionFailureAbortsBeforeSideEffects(t *testing.T) {
	blobs := &fakeBlobStore{}
	an := &fakeAnalyzer{analysis: okAnalysis()}
	records := &fakeRecordStore{user: &models.User{UserID: "u-1"}}
	lowContent := &extractor.Result{
		WordCount: 5,
		Error:     "Document appears to be empty or contains very little text. Please upload a complete resume.",
	}
	p := newTestPipeline(&fakeExtractor{result: lowContent}, blobs, an, records)

	_, err := p.Ingest(context.Background(), testInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Zero(t, blobs.uploads, "提取失败不应上传")
	assert.Zero(t, an.calls, "提取失败不应分析")
	assert.Empty(t, records.created, "提取失败不应落库")
	assert.Empty(t, blobs.deletedKeys)
}

// TestIngestUploadFailure 上传失败不落库也不补偿
func TestIngestUploadFailure(t *testing.T) {
	blobs := &fakeBlobStore{uploadErr: fmt.Errorf("minio unavailable")}
	records := &fakeRecordStore{user: &models.User{UserID: "u-1"}}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	_, err := p.Ingest(context.Background(), testInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUploadFailed)
	assert.Empty(t, records.created)
	assert.Empty(t, blobs.deletedKeys, "没有成功上传就没有可补偿的对象")
}

// TestIngestPersistFailureCompensates 落库失败触发恰好一次blob补偿删除
func TestIngestPersistFailureCompensates(t *testing.T) {
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{
		user:      &models.User{UserID: "u-1"},
		createErr: fmt.Errorf("deadlock detected"),
	}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	_, err := p.Ingest(context.Background(), testInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailed)
	require.Len(t, blobs.deletedKeys, 1, "应恰好删除一次")
	assert.Equal(t, "jobgenius/resumes/run-1/resume.pdf", blobs.deletedKeys[0], "删除的必须是本次上传的对象")
}

// TestIngestPersistFailureDeleteFailureSurfacesOriginalError 补偿删除失败只记日志，对外仍是持久化错误
func TestIngestPersistFailureDeleteFailureSurfacesOriginalError(t *testing.T) {
	blobs := &fakeBlobStore{deleteErr: fmt.Errorf("network partition")}
	records := &fakeRecordStore{
		user:      &models.User{UserID: "u-1"},
		createErr: fmt.Errorf("connection reset"),
	}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	_, err := p.Ingest(context.Background(), testInput())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistenceFailed, "对外错误必须是持久化失败而不是删除失败")
	assert.Len(t, blobs.deletedKeys, 1)
}

// TestIngestDegradedAnalysisStillPersists 分析降级不阻断摄取
func TestIngestDegradedAnalysisStillPersists(t *testing.T) {
	degraded := &analyzer.Analysis{
		Report: &analyzer.Report{
			StrengthScore:   constants.DefaultFallbackScore,
			ATSScore:        constants.DefaultFallbackScore,
			Strengths:       []string{"Resume uploaded successfully"},
			Improvements:    []string{"Add quantifiable achievements"},
			SuggestedSkills: []string{"Git"},
			Recommendations: []string{},
		},
		Outcome: analyzer.OutcomeCallFailed,
	}
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{user: &models.User{UserID: "u-1"}}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: degraded}, records)

	res, err := p.Ingest(context.Background(), testInput())

	require.NoError(t, err, "AI降级绝不导致摄取失败")
	require.Len(t, records.created, 1)
	assert.Equal(t, constants.DefaultFallbackScore, records.created[0].StrengthScore)
	assert.Equal(t, analyzer.OutcomeCallFailed, res.Analysis.Outcome)
}

// TestIngestDisabledAnalysisPersistsFloorScore 禁用态的零分落库为保底分
func TestIngestDisabledAnalysisPersistsFloorScore(t *testing.T) {
	disabled := &analyzer.Analysis{
		Report: &analyzer.Report{
			StrengthScore:   0,
			ATSScore:        0,
			Strengths:       []string{},
			Improvements:    []string{"AI analysis unavailable - API key not configured"},
			SuggestedSkills: []string{},
			Recommendations: []string{},
		},
		Outcome: analyzer.OutcomeDisabled,
	}
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{user: &models.User{UserID: "u-1"}}
	p := newTestPipeline(&fakeExtractor{result: okExtraction()}, blobs, &fakeAnalyzer{analysis: disabled}, records)

	_, err := p.Ingest(context.Background(), testInput())

	require.NoError(t, err)
	require.Len(t, records.created, 1)
	assert.Equal(t, constants.DefaultPersistScore, records.created[0].StrengthScore, "零分应落库为保底分")
	assert.Equal(t, constants.DefaultPersistScore, records.created[0].ATSScore)
}

// TestIngestInvalidContentStillIngests 校验不通过只产生提示，流程继续
func TestIngestInvalidContentStillIngests(t *testing.T) {
	noSections := &extractor.Result{
		Text:      strings.Repeat("lorem ipsum dolor sit amet ", 10),
		WordCount: 50,
	}
	blobs := &fakeBlobStore{}
	records := &fakeRecordStore{user: &models.User{UserID: "u-1"}}
	p := newTestPipeline(&fakeExtractor{result: noSections}, blobs, &fakeAnalyzer{analysis: okAnalysis()}, records)

	res, err := p.Ingest(context.Background(), testInput())

	require.NoError(t, err)
	assert.False(t, res.Validation.IsValid)
	assert.NotEmpty(t, res.Tips, "无效内容应带回提示")
	require.Len(t, records.created, 1)
}
