package pipeline // 简历摄取编排：提取、校验、上传、分析、落库

import (
	"context"
	"fmt"
	"time"

	"jobgenius-go/internal/analyzer"
	"jobgenius-go/internal/constants"
	"jobgenius-go/internal/extractor"
	"jobgenius-go/internal/logger"
	"jobgenius-go/internal/storage"
	"jobgenius-go/internal/storage/models"
	"jobgenius-go/internal/validator"

	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
)

// TextExtractor 文本提取依赖
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) *extractor.Result
}

// BlobStore 对象存储依赖
type BlobStore interface {
	UploadResumeFile(ctx context.Context, fileName string, data []byte, mimeType string) (*storage.UploadResult, error)
	DeleteFile(ctx context.Context, objectKey string) error
}

// QualityAnalyzer AI分析依赖，任何失败都以降级报告形式返回
type QualityAnalyzer interface {
	Analyze(ctx context.Context, resumeText string) *analyzer.Analysis
}

// RecordStore 关系存储依赖
type RecordStore interface {
	GetOrCreateUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	CreateResume(ctx context.Context, resume *models.Resume) error
}

// Input 一次摄取请求
type Input struct {
	OwnerExternalID string // 鉴权层解析出的外部用户标识
	FileName        string
	MimeType        string
	FileMD5         string // 原始文件MD5，用于删除时清理去重记录
	Data            []byte
}

// Result 摄取成功的产物
type Result struct {
	Resume     *models.Resume
	Analysis   *analyzer.Analysis
	Validation *validator.Verdict
	Tips       []string // 面向用户的改进提示，来自内容校验
}

// Pipeline 简历摄取编排器
// 各阶段线性执行：提取失败在任何持久副作用之前终止；
// 落库失败触发blob补偿删除，保证不留孤儿对象
type Pipeline struct {
	extractor TextExtractor
	blobs     BlobStore
	analyzer  QualityAnalyzer
	records   RecordStore
	logger    zerolog.Logger
}

// Option 编排器配置选项
type Option func(*Pipeline)

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// New 创建摄取编排器
func New(ext TextExtractor, blobs BlobStore, an QualityAnalyzer, records RecordStore, options ...Option) *Pipeline {
	p := &Pipeline{
		extractor: ext,
		blobs:     blobs,
		analyzer:  an,
		records:   records,
		logger:    logger.With("pipeline"),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

// Ingest 执行完整的简历摄取流程
func (p *Pipeline) Ingest(ctx context.Context, in *Input) (*Result, error) {
	start := time.Now()

	// 阶段1: 解析用户，首次出现的外部标识惰性建档
	user, err := p.records.GetOrCreateUserByExternalID(ctx, in.OwnerExternalID)
	if err != nil {
		return nil, NewUnknownUserError(in.OwnerExternalID, err.Error())
	}

	// 阶段2: 文本提取，失败则在产生任何持久副作用之前终止
	if !constants.SupportedMimeTypes()[in.MimeType] {
		return nil, NewUnsupportedMediaError(in.OwnerExternalID,
			fmt.Sprintf("Unsupported file type: %s. Only PDF and Word documents are supported.", in.MimeType))
	}

	extracted := p.extractor.Extract(ctx, in.Data, in.MimeType)
	if extracted.Error != "" {
		return nil, NewExtractionError(in.OwnerExternalID, extracted.Error)
	}

	// 阶段3: 内容校验，结果仅作提示
	verdict := validator.Validate(extracted.Text)
	if !verdict.IsValid {
		p.logger.Info().
			Str("owner", in.OwnerExternalID).
			Strs("warnings", verdict.Warnings).
			Msg("resume content validation produced warnings, continuing")
	}

	// 阶段4: 上传原始文件到对象存储
	upload, err := p.blobs.UploadResumeFile(ctx, in.FileName, in.Data, in.MimeType)
	if err != nil {
		return nil, NewUploadError(in.OwnerExternalID, err.Error())
	}

	// 阶段5: AI质量分析，降级不阻断流程
	analysis := p.analyzer.Analyze(ctx, extracted.Text)
	if analysis.Outcome != analyzer.OutcomeOK {
		p.logger.Warn().
			Str("owner", in.OwnerExternalID).
			Str("outcome", string(analysis.Outcome)).
			Msg("AI analysis degraded, persisting fallback report")
	}

	// 阶段6: 落库，失败则补偿删除已上传的blob
	resume, err := p.buildResume(user.UserID, in, extracted, upload, analysis)
	if err != nil {
		p.compensateUpload(ctx, upload.ObjectKey)
		return nil, NewPersistenceError(in.OwnerExternalID, err.Error())
	}

	if err := p.records.CreateResume(ctx, resume); err != nil {
		p.compensateUpload(ctx, upload.ObjectKey)
		return nil, NewPersistenceError(in.OwnerExternalID, err.Error())
	}

	p.logger.Info().
		Str("resume_id", resume.ResumeID).
		Str("owner", in.OwnerExternalID).
		Int("word_count", extracted.WordCount).
		Str("analysis_outcome", string(analysis.Outcome)).
		Dur("duration", time.Since(start)).
		Msg("resume ingested")

	return &Result{
		Resume:     resume,
		Analysis:   analysis,
		Validation: verdict,
		Tips:       verdict.Warnings,
	}, nil
}

// buildResume 组装简历记录
// 分数为0时落库为保底分，避免展示层出现零分简历
func (p *Pipeline) buildResume(userID string, in *Input, extracted *extractor.Result, upload *storage.UploadResult, analysis *analyzer.Analysis) (*models.Resume, error) {
	resumeID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成简历ID失败: %w", err)
	}

	analysisJSON, err := models.MapToJSON(map[string]interface{}{
		"strengthScore":   analysis.Report.StrengthScore,
		"atsScore":        analysis.Report.ATSScore,
		"strengths":       analysis.Report.Strengths,
		"improvements":    analysis.Report.Improvements,
		"suggestedSkills": analysis.Report.SuggestedSkills,
		"recommendations": analysis.Report.Recommendations,
		"outcome":         string(analysis.Outcome),
	})
	if err != nil {
		return nil, fmt.Errorf("序列化分析报告失败: %w", err)
	}

	suggestionsJSON, err := models.SliceToJSON(analysis.Report.Improvements)
	if err != nil {
		return nil, fmt.Errorf("序列化改进建议失败: %w", err)
	}

	return &models.Resume{
		ResumeID:      resumeID.String(),
		UserID:        userID,
		FileName:      in.FileName,
		FileURL:       upload.URL,
		ObjectKey:     upload.ObjectKey,
		FileSize:      int64(len(in.Data)),
		FileMD5:       in.FileMD5,
		MimeType:      in.MimeType,
		ParsedContent: extracted.Text,
		Analysis:      analysisJSON,
		StrengthScore: floorScore(analysis.Report.StrengthScore),
		ATSScore:      floorScore(analysis.Report.ATSScore),
		Suggestions:   suggestionsJSON,
		IsPrimary:     false,
	}, nil
}

// compensateUpload 落库失败后回收已上传的blob
// 删除失败只记录日志，不改变返回给调用方的持久化错误
func (p *Pipeline) compensateUpload(ctx context.Context, objectKey string) {
	if err := p.blobs.DeleteFile(ctx, objectKey); err != nil {
		p.logger.Error().Err(err).Str("object_key", objectKey).Msg("compensating blob delete failed, orphan object left behind")
		return
	}
	p.logger.Info().Str("object_key", objectKey).Msg("compensating blob delete succeeded")
}

// floorScore 零分落库为保底分
func floorScore(score int) int {
	if score == 0 {
		return constants.DefaultPersistScore
	}
	return score
}
