package handler

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"time"

	"jobgenius-go/internal/config"
	"jobgenius-go/internal/constants"
	"jobgenius-go/internal/logger"
	"jobgenius-go/internal/pipeline"
	"jobgenius-go/internal/storage"
	"jobgenius-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"gorm.io/gorm"
)

// OwnerContextKey 鉴权中间件写入RequestContext的外部用户标识键
const OwnerContextKey = "owner_external_id"

// ResumeHandler 简历处理器，负责协调简历的管理流程
type ResumeHandler struct {
	cfg      *config.Config
	storage  *storage.Storage
	pipeline *pipeline.Pipeline
}

// NewResumeHandler 创建一个新的简历处理器
func NewResumeHandler(cfg *config.Config, storage *storage.Storage, p *pipeline.Pipeline) *ResumeHandler {
	return &ResumeHandler{
		cfg:      cfg,
		storage:  storage,
		pipeline: p,
	}
}

// resumeResponse 简历记录的对外表示
type resumeResponse struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	FileURL       string    `json:"fileUrl"`
	FileSize      int64     `json:"fileSize"`
	MimeType      string    `json:"mimeType"`
	ParsedContent string    `json:"parsedContent,omitempty"`
	Analysis      any       `json:"analysis,omitempty"`
	StrengthScore int       `json:"strengthScore"`
	ATSScore      int       `json:"atsScore"`
	Suggestions   any       `json:"suggestions,omitempty"`
	IsPrimary     bool      `json:"isPrimary"`
	CreatedAt     time.Time `json:"createdAt"`
}

// toResumeResponse 将模型转换为对外表示
// includeContent为false时省略解析文本，列表场景减小响应体
func toResumeResponse(r *models.Resume, includeContent bool) *resumeResponse {
	resp := &resumeResponse{
		ID:            r.ResumeID,
		FileName:      r.FileName,
		FileURL:       r.FileURL,
		FileSize:      r.FileSize,
		MimeType:      r.MimeType,
		Analysis:      rawJSONOrNil(r.Analysis),
		StrengthScore: r.StrengthScore,
		ATSScore:      r.ATSScore,
		Suggestions:   rawJSONOrNil(r.Suggestions),
		IsPrimary:     r.IsPrimary,
		CreatedAt:     r.CreatedAt,
	}
	if includeContent {
		resp.ParsedContent = r.ParsedContent
	}
	return resp
}

func rawJSONOrNil(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return json.RawMessage(data)
}

// ownerFromContext 取出鉴权中间件写入的外部用户标识
func ownerFromContext(c *app.RequestContext) (string, bool) {
	v, ok := c.Get(OwnerContextKey)
	if !ok {
		return "", false
	}
	owner, ok := v.(string)
	return owner, ok && owner != ""
}

// UploadResume 处理简历上传请求
// POST /api/v1/resumes
func (h *ResumeHandler) UploadResume(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerFromContext(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "Unauthorized"})
		return
	}

	fileHeader, err := c.FormFile("resume")
	if err != nil {
		c.JSON(consts.StatusBadRequest, utils.H{"error": "No file uploaded"})
		return
	}

	maxSize := h.cfg.Upload.MaxFileSizeBytes
	if maxSize <= 0 {
		maxSize = constants.MaxResumeFileBytes
	}
	if fileHeader.Size > maxSize {
		c.JSON(consts.StatusRequestEntityTooLarge, utils.H{"error": "File too large. Maximum size is 5MB."})
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if !constants.SupportedMimeTypes()[mimeType] {
		c.JSON(consts.StatusUnsupportedMediaType, utils.H{
			"error": "Unsupported file type: " + mimeType + ". Only PDF and Word documents are supported.",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to open uploaded file"})
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to read uploaded file"})
		return
	}

	// 文件级MD5去重，Redis不可用时跳过这道防线
	fileMD5 := md5.Sum(fileBytes)
	fileMD5Hex := hex.EncodeToString(fileMD5[:])
	if h.storage.Redis != nil {
		exists, err := h.storage.Redis.CheckRawFileMD5Exists(ctx, fileMD5Hex)
		if err != nil {
			logger.Warn().Err(err).Str("md5", fileMD5Hex).Msg("duplicate check failed, continuing without it")
		} else if exists {
			c.JSON(consts.StatusConflict, utils.H{"error": "This file has already been uploaded"})
			return
		}
	}

	result, err := h.pipeline.Ingest(ctx, &pipeline.Input{
		OwnerExternalID: owner,
		FileName:        fileHeader.Filename,
		MimeType:        mimeType,
		FileMD5:         fileMD5Hex,
		Data:            fileBytes,
	})
	if err != nil {
		status, message := statusForIngestError(err)
		logger.Error().Err(err).Str("owner", owner).Str("filename", fileHeader.Filename).Msg("resume ingestion failed")
		c.JSON(status, utils.H{"error": message})
		return
	}

	// 摄取成功后登记MD5并发布事件，两者都是尽力而为
	if h.storage.Redis != nil {
		if err := h.storage.Redis.AddRawFileMD5(ctx, fileMD5Hex); err != nil {
			logger.Warn().Err(err).Str("md5", fileMD5Hex).Msg("failed to record file MD5 after ingestion")
		}
	}
	h.publishResumeEvent(ctx, h.cfg.RabbitMQ.IngestedRoutingKey, result.Resume, owner)

	resp := utils.H{
		"success": true,
		"data":    toResumeResponse(result.Resume, true),
		"message": "Resume uploaded and analyzed successfully! Check the feedback below.",
	}
	if len(result.Tips) > 0 {
		resp["tips"] = result.Tips
	}
	c.JSON(consts.StatusCreated, resp)
}

// ListResumes 列出当前用户的全部简历，新的在前
// GET /api/v1/resumes
func (h *ResumeHandler) ListResumes(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerFromContext(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "Unauthorized"})
		return
	}

	user, err := h.storage.MySQL.GetOrCreateUserByExternalID(ctx, owner)
	if err != nil {
		logger.Error().Err(err).Str("owner", owner).Msg("failed to resolve user")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to fetch resumes"})
		return
	}

	resumes, err := h.storage.MySQL.ListResumesByUser(ctx, user.UserID)
	if err != nil {
		logger.Error().Err(err).Str("owner", owner).Msg("failed to list resumes")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to fetch resumes"})
		return
	}

	out := make([]*resumeResponse, 0, len(resumes))
	for i := range resumes {
		out = append(out, toResumeResponse(&resumes[i], false))
	}
	c.JSON(consts.StatusOK, out)
}

// GetResume 获取单份简历详情
// GET /api/v1/resumes/:id
func (h *ResumeHandler) GetResume(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerFromContext(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "Unauthorized"})
		return
	}

	user, err := h.storage.MySQL.GetOrCreateUserByExternalID(ctx, owner)
	if err != nil {
		logger.Error().Err(err).Str("owner", owner).Msg("failed to resolve user")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to fetch resume"})
		return
	}

	resume, err := h.storage.MySQL.GetResume(ctx, c.Param("id"), user.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "Resume not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to fetch resume"})
		return
	}

	c.JSON(consts.StatusOK, toResumeResponse(resume, true))
}

// SetPrimaryResume 将指定简历设为主简历
// PUT /api/v1/resumes/:id/primary
func (h *ResumeHandler) SetPrimaryResume(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerFromContext(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "Unauthorized"})
		return
	}

	user, err := h.storage.MySQL.GetOrCreateUserByExternalID(ctx, owner)
	if err != nil {
		logger.Error().Err(err).Str("owner", owner).Msg("failed to resolve user")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to set primary resume"})
		return
	}

	resume, err := h.storage.MySQL.SetPrimaryResume(ctx, c.Param("id"), user.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "Resume not found"})
			return
		}
		logger.Error().Err(err).Str("owner", owner).Msg("failed to set primary resume")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to set primary resume"})
		return
	}

	c.JSON(consts.StatusOK, toResumeResponse(resume, false))
}

// DeleteResume 删除简历记录并回收对应的blob
// DELETE /api/v1/resumes/:id
func (h *ResumeHandler) DeleteResume(ctx context.Context, c *app.RequestContext) {
	owner, ok := ownerFromContext(c)
	if !ok {
		c.JSON(consts.StatusUnauthorized, utils.H{"error": "Unauthorized"})
		return
	}

	user, err := h.storage.MySQL.GetOrCreateUserByExternalID(ctx, owner)
	if err != nil {
		logger.Error().Err(err).Str("owner", owner).Msg("failed to resolve user")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to delete resume"})
		return
	}

	resume, err := h.storage.MySQL.GetResume(ctx, c.Param("id"), user.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(consts.StatusNotFound, utils.H{"error": "Resume not found"})
			return
		}
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to delete resume"})
		return
	}

	if err := h.storage.MySQL.DeleteResume(ctx, resume.ResumeID, user.UserID); err != nil {
		logger.Error().Err(err).Str("resume_id", resume.ResumeID).Msg("failed to delete resume record")
		c.JSON(consts.StatusInternalServerError, utils.H{"error": "Failed to delete resume"})
		return
	}

	// 记录已删除，blob回收失败只记日志
	if resume.ObjectKey != "" {
		if err := h.storage.MinIO.DeleteFile(ctx, resume.ObjectKey); err != nil {
			logger.Error().Err(err).Str("object_key", resume.ObjectKey).Msg("failed to delete resume blob, orphan object left behind")
		}
	}

	// 清理去重记录，允许同一文件重新上传
	if h.storage.Redis != nil && resume.FileMD5 != "" {
		if err := h.storage.Redis.RemoveRawFileMD5(ctx, resume.FileMD5); err != nil {
			logger.Warn().Err(err).Str("md5", resume.FileMD5).Msg("failed to remove file MD5 record")
		}
	}

	h.publishResumeEvent(ctx, h.cfg.RabbitMQ.DeletedRoutingKey, resume, owner)

	c.Status(consts.StatusNoContent)
}

// HealthCheck 健康检查
// GET /health
func (h *ResumeHandler) HealthCheck(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// resumeEvent 发布到消息队列的简历事件
type resumeEvent struct {
	ResumeID  string    `json:"resume_id"`
	Owner     string    `json:"owner"`
	FileName  string    `json:"file_name"`
	ObjectKey string    `json:"object_key"`
	Timestamp time.Time `json:"timestamp"`
}

// publishResumeEvent 发布简历事件，失败只记日志
func (h *ResumeHandler) publishResumeEvent(ctx context.Context, routingKey string, resume *models.Resume, owner string) {
	if h.storage.RabbitMQ == nil || routingKey == "" {
		return
	}

	event := resumeEvent{
		ResumeID:  resume.ResumeID,
		Owner:     owner,
		FileName:  resume.FileName,
		ObjectKey: resume.ObjectKey,
		Timestamp: time.Now(),
	}
	if err := h.storage.RabbitMQ.PublishJSON(ctx, h.cfg.RabbitMQ.ResumeEventsExchange, routingKey, event, true); err != nil {
		logger.Warn().Err(err).Str("routing_key", routingKey).Str("resume_id", resume.ResumeID).Msg("failed to publish resume event")
	}
}

// statusForIngestError 摄取错误到HTTP状态码和对外消息的映射
func statusForIngestError(err error) (int, string) {
	var ingestErr *pipeline.IngestError
	detail := err.Error()
	if errors.As(err, &ingestErr) && ingestErr.Detail != "" {
		detail = ingestErr.Detail
	}

	switch {
	case errors.Is(err, pipeline.ErrUnknownUser):
		// 密钥校验在中间件完成，这里的用户解析失败属于基础设施故障
		return consts.StatusInternalServerError, "Failed to upload resume"
	case errors.Is(err, pipeline.ErrUnsupportedMedia):
		return consts.StatusUnsupportedMediaType, detail
	case errors.Is(err, pipeline.ErrExtractionFailed):
		return consts.StatusUnprocessableEntity, detail
	case errors.Is(err, pipeline.ErrUploadFailed):
		return consts.StatusBadGateway, "Failed to upload file to cloud storage"
	case errors.Is(err, pipeline.ErrPersistenceFailed):
		return consts.StatusInternalServerError, "Failed to save resume to database"
	default:
		return consts.StatusInternalServerError, "Failed to upload resume"
	}
}
