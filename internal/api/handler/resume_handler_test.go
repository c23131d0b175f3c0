package handler

import (
	"fmt"
	"testing"
	"time"

	"jobgenius-go/internal/pipeline"
	"jobgenius-go/internal/storage/models"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

// TestStatusForIngestError 摄取错误到HTTP状态码的映射
func TestStatusForIngestError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedInMsg  string
	}{
		{
			name:           "用户解析失败映射到500",
			err:            pipeline.NewUnknownUserError("ext-1", "connection refused"),
			expectedStatus: consts.StatusInternalServerError,
			expectedInMsg:  "Failed to upload resume",
		},
		{
			name:           "不支持的类型映射到415并透出详情",
			err:            pipeline.NewUnsupportedMediaError("ext-1", "Unsupported file type: image/png. Only PDF and Word documents are supported."),
			expectedStatus: consts.StatusUnsupportedMediaType,
			expectedInMsg:  "image/png",
		},
		{
			name:           "提取失败映射到422并透出详情",
			err:            pipeline.NewExtractionError("ext-1", "Document appears to be empty or contains very little text. Please upload a complete resume."),
			expectedStatus: consts.StatusUnprocessableEntity,
			expectedInMsg:  "very little text",
		},
		{
			name:           "上传失败映射到502",
			err:            pipeline.NewUploadError("ext-1", "minio unavailable"),
			expectedStatus: consts.StatusBadGateway,
			expectedInMsg:  "cloud storage",
		},
		{
			name:           "落库失败映射到500",
			err:            pipeline.NewPersistenceError("ext-1", "deadlock"),
			expectedStatus: consts.StatusInternalServerError,
			expectedInMsg:  "database",
		},
		{
			name:           "未知错误映射到500",
			err:            fmt.Errorf("something else"),
			expectedStatus: consts.StatusInternalServerError,
			expectedInMsg:  "Failed to upload resume",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusForIngestError(tt.err)
			assert.Equal(t, tt.expectedStatus, status)
			assert.Contains(t, msg, tt.expectedInMsg)
		})
	}
}

// TestToResumeResponse 模型到对外表示的转换
func TestToResumeResponse(t *testing.T) {
	resume := &models.Resume{
		ResumeID:      "r-1",
		UserID:        "u-1",
		FileName:      "resume.pdf",
		FileURL:       "https://minio.local/presigned/r-1",
		ObjectKey:     "jobgenius/resumes/r-1/resume.pdf",
		FileSize:      1024,
		MimeType:      "application/pdf",
		ParsedContent: "education skills experience",
		Analysis:      datatypes.JSON(`{"strengthScore":82}`),
		StrengthScore: 82,
		ATSScore:      75,
		Suggestions:   datatypes.JSON(`["add metrics"]`),
		IsPrimary:     true,
		CreatedAt:     time.Now(),
	}

	detail := toResumeResponse(resume, true)
	assert.Equal(t, "r-1", detail.ID)
	assert.Equal(t, 82, detail.StrengthScore)
	assert.Equal(t, "education skills experience", detail.ParsedContent)
	assert.NotNil(t, detail.Analysis)

	listItem := toResumeResponse(resume, false)
	assert.Empty(t, listItem.ParsedContent, "列表表示不应携带解析文本")
	assert.Equal(t, detail.ID, listItem.ID)
}

// TestToResumeResponseEmptyJSON 空的JSON列应序列化为null而不是空字节
func TestToResumeResponseEmptyJSON(t *testing.T) {
	resume := &models.Resume{ResumeID: "r-2"}

	resp := toResumeResponse(resume, false)

	assert.Nil(t, resp.Analysis)
	assert.Nil(t, resp.Suggestions)
}

// TestOwnerFromContext 鉴权中间件写入的用户标识读取
func TestOwnerFromContext(t *testing.T) {
	c := app.NewContext(16)

	_, ok := ownerFromContext(c)
	assert.False(t, ok, "未鉴权的上下文不应返回用户标识")

	c.Set(OwnerContextKey, "ext-42")
	owner, ok := ownerFromContext(c)
	require.True(t, ok)
	assert.Equal(t, "ext-42", owner)

	c2 := app.NewContext(16)
	c2.Set(OwnerContextKey, "")
	_, ok = ownerFromContext(c2)
	assert.False(t, ok, "空的用户标识应视为未鉴权")
}
