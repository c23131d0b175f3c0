package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"jobgenius-go/internal/config"
	"jobgenius-go/internal/constants"
	"jobgenius-go/internal/logger"

	"github.com/gofrs/uuid/v5"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// UploadResult 一次对象上传的产物
// ObjectKey是后续删除该对象的唯一凭据，URL是预签名的下载地址
type UploadResult struct {
	ObjectKey string
	URL       string
}

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// UploadResumeFile 上传简历原始文件，返回对象键和预签名URL
	UploadResumeFile(ctx context.Context, fileName string, data []byte, mimeType string) (*UploadResult, error)

	// GetPresignedURL 为已有对象重新生成预签名URL
	GetPresignedURL(ctx context.Context, objectKey string) (string, error)

	// DeleteFile 按对象键删除文件
	DeleteFile(ctx context.Context, objectKey string) error
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client *minio.Client
	cfg    *config.MinIOConfig
	bucket string
	expiry time.Duration
	logger zerolog.Logger
}

// NewMinIO 创建MinIO客户端并确保存储桶存在
func NewMinIO(cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	expiry := time.Duration(cfg.PresignedExpiryHours) * time.Hour
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}

	m := &MinIO{
		client: client,
		cfg:    cfg,
		bucket: cfg.BucketName,
		expiry: expiry,
		logger: logger.With("minio"),
	}

	if err := m.ensureBucketExists(cfg.BucketName, cfg.Location); err != nil {
		return nil, fmt.Errorf("确保存储桶 %s 存在失败: %w", cfg.BucketName, err)
	}

	m.logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.BucketName).Msg("MinIO client initialized")
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Info().Str("bucket", bucketName).Msg("bucket created")
	}
	return nil
}

// UploadResumeFile 上传简历原始文件
// 对象键形如 jobgenius/resumes/<uuid>/<fileName>，UUID保证同名文件互不覆盖
func (m *MinIO) UploadResumeFile(ctx context.Context, fileName string, data []byte, mimeType string) (*UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DefaultUploadTimeout)
	defer cancel()

	folderUUID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("生成对象键UUID失败: %w", err)
	}

	objectKey := path.Join(constants.ResumeObjectPrefix, constants.ResumeFolder, folderUUID.String(), sanitizeFileName(fileName))
	contentType := mimeType
	if contentType == "" {
		contentType = getContentType(path.Ext(fileName))
	}

	info, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("上传对象 %s/%s 失败: %w", m.bucket, objectKey, err)
	}

	url, err := m.GetPresignedURL(ctx, objectKey)
	if err != nil {
		// 上传已经落盘，拿不到URL时回收对象避免孤儿
		if delErr := m.DeleteFile(ctx, objectKey); delErr != nil {
			m.logger.Error().Err(delErr).Str("object_key", objectKey).Msg("failed to clean up object after presign failure")
		}
		return nil, err
	}

	m.logger.Debug().
		Str("object_key", objectKey).
		Int64("size", info.Size).
		Str("etag", info.ETag).
		Msg("resume file uploaded")

	return &UploadResult{ObjectKey: objectKey, URL: url}, nil
}

// GetPresignedURL 生成预签名下载URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectKey string) (string, error) {
	presignedURL, err := m.client.PresignedGetObject(ctx, m.bucket, objectKey, m.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteFile 按对象键删除文件
func (m *MinIO) DeleteFile(ctx context.Context, objectKey string) error {
	err := m.client.RemoveObject(ctx, m.bucket, objectKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectKey, err)
	}
	m.logger.Debug().Str("object_key", objectKey).Msg("object deleted")
	return nil
}

// sanitizeFileName 剔除文件名中可能破坏对象键的路径成分
func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return "resume"
	}
	return name
}

// getContentType 根据扩展名推断内容类型
func getContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".pdf":
		return constants.MimePDF
	case ".doc":
		return constants.MimeDoc
	case ".docx":
		return constants.MimeDocx
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
