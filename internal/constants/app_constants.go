package constants

import "time"

// 支持的简历文件MIME类型
const (
	MimePDF  = "application/pdf"
	MimeDoc  = "application/msword"
	MimeDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

const (
	// MinResumeWordCount 提取文本的最小词数，低于该值视为无效简历
	MinResumeWordCount = 20

	// MaxResumeFileBytes 上传文件大小上限 (5 MiB)
	MaxResumeFileBytes = 5 * 1024 * 1024

	// DefaultFallbackScore AI调用失败或解析失败时报告使用的默认分数
	DefaultFallbackScore = 50

	// DefaultPersistScore 入库时分数为零的兜底值
	DefaultPersistScore = 60
)

// 对象存储相关常量
const (
	ResumeObjectPrefix = "jobgenius" // 应用级对象前缀
	ResumeFolder       = "resumes"   // 简历文件所在逻辑目录
)

// Redis相关常量
const (
	RawFileMD5SetKey     = "resumes:file_md5s" // 已上传文件MD5集合
	RawFileMD5ExpireDays = 30
)

// 事件发布相关常量
const (
	ResumeEventsExchange     = "resume.events"
	ResumeIngestedRoutingKey = "resume.ingested"
	ResumeDeletedRoutingKey  = "resume.deleted"
)

// 外部调用默认超时
const (
	DefaultExtractTimeout = 30 * time.Second
	DefaultAnalyzeTimeout = 60 * time.Second
	DefaultUploadTimeout  = 30 * time.Second
)

// SupportedMimeTypes 返回允许上传的MIME类型集合
func SupportedMimeTypes() map[string]bool {
	return map[string]bool{
		MimePDF:  true,
		MimeDoc:  true,
		MimeDocx: true,
	}
}
