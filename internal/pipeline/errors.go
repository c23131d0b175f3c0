package pipeline

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrUnknownUser       = errors.New("解析用户失败")
	ErrUnsupportedMedia  = errors.New("不支持的文件类型")
	ErrExtractionFailed  = errors.New("提取简历文本失败")
	ErrUploadFailed      = errors.New("上传简历文件失败")
	ErrPersistenceFailed = errors.New("保存简历记录失败")
)

// IngestError 包含详细错误信息的自定义错误
type IngestError struct {
	Owner   string // 外部用户标识
	Op      string
	BaseErr error
	Detail  string
}

func (e *IngestError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 用户:%s): %s", e.BaseErr, e.Op, e.Owner, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 用户:%s)", e.BaseErr, e.Op, e.Owner)
}

func (e *IngestError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *IngestError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewUnknownUserError(owner, detail string) error {
	return &IngestError{
		Owner:   owner,
		Op:      "resolve_user",
		BaseErr: ErrUnknownUser,
		Detail:  detail,
	}
}

func NewExtractionError(owner, detail string) error {
	return &IngestError{
		Owner:   owner,
		Op:      "extract",
		BaseErr: ErrExtractionFailed,
		Detail:  detail,
	}
}

func NewUnsupportedMediaError(owner, detail string) error {
	return &IngestError{
		Owner:   owner,
		Op:      "extract",
		BaseErr: ErrUnsupportedMedia,
		Detail:  detail,
	}
}

func NewUploadError(owner, detail string) error {
	return &IngestError{
		Owner:   owner,
		Op:      "upload",
		BaseErr: ErrUploadFailed,
		Detail:  detail,
	}
}

func NewPersistenceError(owner, detail string) error {
	return &IngestError{
		Owner:   owner,
		Op:      "persist",
		BaseErr: ErrPersistenceFailed,
		Detail:  detail,
	}
}
