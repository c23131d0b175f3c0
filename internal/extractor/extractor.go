package extractor // 简历文本提取组件

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"jobgenius-go/internal/constants"
	"jobgenius-go/internal/logger"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog"
)

// Result 文本提取结果
// Error非空时调用方不得继续后续的校验和上传流程
type Result struct {
	Text      string // 规范化后的纯文本
	WordCount int    // 词数，非负
	PageCount int    // 页数，仅PDF可用，0表示未知
	Error     string // 提取失败原因，空串表示成功
}

// Extractor 将原始文件字节转换为纯文本
type Extractor struct {
	pdfParser *pdf.PDFParser
	minWords  int
	timeout   time.Duration
	logger    zerolog.Logger
}

// Option 提取器配置选项
type Option func(*Extractor)

// WithMinWordCount 覆盖最小词数阈值
func WithMinWordCount(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.minWords = n
		}
	}
}

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(e *Extractor) {
		e.logger = l
	}
}

// New 初始化文本提取器
// PDF解析按页返回，以便记录页数
func New(ctx context.Context, options ...Option) (*Extractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: true,
	})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	e := &Extractor{
		pdfParser: p,
		minWords:  constants.MinResumeWordCount,
		timeout:   constants.DefaultExtractTimeout,
		logger:    logger.With("extractor"),
	}

	for _, option := range options {
		option(e)
	}

	return e, nil
}

// Extract 根据声明的MIME类型提取文本
// 所有失败都通过Result.Error返回，不会产生Go error
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) *Result {
	start := time.Now()

	var rawText string
	var pageCount int
	var extractErr error

	switch mimeType {
	case constants.MimePDF:
		rawText, pageCount, extractErr = e.extractPDF(ctx, data)
		if extractErr != nil {
			e.logger.Warn().Err(extractErr).Msg("PDF extraction failed")
			return &Result{Error: fmt.Sprintf("Failed to parse PDF: %v", extractErr)}
		}
	case constants.MimeDoc, constants.MimeDocx:
		rawText, extractErr = e.extractWord(data)
		if extractErr != nil {
			e.logger.Warn().Err(extractErr).Msg("Word extraction failed")
			return &Result{Error: fmt.Sprintf("Failed to parse Word document: %v", extractErr)}
		}
	default:
		return &Result{Error: fmt.Sprintf("Unsupported file type: %s. Only PDF and Word documents are supported.", mimeType)}
	}

	res := e.buildResult(rawText, pageCount)

	e.logger.Debug().
		Str("mime_type", mimeType).
		Int("word_count", res.WordCount).
		Int("page_count", res.PageCount).
		Dur("duration", time.Since(start)).
		Bool("rejected", res.Error != "").
		Msg("document extraction finished")

	return res
}

// extractPDF 使用eino PDF解析器按页提取文本
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, int, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.pdfParser.Parse(ctx, bytes.NewReader(data),
		einoParser.WithURI("resume.pdf"),
	)
	if err != nil {
		return "", 0, err
	}
	if len(docs) == 0 {
		return "", 0, fmt.Errorf("PDF解析未返回任何内容")
	}

	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(doc.Content)
	}
	return sb.String(), len(docs), nil
}

// docxTagPattern 用于剥离docx文档内容中的XML标签
var docxTagPattern = regexp.MustCompile(`<[^>]+>`)

// extractWord 从Word文档(含旧版.doc的OOXML封装)提取文本
func (e *Extractor) extractWord(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer doc.Close()

	content := doc.Editable().GetContent()
	return docxTagPattern.ReplaceAllString(content, " "), nil
}

// buildResult 规范化文本、计算词数并应用低内容拒绝门槛
func (e *Extractor) buildResult(rawText string, pageCount int) *Result {
	text := normalizeWhitespace(rawText)
	wordCount := len(strings.Fields(text))

	res := &Result{
		Text:      text,
		WordCount: wordCount,
		PageCount: pageCount,
	}

	// 提取本身成功但内容过少，同样按提取失败处理
	if wordCount < e.minWords {
		res.Error = "Document appears to be empty or contains very little text. Please upload a complete resume."
	}

	return res
}

var (
	inlineSpacePattern = regexp.MustCompile(`[^\S\n]+`)
	blankLinePattern   = regexp.MustCompile(`\n\s*\n+`)
)

// normalizeWhitespace 将连续空白折叠为单个空格，空行折叠为单个换行
func normalizeWhitespace(s string) string {
	s = inlineSpacePattern.ReplaceAllString(s, " ")
	s = blankLinePattern.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
