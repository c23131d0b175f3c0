package analyzer // Gemini简历质量分析组件

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobgenius-go/internal/constants"
	"jobgenius-go/internal/logger"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Outcome 分析结果的产生方式
// 调用方据此判断报告是真实AI输出还是降级兜底
type Outcome string

const (
	OutcomeOK          Outcome = "ok"           // 模型返回且解析成功
	OutcomeDisabled    Outcome = "disabled"     // 未配置API密钥，功能关闭
	OutcomeCallFailed  Outcome = "call_failed"  // 模型调用失败，使用兜底报告
	OutcomeParseFailed Outcome = "parse_failed" // 模型输出无法解析为JSON
)

// Report 简历分析报告，字段与持久化的JSON保持一致
type Report struct {
	StrengthScore   int      `json:"strengthScore"`
	ATSScore        int      `json:"atsScore"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	SuggestedSkills []string `json:"suggestedSkills"`
	Recommendations []string `json:"recommendations"`
}

// Analysis 一次分析的完整结果
// Analyze永远返回可持久化的报告，降级路径通过Outcome区分
type Analysis struct {
	Report  *Report
	Outcome Outcome
	Raw     string // 模型原始输出，仅解析失败时保留用于排查
}

// textGenerator 文本生成的最小接口，便于测试注入
type textGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// geminiGenerator 基于google.golang.org/genai的默认实现
type geminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float32
}

func (g *geminiGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     &g.temperature,
		MaxOutputTokens: 4096,
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("调用Gemini生成内容失败: %w", err)
	}
	if resp == nil {
		return "", fmt.Errorf("Gemini返回了空响应")
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("Gemini响应中没有文本内容")
	}
	return text, nil
}

// Analyzer 简历质量分析器
// 所有失败路径都降级为兜底报告，绝不让AI故障阻断上传流程
type Analyzer struct {
	gen     textGenerator
	timeout time.Duration
	logger  zerolog.Logger
}

// Option 分析器配置选项
type Option func(*Analyzer)

// WithLogger 配置自定义日志记录器
func WithLogger(l zerolog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// withGenerator 注入自定义文本生成器，测试专用
func withGenerator(gen textGenerator) Option {
	return func(a *Analyzer) {
		a.gen = gen
	}
}

// New 创建分析器
// apiKey为空时返回禁用态的分析器，而不是错误
func New(ctx context.Context, apiKey, model string, temperature float32, timeout time.Duration, options ...Option) (*Analyzer, error) {
	a := &Analyzer{
		timeout: timeout,
		logger:  logger.With("analyzer"),
	}
	if a.timeout <= 0 {
		a.timeout = constants.DefaultAnalyzeTimeout
	}

	for _, option := range options {
		option(a)
	}

	if a.gen == nil && apiKey != "" {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("创建Gemini客户端失败: %w", err)
		}
		a.gen = &geminiGenerator{
			client:      client,
			model:       model,
			temperature: temperature,
		}
	}

	if a.gen == nil {
		a.logger.Warn().Msg("GEMINI_API_KEY is not configured - AI analysis disabled")
	}

	return a, nil
}

// Enabled 报告分析器是否配置了可用的生成器
func (a *Analyzer) Enabled() bool {
	return a.gen != nil
}

const analysisPromptTemplate = `You are an expert career coach and resume analyst. Analyze the following resume and provide:

1. Overall strength score (0-100)
2. Key strengths (list 3-5 points)
3. Areas for improvement (list 3-5 points)
4. Suggested skills to add
5. ATS (Applicant Tracking System) compatibility score
6. Industry-specific recommendations

Resume content:
%s

Provide the response in JSON format with these keys: strengthScore, strengths, improvements, suggestedSkills, atsScore, recommendations`

// Analyze 对简历文本执行AI质量分析
// 永远返回非nil的Analysis，失败时报告降级并在Outcome中标注原因
func (a *Analyzer) Analyze(ctx context.Context, resumeText string) *Analysis {
	if a.gen == nil {
		return &Analysis{
			Report:  disabledReport(),
			Outcome: OutcomeDisabled,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.gen.GenerateText(ctx, fmt.Sprintf(analysisPromptTemplate, resumeText))
	if err != nil {
		a.logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("AI analysis call failed, using fallback report")
		return &Analysis{
			Report:  fallbackReport(),
			Outcome: OutcomeCallFailed,
		}
	}

	report, parseErr := parseReport(raw)
	if parseErr != nil {
		a.logger.Warn().Err(parseErr).Msg("AI analysis output not parseable, using fallback report")
		fb := fallbackReport()
		fb.Improvements = append(fb.Improvements, "AI response could not be structured - try re-uploading for a fresh analysis")
		return &Analysis{
			Report:  fb,
			Outcome: OutcomeParseFailed,
			Raw:     raw,
		}
	}

	a.logger.Info().
		Int("strength_score", report.StrengthScore).
		Int("ats_score", report.ATSScore).
		Int("improvements", len(report.Improvements)).
		Dur("duration", time.Since(start)).
		Msg("AI analysis completed")

	return &Analysis{
		Report:  report,
		Outcome: OutcomeOK,
	}
}

// disabledReport 未配置API密钥时的占位报告
func disabledReport() *Report {
	return &Report{
		StrengthScore:   0,
		ATSScore:        0,
		Strengths:       []string{},
		Improvements:    []string{"AI analysis unavailable - API key not configured"},
		SuggestedSkills: []string{},
		Recommendations: []string{},
	}
}

// fallbackReport 面向学生和初级求职者的通用兜底报告
func fallbackReport() *Report {
	return &Report{
		StrengthScore: constants.DefaultFallbackScore,
		ATSScore:      constants.DefaultFallbackScore,
		Strengths: []string{
			"Resume uploaded successfully",
			"Document is readable and well-formatted",
			"Good start for an entry-level resume",
		},
		Improvements: []string{
			`Add quantifiable achievements (e.g., "Led team of 5 students")`,
			"Include relevant coursework or academic projects",
			"Add technical skills relevant to your target role",
			"Consider adding links to GitHub or portfolio",
			`Use action verbs (e.g., "Developed", "Implemented", "Led")`,
		},
		SuggestedSkills: []string{
			"Python", "JavaScript", "Git", "React", "SQL",
			"Communication", "Teamwork", "Problem Solving",
		},
		Recommendations: []string{
			"For students: Academic projects count as experience!",
			"Add your GPA if it's above 3.0",
			"Include relevant coursework for your field",
			"Join GitHub and showcase your projects",
			"Consider free certifications (Coursera, Google, AWS)",
		},
	}
}

// parseReport 从模型输出中提取并解析JSON报告
// 容忍markdown代码围栏和JSON前后的多余文本
func parseReport(raw string) (*Report, error) {
	span := extractJSONSpan(cleanJSONFence(raw))
	if span == "" {
		return nil, fmt.Errorf("模型输出中未找到JSON对象")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(span), &fields); err != nil {
		return nil, fmt.Errorf("解析模型输出JSON失败: %w", err)
	}

	report := &Report{
		StrengthScore:   clampScore(parseScore(fields["strengthScore"])),
		ATSScore:        clampScore(parseScore(fields["atsScore"])),
		Strengths:       parseStringList(fields["strengths"]),
		Improvements:    parseStringList(fields["improvements"]),
		SuggestedSkills: parseStringList(fields["suggestedSkills"]),
		Recommendations: parseStringList(fields["recommendations"]),
	}

	return report, nil
}

// cleanJSONFence 剥离markdown代码围栏
func cleanJSONFence(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")

	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}

// extractJSONSpan 取首个{到末尾}之间的片段
func extractJSONSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// parseScore 宽容地解析分数字段，支持数值和带引号的数字
func parseScore(raw json.RawMessage) int {
	if raw == nil {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int(f)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, convErr := strconv.Atoi(strings.TrimSpace(s)); convErr == nil {
			return n
		}
	}

	return 0
}

// clampScore 将分数约束在[0,100]区间
func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// parseStringList 宽容地解析字符串列表，单个字符串也接受
// 返回值永远非nil，便于直接序列化
func parseStringList(raw json.RawMessage) []string {
	if raw == nil {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			return []string{}
		}
		return list
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}
	}

	return []string{}
}
