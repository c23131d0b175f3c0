package validator // 简历内容启发式校验，结果仅作提示，不阻断流程

import (
	"regexp"
	"strings"
)

// Sections 五个简历分区的命中情况
type Sections struct {
	HasContact    bool `json:"hasContact"`
	HasExperience bool `json:"hasExperience"`
	HasEducation  bool `json:"hasEducation"`
	HasSkills     bool `json:"hasSkills"`
	HasProjects   bool `json:"hasProjects"`
}

// Verdict 校验结论
// IsValid仅供参考，上传流程不会因为false而中断
type Verdict struct {
	IsValid  bool     `json:"isValid"`
	Warnings []string `json:"warnings"`
	Sections Sections `json:"sections"`
}

// 分区识别用的大小写不敏感正则，面向学生和初级求职者的宽松口径
var (
	contactPattern    = regexp.MustCompile(`(?i)email|phone|@|linkedin|github|contact`)
	experiencePattern = regexp.MustCompile(`(?i)experience|work|employment|position|role|job|company|intern`)
	educationPattern  = regexp.MustCompile(`(?i)education|university|college|degree|bachelor|master|school|gpa|major`)
	skillsPattern     = regexp.MustCompile(`(?i)skills|technologies|tools|expertise|proficient|languages|programming|technical`)
	projectsPattern   = regexp.MustCompile(`(?i)project|portfolio|github|built|developed|created|implemented`)
	portfolioPattern  = regexp.MustCompile(`(?i)github\.com|linkedin\.com|portfolio|behance|dribbble`)
)

// Validate 对提取出的简历文本做分区检查，返回建议性的校验结论
// 纯函数：相同输入必定产生相同输出
func Validate(text string) *Verdict {
	warnings := make([]string, 0, 6)
	lowerText := strings.ToLower(text)

	sections := Sections{
		HasContact:    contactPattern.MatchString(text),
		HasExperience: experiencePattern.MatchString(text),
		HasEducation:  educationPattern.MatchString(text),
		HasSkills:     skillsPattern.MatchString(text),
		HasProjects:   projectsPattern.MatchString(text),
	}

	// 学生/初级候选人：项目经历可替代正式工作经历
	hasRelevantExperience := sections.HasExperience || sections.HasProjects

	if !sections.HasContact {
		warnings = append(warnings, "Consider adding contact information (email, phone, LinkedIn)")
	}
	if !sections.HasExperience && !sections.HasProjects {
		warnings = append(warnings, "Add work experience, internships, or personal/academic projects to showcase your abilities")
	}
	if !sections.HasEducation {
		warnings = append(warnings, "Include your education details (degree, major, GPA if above 3.0)")
	}
	if !sections.HasSkills {
		warnings = append(warnings, "Add a skills section to highlight your technical and soft skills")
	}

	if !sections.HasProjects && !sections.HasExperience && strings.Contains(lowerText, "student") {
		warnings = append(warnings, "TIP: Academic projects, hackathons, and personal projects are valuable for your resume")
	}

	if !portfolioPattern.MatchString(text) {
		warnings = append(warnings, "TIP: Add links to your GitHub, LinkedIn, or portfolio to stand out")
	}

	// 有效性口径：教育经历 + (工作/项目 或 技能)
	isValid := sections.HasEducation && (hasRelevantExperience || sections.HasSkills)
	if !isValid {
		warnings = append(warnings, "Your resume should include: Education + (Experience/Projects OR Skills). Don't worry - as a student or entry-level candidate, academic projects and coursework are valuable!")
	}

	return &Verdict{
		IsValid:  isValid,
		Warnings: warnings,
		Sections: sections,
	}
}
