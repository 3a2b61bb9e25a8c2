package points

import (
	"strconv"
	"strings"
)

// TemplateFields are the values substituted into notification templates.
type TemplateFields struct {
	AuthorName      string
	AwardeeUsername string
	Permalink       string
	Score           int64
	Threshold       int64
	PointsCommand   string
}

// RenderTemplate fills the {{placeholders}} of a notification template.
// User names are escaped so they render literally.
func RenderTemplate(template string, f TemplateFields) string {
	r := strings.NewReplacer(
		"{{authorname}}", EscapeMarkdown(f.AuthorName),
		"{{awardeeusername}}", EscapeMarkdown(f.AwardeeUsername),
		"{{permalink}}", f.Permalink,
		"{{score}}", strconv.FormatInt(f.Score, 10),
		"{{threshold}}", strconv.FormatInt(f.Threshold, 10),
		"{{pointscommand}}", f.PointsCommand,
	)
	return r.Replace(template)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"~", `\~`,
	"`", "\\`",
	"|", `\|`,
	">", `\>`,
	"#", `\#`,
	"[", `\[`,
	"]", `\]`,
	"(", `\(`,
	")", `\)`,
)

// EscapeMarkdown escapes characters Discord treats as formatting.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
