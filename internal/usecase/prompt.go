package usecase

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"kbrag/internal/domain"
)

//go:embed prompt_context.tmpl
var promptContextTemplate string

var promptContext = template.Must(template.New("context").Funcs(template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"inc":     func(i int) int { return i + 1 },
	"trim":    strings.TrimSpace,
}).Parse(promptContextTemplate))

// BuildPromptContext renders retrieval results as the reference block of a
// chat prompt. No results render as an empty string.
func BuildPromptContext(results []domain.RetrievalResult) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	var sb strings.Builder
	if err := promptContext.Execute(&sb, results); err != nil {
		return "", fmt.Errorf("failed to render prompt context: %w", err)
	}
	return sb.String(), nil
}
