// Package assets provides embedded prompt templates.
//
// Templates are stored as text files under prompts/ and embedded at compile time.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
)

// ContentSystemPrompt frames per-video style analysis.
//
//go:embed prompts/content-system.txt
var ContentSystemPrompt string

// StartupsSystemPrompt frames pitch extraction from show episodes.
//
//go:embed prompts/startups-system.txt
var StartupsSystemPrompt string

//go:embed prompts/content-extract.txt
var contentExtractTemplate string

//go:embed prompts/content-aggregate.txt
var contentAggregateTemplate string

//go:embed prompts/startups-extract.txt
var startupsExtractTemplate string

//go:embed prompts/startups-aggregate.txt
var startupsAggregateTemplate string

// template.Must panics on malformed templates at program startup.
var (
	contentExtractTmpl    = template.Must(template.New("content-extract").Parse(contentExtractTemplate))
	contentAggregateTmpl  = template.Must(template.New("content-aggregate").Parse(contentAggregateTemplate))
	startupsExtractTmpl   = template.Must(template.New("startups-extract").Parse(startupsExtractTemplate))
	startupsAggregateTmpl = template.Must(template.New("startups-aggregate").Parse(startupsAggregateTemplate))
)

// ExtractData is the dynamic data injected into per-item extraction prompts.
type ExtractData struct {
	Title          string
	URL            string
	Duration       string
	WordsPerMinute float64
	HookSeconds    int
	Hook           string
	// Transcript is already truncated to the prompt budget.
	Transcript string
}

// AggregateData is the dynamic data injected into aggregation prompts.
type AggregateData struct {
	Count  int
	Digest string
}

// RenderContentExtract renders the per-video style analysis prompt.
func RenderContentExtract(d ExtractData) (string, error) {
	return render(contentExtractTmpl, d)
}

// RenderContentAggregate renders the style guide synthesis prompt.
func RenderContentAggregate(d AggregateData) (string, error) {
	return render(contentAggregateTmpl, d)
}

// RenderStartupsExtract renders the per-episode pitch extraction prompt.
func RenderStartupsExtract(d ExtractData) (string, error) {
	return render(startupsExtractTmpl, d)
}

// RenderStartupsAggregate renders the pitch summary prompt.
func RenderStartupsAggregate(d AggregateData) (string, error) {
	return render(startupsAggregateTmpl, d)
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
