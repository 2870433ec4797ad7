package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fpang/transcript-insight/internal/chat"
)

// ContentMarkdown renders the style guide.
func ContentMarkdown(title string, g chat.ContentGuidelines) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	b.WriteString("## Hooks\n")
	fmt.Fprintf(&b, "**Target Duration:** ~%.0f seconds\n\n", float64(g.AvgHookDuration))
	section(&b, "### Hook Patterns", g.HookPatterns)

	b.WriteString("## Video Structure\n")
	fmt.Fprintf(&b, "**Typical Sections:** %.0f\n\n", float64(g.TypicalSectionCount))
	section(&b, "### Intro Techniques", g.CommonIntroTechniques)
	section(&b, "### Outro Techniques", g.CommonOutroTechniques)

	b.WriteString("## Pacing\n")
	fmt.Fprintf(&b, "**Target WPM:** ~%.0f\n\n", float64(g.AvgWordsPerMinute))
	section(&b, "### Guidelines", g.PacingGuidelines)

	b.WriteString("## Engagement Techniques\n\n")
	section(&b, "### Humor", g.HumorTechniques)
	section(&b, "### Analogies", g.AnalogyPatterns)

	section(&b, "## Voice & Tone", g.ToneCharacteristics)
	section(&b, "### Vocabulary Notes", g.VocabularyNotes)

	b.WriteString("## Technical Content\n\n")
	section(&b, "### Code Explanation", g.CodeExplanationPatterns)
	section(&b, "### Simplification Techniques", g.SimplificationTechniques)

	numbered(&b, "## Key Takeaways", g.KeyTakeaways)
	return b.String()
}

// StartupsMarkdown renders the pitch summary, followed by a table of every
// extracted startup.
func StartupsMarkdown(title string, g chat.StartupGuidelines, startups []chat.Startup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)

	section(&b, "## Top Industries", g.TopIndustries)
	if g.TypicalAsks != "" {
		fmt.Fprintf(&b, "## Typical Asks\n%s\n\n", g.TypicalAsks)
	}
	section(&b, "## Deal Patterns", g.DealPatterns)

	if len(g.SharkPreferences) > 0 {
		b.WriteString("## Investor Preferences\n")
		names := make([]string, 0, len(g.SharkPreferences))
		for name := range g.SharkPreferences {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "- **%s:** %s\n", name, g.SharkPreferences[name])
		}
		b.WriteString("\n")
	}

	section(&b, "## Pitch Advice", g.PitchAdvice)
	numbered(&b, "## Key Takeaways", g.KeyTakeaways)

	if len(startups) > 0 {
		b.WriteString("## Startups\n\n")
		b.WriteString("| Episode | Name | Industry | Ask | Equity | Deal |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, s := range startups {
			deal := "no"
			if s.DealMade {
				deal = "yes"
				if len(s.Sharks) > 0 {
					deal += " (" + strings.Join(s.Sharks, ", ") + ")"
				}
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s |\n",
				episode(s.EpisodeNumber), cell(s.Name), cell(s.Industry),
				amount(s.AskAmount, " EGP"), amount(s.AskEquity, "%"), cell(deal))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func section(b *strings.Builder, heading string, items []string) {
	b.WriteString(heading + "\n")
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func numbered(b *strings.Builder, heading string, items []string) {
	b.WriteString(heading + "\n")
	for i, it := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, it)
	}
	b.WriteString("\n")
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

func episode(n int) string {
	if n <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}

func amount(f *float64, suffix string) string {
	if f == nil {
		return "-"
	}
	return formatNumber(*f) + suffix
}
