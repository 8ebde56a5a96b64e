package report

import (
	"cmp"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"bunseki/pkg/schema"
	"bunseki/pkg/utils"
)

const (
	cliQuoteLimit    = 3
	cliEvidenceRunes = 50
)

var (
	ruleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	nameStyle    = lipgloss.NewStyle().Bold(true)
)

// PrintCLI writes a human-readable summary of b to w.
func PrintCLI(w io.Writer, b schema.Batch) {
	stats := Summarize(b)
	rule := ruleStyle.Render(strings.Repeat("=", 60))

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, headingStyle.Render("日本語テキスト解析結果"))
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("登場人物:"))
	for _, c := range b.Characters {
		fmt.Fprintf(w, "  • %s\n", nameStyle.Render(c.Name))
		if c.Gender != "" && c.Gender != schema.GenderUnknown {
			fmt.Fprintf(w, "    性別: %s\n", c.Gender)
		}
		if c.Age != "" {
			fmt.Fprintf(w, "    年齢: %s\n", c.Age)
		}
		if c.Occupation != "" {
			fmt.Fprintf(w, "    職業: %s\n", c.Occupation)
		}
		if c.Personality != "" {
			fmt.Fprintf(w, "    性格: %s\n", c.Personality)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("感情分析:"))
	for _, t := range byCount(stats.EmotionTypes) {
		fmt.Fprintf(w, "  • %s: %d回\n", t, stats.EmotionTypes[t])
	}
	if len(b.Emotions) > 0 {
		fmt.Fprintln(w, "\n  代表的な感情表現:")
		for i, e := range b.Emotions[:min(cliQuoteLimit, len(b.Emotions))] {
			fmt.Fprintf(w, "  %d. %sの%s\n", i+1, e.Subject, e.EmotionType)
			fmt.Fprintf(w, "     「%s」\n", e.Quote)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("人物関係:"))
	for _, r := range b.Relationships {
		fmt.Fprintf(w, "  • %s %s %s: %s\n", r.Person1, arrow(r.Direction), r.Person2, r.RelationType)
		if r.Evidence != "" {
			fmt.Fprintf(w, "    根拠: 「%s」\n", utils.LimitStr(r.Evidence, cliEvidenceRunes))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("統計サマリー:"))
	fmt.Fprintf(w, "  • 登場人物数: %d人\n", stats.TotalCharacters)
	fmt.Fprintf(w, "  • 感情表現数: %d個\n", stats.TotalEmotions)
	fmt.Fprintf(w, "  • 関係性数: %d個\n", stats.TotalRelationships)
	fmt.Fprintf(w, "  • 感情を持つ人物数: %d人\n", stats.CharactersWithEmotions)

	if jp := AnalyzeJapanese(b); len(jp.FirstPersonPronouns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headingStyle.Render("日本語特有の要素:"))
		fmt.Fprintf(w, "  • 一人称: %s\n", strings.Join(jp.FirstPersonPronouns, ", "))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, rule)
}

// byCount orders keys by descending count, then by key.
func byCount(m map[string]int) []string {
	keys := slices.Collect(maps.Keys(m))
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(m[b], m[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return keys
}
