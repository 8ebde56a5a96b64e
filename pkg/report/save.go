package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"bunseki/pkg/extractor"
	"bunseki/pkg/schema"
	"bunseki/pkg/utils"
)

const (
	ResultsFile       = "extraction_results.json"
	CharactersFile    = "characters.csv"
	EmotionsFile      = "emotions.csv"
	RelationshipsFile = "relationships.csv"
	HTMLFile          = "report.html"
)

// Results is the layout of extraction_results.json.
type Results struct {
	WorkName         string                `json:"work_name"`
	Characters       []schema.Character    `json:"characters"`
	Emotions         []schema.Emotion      `json:"emotions"`
	Relationships    []schema.Relationship `json:"relationships"`
	Summary          Summary               `json:"summary"`
	JapaneseAnalysis JapaneseAnalysis      `json:"japanese_analysis"`
	Run              *extractor.Report     `json:"run,omitempty"`
}

func (r Results) Batch() schema.Batch {
	return schema.Batch{
		Characters:    r.Characters,
		Emotions:      r.Emotions,
		Relationships: r.Relationships,
	}
}

// Saved lists what Save wrote. Files are relative to Dir.
type Saved struct {
	Dir   string
	Files []string
}

// SanitizeTitle makes a work title safe to use as a directory name.
func SanitizeTitle(title string) string {
	return utils.SanitizeFilename(title)
}

// WorkDir is the directory a work's results live in under root.
func WorkDir(root, work string) string {
	return filepath.Join(root, SanitizeTitle(work))
}

// Save writes the results of one run under root/<sanitized work>. CSV files
// are only written for non-empty lists.
func Save(root, work string, b schema.Batch, run *extractor.Report) (Saved, error) {
	saved := Saved{Dir: WorkDir(root, work)}
	if err := os.MkdirAll(saved.Dir, 0o755); err != nil {
		return saved, fmt.Errorf("creating %s: %w", saved.Dir, err)
	}

	results := Results{
		WorkName:         work,
		Characters:       nonNil(b.Characters),
		Emotions:         nonNil(b.Emotions),
		Relationships:    nonNil(b.Relationships),
		Summary:          Summarize(b),
		JapaneseAnalysis: AnalyzeJapanese(b),
		Run:              run,
	}
	if err := utils.Save(filepath.Join(saved.Dir, ResultsFile), results); err != nil {
		return saved, fmt.Errorf("writing %s: %w", ResultsFile, err)
	}
	saved.Files = append(saved.Files, ResultsFile)

	tables := []struct {
		name string
		rows [][]string
	}{
		{CharactersFile, characterRows(b.Characters)},
		{EmotionsFile, emotionRows(b.Emotions)},
		{RelationshipsFile, relationshipRows(b.Relationships)},
	}
	for _, t := range tables {
		if len(t.rows) < 2 {
			continue
		}
		if err := writeCSV(filepath.Join(saved.Dir, t.name), t.rows); err != nil {
			return saved, fmt.Errorf("writing %s: %w", t.name, err)
		}
		saved.Files = append(saved.Files, t.name)
	}

	if err := writeHTML(filepath.Join(saved.Dir, HTMLFile), work, b); err != nil {
		return saved, fmt.Errorf("writing %s: %w", HTMLFile, err)
	}
	saved.Files = append(saved.Files, HTMLFile)

	log.Info("saved results", "dir", saved.Dir, "files", len(saved.Files))
	return saved, nil
}

// LoadPrevious reads the results a previous run left for work. The bool is
// false when there are none.
func LoadPrevious(root, work string) (Results, bool, error) {
	path := filepath.Join(WorkDir(root, work), ResultsFile)
	if !utils.Exists(path) {
		return Results{}, false, nil
	}
	r, err := utils.Load[Results](path)
	if err != nil {
		return Results{}, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return r, true, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func characterRows(cs []schema.Character) [][]string {
	rows := [][]string{{"name", "gender", "age", "occupation", "appearance", "personality"}}
	for _, c := range cs {
		rows = append(rows, []string{c.Name, string(c.Gender), c.Age, c.Occupation, c.Appearance, c.Personality})
	}
	return rows
}

func emotionRows(es []schema.Emotion) [][]string {
	rows := [][]string{{"emotion_type", "subject", "target", "intensity", "quote"}}
	for _, e := range es {
		rows = append(rows, []string{e.EmotionType, e.Subject, e.Target, string(e.Intensity), e.Quote})
	}
	return rows
}

func relationshipRows(rs []schema.Relationship) [][]string {
	rows := [][]string{{"person1", "person2", "relation_type", "direction", "evidence"}}
	for _, r := range rs {
		rows = append(rows, []string{r.Person1, r.Person2, r.RelationType, string(r.Direction), r.Evidence})
	}
	return rows
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
