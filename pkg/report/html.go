package report

import (
	"html/template"
	"io"
	"os"

	"bunseki/pkg/schema"
)

// htmlEmotionLimit caps the emotions listed in report.html.
const htmlEmotionLimit = 10

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"arrow": arrow,
	"known": func(g schema.Gender) bool { return g != "" && g != schema.GenderUnknown },
}).Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<title>{{.Work}} 解析結果</title>
<style>
body { font-family: 'Hiragino Sans', 'Meiryo', sans-serif; line-height: 1.6; max-width: 1200px; margin: 0 auto; padding: 20px; background: #f5f5f5; }
.container { background: #fff; padding: 30px; border-radius: 10px; box-shadow: 0 2px 10px rgba(0,0,0,0.1); }
h1 { color: #333; border-bottom: 3px solid #4caf50; padding-bottom: 10px; }
h2 { color: #4caf50; margin-top: 30px; }
.character, .emotion, .relationship { padding: 10px; margin: 10px 0; border-radius: 5px; }
.character { background: #e3f2fd; }
.emotion { background: #fff3e0; }
.relationship { background: #f3e5f5; }
.stats { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 20px; margin: 20px 0; }
.stat-card { background: #f0f0f0; padding: 15px; border-radius: 5px; text-align: center; }
.stat-number { font-size: 2em; font-weight: bold; color: #4caf50; }
.quote { font-style: italic; color: #666; padding-left: 20px; border-left: 3px solid #ddd; }
</style>
</head>
<body>
<div class="container">
<h1>{{.Work}} 解析結果</h1>

<h2>統計サマリー</h2>
<div class="stats">
<div class="stat-card"><div class="stat-number">{{.Summary.TotalCharacters}}</div><div>登場人物数</div></div>
<div class="stat-card"><div class="stat-number">{{.Summary.TotalEmotions}}</div><div>感情表現数</div></div>
<div class="stat-card"><div class="stat-number">{{.Summary.TotalRelationships}}</div><div>関係性数</div></div>
<div class="stat-card"><div class="stat-number">{{.Summary.CharactersWithEmotions}}</div><div>感情を持つ人物数</div></div>
</div>

<h2>登場人物</h2>
{{range .Characters}}<div class="character">
<strong>{{.Name}}</strong>
{{if known .Gender}}<br>性別: {{.Gender}}{{end}}
{{with .Age}}<br>年齢: {{.}}{{end}}
{{with .Occupation}}<br>職業: {{.}}{{end}}
{{with .Personality}}<br>性格: {{.}}{{end}}
</div>
{{end}}
<h2>感情分析</h2>
{{range .Emotions}}<div class="emotion">
<strong>{{.Subject}}の{{.EmotionType}}</strong>（強度: {{.Intensity}}）
<div class="quote">「{{.Quote}}」</div>
</div>
{{end}}
<h2>人物関係</h2>
{{range .Relationships}}<div class="relationship">
<strong>{{.Person1}} {{arrow .Direction}} {{.Person2}}</strong>: {{.RelationType}}
{{with .Evidence}}<div class="quote">根拠: 「{{.}}」</div>{{end}}
</div>
{{end}}
</div>
</body>
</html>
`))

type htmlData struct {
	Work          string
	Summary       Summary
	Characters    []schema.Character
	Emotions      []schema.Emotion
	Relationships []schema.Relationship
}

// WriteHTML renders the HTML report of b to w.
func WriteHTML(w io.Writer, work string, b schema.Batch) error {
	emotions := b.Emotions
	if len(emotions) > htmlEmotionLimit {
		emotions = emotions[:htmlEmotionLimit]
	}
	return reportTemplate.Execute(w, htmlData{
		Work:          work,
		Summary:       Summarize(b),
		Characters:    b.Characters,
		Emotions:      emotions,
		Relationships: b.Relationships,
	})
}

func writeHTML(path, work string, b schema.Batch) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteHTML(f, work, b); err != nil {
		return err
	}
	return f.Close()
}

func arrow(d schema.Direction) string {
	if d == schema.Mutual {
		return "↔"
	}
	return "→"
}
