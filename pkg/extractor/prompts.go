package extractor

import (
	"bunseki/pkg/extraction"
	"bunseki/pkg/schema"
)

// Prompt is the task description and few-shot examples for one record kind.
type Prompt struct {
	Description string
	Examples    []extraction.Example
}

const characterPrompt = `あなたは日本の近代文学に詳しい編集者です。与えられた本文に登場する人物をすべて抽出してください。

各人物について次の属性を返してください:
- name: 本文中の呼び名（本名、愛称、あだ名を含む）
- gender: 男性 / 女性 / 不明 のいずれか
- age: 明記されていればその値、なければ 子供 / 若者 / 中年 / 老人 から推定
- occupation: 職業や身分
- appearance: 外見の描写
- personality: 行動や描写から読み取れる性格

規則:
- 「私」「僕」などの語り手も人物として扱う
- 同じ人物の別の呼び名は一人にまとめる
- 本文から推測した値には「推定」と書き添える`

const emotionPrompt = `本文に現れる感情表現を抽出してください。

各感情について次の属性を返してください:
- emotion_type: 感情の種類（喜び、悲しみ、怒り、恐れ、驚き、嫌悪、期待、信頼など）
- subject: 感情を抱いている人物
- target: 感情が向けられている対象（なければ省略）
- intensity: 弱い / 普通 / 強い のいずれか
- quote: 該当箇所の正確な引用

「〜そうだ」「〜らしい」のような間接的な表現、擬態語や擬音語、文末のニュアンスで示される感情も拾ってください。`

const relationshipPrompt = `登場人物どうしの関係を抽出してください。

各関係について次の属性を返してください:
- person1: 一人目の人物名
- person2: 二人目の人物名
- relation_type: 関係の種類（親子、兄弟、夫婦、友人、恋人、上司部下、師弟、同僚、敵対など）
- direction: 一方向 / 双方向 のいずれか
- evidence: 関係の根拠となる箇所の引用`

// DefaultPrompts are the built-in prompts keyed by record kind.
func DefaultPrompts() map[schema.Kind]Prompt {
	return map[schema.Kind]Prompt{
		schema.KindCharacter: {
			Description: characterPrompt,
			Examples: []extraction.Example{{
				Text: "私は猫である。名前はまだ無い。",
				Extractions: []extraction.Extraction{{
					Class: string(schema.KindCharacter),
					Text:  "私",
					Attributes: map[string]any{
						"name":        "私（猫）",
						"gender":      "不明",
						"age":         "不明",
						"occupation":  "なし（猫）",
						"appearance":  "猫",
						"personality": "観察眼が鋭く思索的",
					},
				}},
			}},
		},
		schema.KindEmotion: {
			Description: emotionPrompt,
			Examples: []extraction.Example{{
				Text: "メロスは激怒した。必ず、かの邪智暴虐の王を除かなければならぬと決意した。",
				Extractions: []extraction.Extraction{{
					Class: string(schema.KindEmotion),
					Text:  "メロスは激怒した",
					Attributes: map[string]any{
						"emotion_type": "怒り",
						"subject":      "メロス",
						"target":       "王",
						"intensity":    "強い",
					},
				}},
			}},
		},
		schema.KindRelationship: {
			Description: relationshipPrompt,
			Examples: []extraction.Example{{
				Text: "メロスには妹がいる。十六歳で、村の牧人と婚約していた。",
				Extractions: []extraction.Extraction{{
					Class: string(schema.KindRelationship),
					Text:  "メロスには妹がいる",
					Attributes: map[string]any{
						"person1":       "メロス",
						"person2":       "妹",
						"relation_type": "兄妹",
						"direction":     "双方向",
					},
				}},
			}},
		},
	}
}
