// Package aozora fetches public-domain works from Aozora Bunko and strips
// their markup down to plain body text.
package aozora

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownWork is returned for a title outside the catalog.
var ErrUnknownWork = errors.New("unknown work")

type Work struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	URL    string `json:"url"`
}

// Works is the closed catalog, in display order.
var Works = []Work{
	{Title: "羅生門", Author: "芥川龍之介", URL: "https://www.aozora.gr.jp/cards/000879/files/127_15260.html"},
	{Title: "坊っちゃん", Author: "夏目漱石", URL: "https://www.aozora.gr.jp/cards/000148/files/752_14964.html"},
	{Title: "走れメロス", Author: "太宰治", URL: "https://www.aozora.gr.jp/cards/000035/files/1567_14913.html"},
	{Title: "銀河鉄道の夜", Author: "宮沢賢治", URL: "https://www.aozora.gr.jp/cards/000081/files/456_15050.html"},
}

// DefaultWork is used when no title is given.
const DefaultWork = "羅生門"

func Titles() []string {
	out := make([]string, len(Works))
	for i, w := range Works {
		out[i] = w.Title
	}
	return out
}

func Lookup(title string) (Work, error) {
	title = strings.TrimSpace(title)
	for _, w := range Works {
		if w.Title == title {
			return w, nil
		}
	}
	return Work{}, fmt.Errorf("%w: %q (available: %s)", ErrUnknownWork, title, strings.Join(Titles(), ", "))
}
