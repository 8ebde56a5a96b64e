package aozora

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/encoding/japanese"

	"bunseki/pkg/config"
)

func TestNormalize_Rules(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bar ruby", "｜下人《げにん》が", "下人が"},
		{"plain ruby", "羅生門《らしょうもん》の下", "羅生門の下"},
		{"ruby annotation", "雨［＃「雨」に「あめ」のルビ］やみ", "雨やみ"},
		{"annotation", "ある日［＃「ある日」は底本では太字］の暮方", "ある日の暮方"},
		{"gaiji", "※［＃「木＋昜」、第3水準1-85-92］", "※"},
		{"crlf", "一行目\r\n二行目", "一行目\n二行目"},
		{"full-width spaces", "下人　　　が", "下人　が"},
		{"blank lines", "一\n\n\n\n二", "一\n\n二"},
		{"ascii spaces", "a    b", "a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_TrimsHeaderAndColophon(t *testing.T) {
	raw := strings.Join([]string{
		"羅生門",
		"芥川龍之介",
		"-------------------------------------------------------",
		"",
		"　ある日の暮方《くれがた》の事である。",
		"　一人の下人《げにん》が、羅生門の下で雨やみを待っていた。",
		"",
		"底本：「芥川龍之介全集1」ちくま文庫、筑摩書房",
	}, "\r\n")

	got := Normalize(raw)
	want := "ある日の暮方の事である。\n　一人の下人が、羅生門の下で雨やみを待っていた。"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestNormalize_NoBodyLeft(t *testing.T) {
	if got := Normalize("底本：なし\n-------"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestLookup(t *testing.T) {
	w, err := Lookup("走れメロス")
	if err != nil || w.Author != "太宰治" {
		t.Errorf("Lookup = %+v, %v", w, err)
	}
	if _, err := Lookup("吾輩は猫である"); !errors.Is(err, ErrUnknownWork) {
		t.Errorf("expected ErrUnknownWork, got %v", err)
	}
	if got := Titles(); len(got) != 4 || got[0] != DefaultWork {
		t.Errorf("Titles = %v", got)
	}
}

const samplePage = `<html><head><meta http-equiv="Content-Type" content="text/html;charset=Shift_JIS" /></head>
<body>
<h1 class="title">走れメロス</h1>
<div class="main_text">
メロスは<ruby><rb>激怒</rb><rp>（</rp><rt>げきど</rt><rp>）</rp></ruby>した。<br />
必ず、かの邪智暴虐の王を除かなければならぬと決意した。<br />
</div>
<div class="bibliographical_information">底本：「太宰治全集3」</div>
</body></html>`

func shiftJIS(t *testing.T, s string) []byte {
	t.Helper()
	out, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encoding sample: %v", err)
	}
	return out
}

func TestFetch_ShiftJISPage(t *testing.T) {
	body := shiftJIS(t, samplePage)
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := NewFetcher(config.FetchConfig{BaseURL: srv.URL})
	text, err := f.Fetch(context.Background(), "走れメロス")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/cards/000035/files/1567_14913.html" {
		t.Errorf("requested %q", gotPath)
	}
	want := "メロスは激怒した。\n必ず、かの邪智暴虐の王を除かなければならぬと決意した。"
	if text != want {
		t.Errorf("got %q\nwant %q", text, want)
	}
}

func TestFetch_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "752_") {
			_, _ = w.Write([]byte(`<html><body><div class="main_text"></div></body></html>`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(config.FetchConfig{BaseURL: srv.URL})

	if _, err := f.Fetch(context.Background(), "羅生門"); !errors.Is(err, ErrFetch) {
		t.Errorf("404: expected ErrFetch, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), "坊っちゃん"); !errors.Is(err, ErrFetch) {
		t.Errorf("empty page: expected ErrFetch, got %v", err)
	}
	if _, err := f.Fetch(context.Background(), "存在しない"); !errors.Is(err, ErrUnknownWork) {
		t.Errorf("expected ErrUnknownWork, got %v", err)
	}

	srv.Close()
	if _, err := f.Fetch(context.Background(), "羅生門"); !errors.Is(err, ErrFetch) {
		t.Errorf("closed server: expected ErrFetch, got %v", err)
	}
}

func TestExtractText_FallsBackToBody(t *testing.T) {
	f := &Fetcher{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><p>本文だけ</p></body></html>`))
	}))
	defer srv.Close()

	raw, err := f.FetchURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(raw) != "本文だけ" {
		t.Errorf("got %q", raw)
	}
}
