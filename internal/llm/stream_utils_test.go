package llm

import (
	"strings"
	"testing"
)

func TestImageFromContent(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantRef  string
		wantRest string
	}{
		{name: "空内容", raw: "  ", wantRef: "", wantRest: ""},
		{name: "纯文本", raw: "I cannot draw that", wantRef: "", wantRest: "I cannot draw that"},
		{
			name:     "markdown 图片",
			raw:      "Here you go ![fox](https://cdn.example.com/fox.png) enjoy",
			wantRef:  "https://cdn.example.com/fox.png",
			wantRest: "Here you go  enjoy",
		},
		{
			name:     "内联 data URL",
			raw:      "result: data:image/webp;base64,AAAA",
			wantRef:  "data:image/webp;base64,AAAA",
			wantRest: "result:",
		},
		{name: "裸链接", raw: "https://cdn.example.com/a.jpg", wantRef: "https://cdn.example.com/a.jpg", wantRest: ""},
		{
			name:    "JSON part 数组",
			raw:     `[{"type":"text","text":"ok"},{"type":"image_url","image_url":{"url":"https://x/y.png"}}]`,
			wantRef: "https://x/y.png",
		},
		{name: "单个 JSON part 带 mime", raw: `{"type":"image","data":"QUJD","mime_type":"image/jpeg"}`, wantRef: "data:image/jpeg;base64,QUJD"},
		{name: "JSON part 只有文本", raw: `[{"type":"text","text":"a"},{"type":"text","text":"b"}]`, wantRest: "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, rest := imageFromContent(tt.raw)
			if ref != tt.wantRef {
				t.Errorf("ref = %q, want %q", ref, tt.wantRef)
			}
			if rest != tt.wantRest {
				t.Errorf("rest = %q, want %q", rest, tt.wantRest)
			}
		})
	}
}

func TestLogSnippetRedactsInlineImages(t *testing.T) {
	payload := "before data:image/png;base64," + strings.Repeat("A", 4000) + " after"
	got := logSnippet(payload)
	if strings.Contains(got, "AAAA") {
		t.Fatalf("inline image not redacted: %q", got)
	}
	if !strings.Contains(got, "<4000 chars>") {
		t.Errorf("expected payload length marker, got %q", got)
	}

	long := strings.Repeat("é", logSnippetLimit+10)
	if got := logSnippet(long); len([]rune(got)) != logSnippetLimit+3 {
		t.Errorf("expected truncation to %d runes, got %d", logSnippetLimit+3, len([]rune(got)))
	}
}
