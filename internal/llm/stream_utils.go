package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"originmint/internal/utils"
)

// 部分模型不走 delta.images，而是把图片直接写进 content：
// JSON content part、markdown 图片、data URL 或裸链接
var (
	markdownImagePattern = regexp.MustCompile(`!\[[^\]]*\]\((\S+?)\)`)
	dataURLPattern       = regexp.MustCompile(`data:image/[a-zA-Z0-9.+-]+;base64,[A-Za-z0-9+/=]+`)
	httpURLPattern       = regexp.MustCompile(`https?://[^\s"'<>()]+`)
)

type contentPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
	B64JSON  string `json:"b64_json,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// imageFromContent 返回第一张图片引用以及去掉图片后的剩余文本
func imageFromContent(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if parts, ok := decodeContentParts(raw); ok {
		var texts []string
		for _, part := range parts {
			if ref := part.imageRef(); ref != "" {
				return ref, ""
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				texts = append(texts, text)
			}
		}
		return "", strings.Join(texts, "\n")
	}

	if m := markdownImagePattern.FindStringSubmatchIndex(raw); m != nil {
		return raw[m[2]:m[3]], cutRange(raw, m[0], m[1])
	}
	for _, pattern := range []*regexp.Regexp{dataURLPattern, httpURLPattern} {
		if loc := pattern.FindStringIndex(raw); loc != nil {
			return raw[loc[0]:loc[1]], cutRange(raw, loc[0], loc[1])
		}
	}
	return "", raw
}

// decodeContentParts 兼容单个 part 与 part 数组
func decodeContentParts(raw string) ([]contentPart, bool) {
	switch raw[0] {
	case '[':
		var parts []contentPart
		if err := json.Unmarshal([]byte(raw), &parts); err != nil {
			return nil, false
		}
		return parts, true
	case '{':
		var part contentPart
		if err := json.Unmarshal([]byte(raw), &part); err != nil || part.Type == "" {
			return nil, false
		}
		return []contentPart{part}, true
	default:
		return nil, false
	}
}

func (p contentPart) imageRef() string {
	if p.ImageURL != nil {
		if url := strings.TrimSpace(p.ImageURL.URL); url != "" {
			return url
		}
	}
	if data := strings.TrimSpace(p.B64JSON); data != "" {
		return utils.EnsureDataURL(data)
	}
	if data := strings.TrimSpace(p.Data); data != "" {
		if p.MimeType != "" {
			return "data:" + p.MimeType + ";base64," + data
		}
		return utils.EnsureDataURL(data)
	}
	return ""
}

func cutRange(raw string, start, end int) string {
	return strings.TrimSpace(raw[:start] + raw[end:])
}
