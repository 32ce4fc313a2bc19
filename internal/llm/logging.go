package llm

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const logSnippetLimit = 120

// 内联图片动辄几 MB，日志里只保留 mime 与长度
var inlineImagePattern = regexp.MustCompile(`data:(image/[a-zA-Z0-9.+-]+);base64,[A-Za-z0-9+/=]+`)

// generationLogger 单次生成请求的日志上下文
func generationLogger(ctx context.Context, providerID, model, prompt string) *logrus.Entry {
	fields := logrus.Fields{
		"provider":      providerID,
		"prompt_length": len([]rune(prompt)),
	}
	if trimmedModel := strings.TrimSpace(model); trimmedModel != "" {
		fields["model"] = trimmedModel
	}

	entry := logrus.WithFields(fields)
	if ctx != nil {
		entry = entry.WithContext(ctx)
	}
	return entry
}

func logSnippet(value string) string {
	value = strings.TrimSpace(redactInlineImages(value))
	if value == "" {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= logSnippetLimit {
		return value
	}
	return string(runes[:logSnippetLimit]) + "..."
}

func redactInlineImages(value string) string {
	return inlineImagePattern.ReplaceAllStringFunc(value, func(match string) string {
		sub := inlineImagePattern.FindStringSubmatch(match)
		return "data:" + sub[1] + ";base64,<" + strconv.Itoa(len(match)-len(sub[1])-len("data:;base64,")) + " chars>"
	})
}
