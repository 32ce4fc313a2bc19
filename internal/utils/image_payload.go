package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNotImage 表示负载解码成功但内容不是图片
var ErrNotImage = errors.New("payload is not an image")

// DecodeImagePayload 解码 data URL 或裸 base64 图片，返回字节与扩展名。
// 扩展名以内容嗅探为准，声明的 mime 只在嗅探不出具体格式时使用。
func DecodeImagePayload(payload string) ([]byte, string, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, "", errors.New("empty image payload")
	}

	declared, encoded := SplitDataURL(trimmed)
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, "", errors.New("empty base64 payload")
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// 部分供应商返回不带填充的 base64
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "=")); rawErr == nil {
			data = raw
		} else {
			return nil, "", fmt.Errorf("decode base64: %w", err)
		}
	}

	sniffed := http.DetectContentType(data)
	if !strings.HasPrefix(sniffed, "image/") {
		return nil, "", fmt.Errorf("%w: detected %s", ErrNotImage, sniffed)
	}

	ext := ExtensionFromMime(sniffed)
	if ext == "" {
		ext = ExtensionFromMime(declared)
	}
	if ext == "" {
		ext = "png"
	}
	return data, ext, nil
}
