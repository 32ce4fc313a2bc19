package storage

import (
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"
)

var errInvalidKey = errors.New("storage: invalid object key")

func sanitizePathSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	builder.Grow(len(value))
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9':
			builder.WriteByte(ch)
		case ch >= 'A' && ch <= 'Z':
			builder.WriteByte(ch + 32)
		case ch == '-', ch == '_':
			builder.WriteByte(ch)
		}
	}
	return builder.String()
}

func normalizeExtension(ext string) string {
	trimmed := strings.TrimSpace(ext)
	trimmed = strings.TrimPrefix(trimmed, ".")
	if trimmed == "" {
		return "bin"
	}
	return sanitizePathSegment(trimmed)
}

// buildObjectKey 生成 "category/base.ext" 形式的 key，category 为空时只有文件名
func buildObjectKey(category, baseName, ext string) (string, error) {
	base := sanitizeFileBase(baseName)
	if base == "" {
		return "", errors.New("storage: missing base name")
	}
	filename := fmt.Sprintf("%s.%s", base, normalizeExtension(ext))
	category = sanitizePathSegment(category)
	if category == "" {
		return filename, nil
	}
	return path.Join(category, filename), nil
}

// cleanKey 校验调用方传入的 key，拒绝绝对路径与目录穿越
func cleanKey(key string) (string, error) {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" || strings.Contains(trimmed, "\\") {
		return "", errInvalidKey
	}
	cleaned := path.Clean("/" + trimmed)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || cleaned != trimmed {
		return "", errInvalidKey
	}
	return cleaned, nil
}

func detectContentType(ext string) string {
	normalized := normalizeExtension(ext)
	typeName := mime.TypeByExtension("." + normalized)
	if typeName == "" {
		return "application/octet-stream"
	}
	return typeName
}

// ContentTypeForKey 根据 key 的扩展名推断 Content-Type
func ContentTypeForKey(key string) string {
	return detectContentType(path.Ext(key))
}

func joinPrefix(prefix, key string) string {
	cleanPrefix := trimPrefix(prefix)
	if cleanPrefix == "" {
		return strings.TrimLeft(key, "/")
	}
	return path.Join(cleanPrefix, strings.TrimLeft(key, "/"))
}

func trimPrefix(prefix string) string {
	return strings.Trim(strings.TrimSpace(prefix), "/")
}

func sanitizeFileBase(value string) string {
	replaced := strings.ReplaceAll(strings.TrimSpace(value), " ", "-")
	sanitized := sanitizePathSegment(replaced)
	return strings.Trim(sanitized, "-_")
}
