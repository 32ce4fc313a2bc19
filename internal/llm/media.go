package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"originmint/internal/utils"
)

const maxDownloadBytes = 32 << 20

// resolveImagePayload 把供应商返回的图片（http URL、data URL 或裸 base64）统一解成字节
func resolveImagePayload(ctx context.Context, client *http.Client, providerID, payload string) (*ImageResult, error) {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return nil, errors.New("empty image payload")
	}

	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		return downloadImage(ctx, client, providerID, trimmed)
	}

	data, ext, err := utils.DecodeImagePayload(trimmed)
	if err != nil {
		return nil, err
	}
	return &ImageResult{Data: data, Extension: ext}, nil
}

func downloadImage(ctx context.Context, client *http.Client, providerID, url string) (*ImageResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UpstreamError{Provider: providerID, StatusCode: resp.StatusCode, Body: string(body)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("downloaded image is empty")
	}

	ext := utils.ExtensionFromMime(resp.Header.Get("Content-Type"))
	if ext == "" {
		ext = utils.ExtensionFromMime(http.DetectContentType(data))
	}
	if ext == "" {
		ext = "png"
	}
	return &ImageResult{Data: data, Extension: ext}, nil
}
