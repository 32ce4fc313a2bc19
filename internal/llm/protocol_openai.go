package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

type orImageURL struct {
	URL string `json:"url"`
}
type orImage struct {
	Type     string     `json:"type"` // "image_url"
	ImageURL orImageURL `json:"image_url"`
}

type orDelta struct {
	Content string    `json:"content"`
	Images  []orImage `json:"images"`
}
type orChoice struct {
	Delta        orDelta `json:"delta"`
	FinishReason string  `json:"finish_reason"`
	Index        int     `json:"index"`
}
type orStreamChunk struct {
	Choices []orChoice `json:"choices"`
}

type orMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamImageByOpenaiProtocol 以 SSE 方式请求 chat/completions，返回第一张图片（URL 或 data URL）
func streamImageByOpenaiProtocol(ctx context.Context, httpClient *http.Client, providerID, apiKey, endpoint, model, prompt string) (imageRef string, assistantText string, err error) {
	reqBody := map[string]any{
		"model":      model,
		"messages":   []orMessage{{Role: "user", Content: prompt}},
		"modalities": []string{"image", "text"},
		"stream":     true,
	}

	bs, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bs))
	if err != nil {
		return "", "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		logrus.WithFields(logrus.Fields{
			"provider": providerID,
			"status":   resp.StatusCode,
			"body":     logSnippet(string(body)),
		}).Error("llm_stream_upstream_error")
		return "", "", &UpstreamError{Provider: providerID, StatusCode: resp.StatusCode, Body: string(body)}
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var textBuilder strings.Builder
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk orStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			textBuilder.WriteString(delta.Content)
		}
		if imageRef == "" && len(delta.Images) > 0 && delta.Images[0].ImageURL.URL != "" {
			imageRef = delta.Images[0].ImageURL.URL
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", err
	}

	assistantText = strings.TrimSpace(textBuilder.String())
	if imageRef == "" {
		// 部分模型把图片直接写进 content
		imageRef, assistantText = imageFromContent(assistantText)
	}
	if strings.TrimSpace(imageRef) == "" {
		return "", assistantText, errors.New("no image in streamed response")
	}
	return imageRef, assistantText, nil
}
