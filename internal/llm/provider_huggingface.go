package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"originmint/internal/utils"
)

const defaultHuggingFaceURL = "https://api-inference.huggingface.co/models/black-forest-labs/FLUX.1-schnell"

// HuggingFace 调用 Inference API 的 text-to-image 模型，响应体即图片字节
type HuggingFace struct {
	httpClient *http.Client
	token      string
	modelURL   string
}

func NewHuggingFace(token, modelURL string, httpClient *http.Client) (*HuggingFace, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("huggingface token is not configured")
	}
	modelURL = strings.TrimSpace(modelURL)
	if modelURL == "" {
		modelURL = defaultHuggingFaceURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HuggingFace{httpClient: httpClient, token: token, modelURL: modelURL}, nil
}

func (h *HuggingFace) ProviderID() string {
	return "huggingface"
}

func (h *HuggingFace) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	logger := generationLogger(ctx, h.ProviderID(), h.modelURL, prompt)
	logger.WithField("prompt_preview", logSnippet(prompt)).Debug("llm_generate_image_start")

	body, err := json.Marshal(map[string]string{"inputs": prompt})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.modelURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("huggingface request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		logger.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   logSnippet(string(text)),
		}).Error("llm_generate_image_upstream_error")
		return nil, &UpstreamError{Provider: h.ProviderID(), StatusCode: resp.StatusCode, Body: string(text)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("huggingface returned an empty image")
	}

	ext := utils.ExtensionFromMime(http.DetectContentType(data))
	if ext == "" {
		ext = "png"
	}
	return &ImageResult{Data: data, Extension: ext}, nil
}

var _ ImageGenerator = (*HuggingFace)(nil)
