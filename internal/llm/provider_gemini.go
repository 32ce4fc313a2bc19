package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"originmint/internal/utils"
)

// geminiContentGenerator 是 genai.Models 中用到的部分
type geminiContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type GeminiService struct {
	models geminiContentGenerator
	model  string
}

func NewGeminiService(ctx context.Context, apiKey, model string) (*GeminiService, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("gemini model is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiService{models: client.Models, model: model}, nil
}

func (g *GeminiService) ProviderID() string {
	return "gemini"
}

func (g *GeminiService) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	logger := generationLogger(ctx, g.ProviderID(), g.model, prompt)
	logger.WithField("prompt_preview", logSnippet(prompt)).Debug("llm_generate_image_start")

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return nil, &UpstreamError{Provider: g.ProviderID(), StatusCode: apiErr.Code, Body: apiErr.Message}
		}
		logger.WithError(err).Error("llm_generate_image_upstream_error")
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	result, text := extractGeminiImage(resp)
	if result == nil {
		logger.WithField("assistant_text", logSnippet(text)).Warn("llm_generate_image_no_image")
		return nil, errors.New("gemini returned no image")
	}
	return result, nil
}

func extractGeminiImage(resp *genai.GenerateContentResponse) (*ImageResult, string) {
	if resp == nil {
		return nil, ""
	}
	var texts []string
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				ext := utils.ExtensionFromMime(part.InlineData.MIMEType)
				if ext == "" {
					ext = utils.ExtensionFromMime(http.DetectContentType(part.InlineData.Data))
				}
				if ext == "" {
					ext = "png"
				}
				return &ImageResult{Data: part.InlineData.Data, Extension: ext}, ""
			}
			if t := strings.TrimSpace(part.Text); t != "" {
				texts = append(texts, t)
			}
		}
	}
	return nil, strings.Join(texts, "\n")
}

var _ ImageGenerator = (*GeminiService)(nil)
