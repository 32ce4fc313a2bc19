package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"originmint/internal/config"
)

const (
	ProviderHuggingFace = "huggingface"
	ProviderVolcengine  = "volcengine"
	ProviderOpenRouter  = "openrouter"
	ProviderGemini      = "gemini"
)

// NewImageGenerator 根据 GENERATION_PROVIDER 实例化图像生成客户端
func NewImageGenerator(ctx context.Context, cfg config.Config) (ImageGenerator, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	switch provider {
	case "", ProviderHuggingFace:
		return NewHuggingFace(cfg.HFToken, cfg.HFModelURL, &http.Client{})
	case ProviderVolcengine:
		return NewVolcengine(cfg.VolcengineAPIKey, cfg.VolcengineModel)
	case ProviderOpenRouter:
		return NewOpenRouter(cfg.OpenRouterAPIKey, cfg.OpenRouterEndpoint, cfg.OpenRouterModel)
	case ProviderGemini:
		return NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported generation provider: %s", cfg.GenerationProvider)
	}
}
