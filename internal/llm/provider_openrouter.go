package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

const defaultOpenRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

type OpenRouter struct {
	httpClient *http.Client
	apiKey     string
	endpoint   string
	model      string
}

func NewOpenRouter(apiKey, endpoint, model string) (*OpenRouter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openrouter api key is not configured")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = defaultOpenRouterEndpoint
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("openrouter model is not configured")
	}

	return &OpenRouter{
		// SSE 不要设置整体超时，由调用方的 context 控制
		httpClient: &http.Client{},
		apiKey:     apiKey,
		endpoint:   endpoint,
		model:      model,
	}, nil
}

func (o *OpenRouter) ProviderID() string {
	return "openrouter"
}

func (o *OpenRouter) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	logger := generationLogger(ctx, o.ProviderID(), o.model, prompt)
	logger.WithField("prompt_preview", logSnippet(prompt)).Debug("llm_generate_image_start")

	imageRef, text, err := streamImageByOpenaiProtocol(ctx, o.httpClient, o.ProviderID(), o.apiKey, o.endpoint, o.model, prompt)
	if err != nil {
		if text != "" {
			logger.WithField("assistant_text", logSnippet(text)).Warn("llm_generate_image_no_image")
		}
		return nil, err
	}
	return resolveImagePayload(ctx, o.httpClient, o.ProviderID(), imageRef)
}

var _ ImageGenerator = (*OpenRouter)(nil)
