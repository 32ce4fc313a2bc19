package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/volcengine/volcengine-go-sdk/service/arkruntime"
	volcModel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
	"github.com/volcengine/volcengine-go-sdk/volcengine"
)

//文档:https://www.volcengine.com/docs/82379/1541523

// volcengineImageClient 是 arkruntime.Client 中用到的部分，便于测试替换
type volcengineImageClient interface {
	GenerateImages(ctx context.Context, request volcModel.GenerateImagesRequest) (volcModel.ImagesResponse, error)
}

type arkImageClient struct {
	client *arkruntime.Client
}

func (a arkImageClient) GenerateImages(ctx context.Context, request volcModel.GenerateImagesRequest) (volcModel.ImagesResponse, error) {
	return a.client.GenerateImages(ctx, request)
}

type Volcengine struct {
	client     volcengineImageClient
	httpClient *http.Client
	model      string
	size       string
}

func NewVolcengine(apiKey, model string) (*Volcengine, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("volcengine api key is not configured")
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("volcengine model is not configured")
	}
	return &Volcengine{
		client:     arkImageClient{client: arkruntime.NewClientWithApiKey(apiKey)},
		httpClient: &http.Client{},
		model:      model,
		size:       "1024x1024",
	}, nil
}

func (v *Volcengine) ProviderID() string {
	return "volcengine"
}

func (v *Volcengine) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	logger := generationLogger(ctx, v.ProviderID(), v.model, prompt)
	logger.WithField("prompt_preview", logSnippet(prompt)).Debug("llm_generate_image_start")

	resp, err := v.client.GenerateImages(ctx, volcModel.GenerateImagesRequest{
		Model:          v.model,
		Prompt:         prompt,
		Size:           volcengine.String(v.size),
		// url 链接 24 小时内有效，这里立即下载
		ResponseFormat: volcengine.String(volcModel.GenerateImagesResponseFormatURL),
		Watermark:      volcengine.Bool(false),
	})
	if err != nil {
		logger.WithError(err).Error("llm_generate_image_upstream_error")
		return nil, fmt.Errorf("volcengine generate images: %w", err)
	}
	for _, image := range resp.Data {
		if image == nil {
			continue
		}
		if image.Url != nil && strings.TrimSpace(*image.Url) != "" {
			return resolveImagePayload(ctx, v.httpClient, v.ProviderID(), *image.Url)
		}
	}
	return nil, errors.New("volcengine returned no image")
}

var _ ImageGenerator = (*Volcengine)(nil)
