package llm

import (
	"context"
	"fmt"
)

// ImageResult 是单次生成得到的原始图片
type ImageResult struct {
	Data      []byte
	Extension string
}

// ImageGenerator 把一段（已增强的）prompt 变成一张图片。
// 每次调用只产出一张图，并发由调用方控制。
type ImageGenerator interface {
	ProviderID() string
	GenerateImage(ctx context.Context, prompt string) (*ImageResult, error)
}

// UpstreamError 表示推理服务返回了非 2xx 响应
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s model error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// UpstreamStatus 返回上游状态码，供错误分类使用
func (e *UpstreamError) UpstreamStatus() int {
	return e.StatusCode
}
