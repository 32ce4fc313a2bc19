package entity

import "time"

// GenerateRequest 对应 POST /generate 请求体
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse 对应 POST /generate 响应体
type GenerateResponse struct {
	Success bool     `json:"success"`
	Images  []string `json:"images"`
	Message string   `json:"message"`
}

// GeneratedVariant 描述一张已生成并加上品牌水印的候选图
type GeneratedVariant struct {
	Filename  string    `json:"filename"`
	Prompt    string    `json:"prompt"`
	BatchID   string    `json:"batch_id"`
	Siblings  []string  `json:"siblings"`
	CreatedAt time.Time `json:"created_at"`
}
