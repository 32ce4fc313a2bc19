package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"originmint/internal/entity"
	"originmint/internal/service"
)

// Health 健康检查
func (h *HTTPHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}

// Generate 生成一批加水印的候选图
func (h *HTTPHandler) Generate(c *gin.Context) {
	var req entity.GenerateRequest
	// 空请求体按缺少 prompt 处理
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		LegacyErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "Prompt is required", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		LegacyErrorResponse(c, http.StatusBadRequest, ErrCodeMissingField, "Prompt is required", "")
		return
	}

	images, err := h.generation.Generate(c.Request.Context(), req.Prompt)
	if err != nil {
		status := legacyStatus(err)
		message := "Failed to generate images"
		code := ErrCodeGenerationFailed
		if status == http.StatusBadRequest {
			message = "Invalid prompt"
			code = ErrCodeInvalidRequest
		}
		logrus.WithError(err).WithField("kind", service.KindOf(err)).Error("generate_request_failed")
		LegacyErrorResponse(c, status, code, message, err.Error())
		return
	}

	c.JSON(http.StatusOK, entity.GenerateResponse{
		Success: true,
		Images:  images,
		Message: generatedMessage(len(images)),
	})
}

func generatedMessage(n int) string {
	switch n {
	case 1:
		return "Successfully generated 1 NFT image"
	case 3:
		return "Successfully generated 3 NFT image variations"
	default:
		return "Successfully generated " + strconv.Itoa(n) + " NFT image variations"
	}
}

// ServeImage 读取已生成的图片
func (h *HTTPHandler) ServeImage(c *gin.Context) {
	data, contentType, err := h.generation.LoadImage(c.Request.Context(), c.Param("filename"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrInvalidRequest) {
			NotFound(c, ErrCodeNotFound, "image not found")
			return
		}
		logrus.WithError(err).WithField("file", c.Param("filename")).Error("serve_image_failed")
		InternalError(c, "failed to load image")
		return
	}
	c.Header("Cache-Control", "public, max-age=3600")
	c.Data(http.StatusOK, contentType, data)
}
