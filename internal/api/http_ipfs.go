package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"originmint/internal/entity"
	"originmint/internal/service"
	"originmint/internal/storage"
)

// UploadIPFS 把选中的候选图与元数据固定到 IPFS
func (h *HTTPHandler) UploadIPFS(c *gin.Context) {
	var req entity.PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		LegacyErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "Filename is required", err.Error())
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		LegacyErrorResponse(c, http.StatusBadRequest, ErrCodeMissingField, "Filename is required", "")
		return
	}

	asset, err := h.publisher.Publish(c.Request.Context(), req)
	if err != nil {
		logger := logrus.WithError(err).WithFields(logrus.Fields{
			"file": req.Filename,
			"kind": service.KindOf(err),
		})
		switch legacyStatus(err) {
		case http.StatusNotFound:
			logger.Warn("upload_asset_not_found")
			message := "Image not found in generation cache"
			switch {
			case errors.Is(err, storage.ErrObjectNotFound):
				message = "Image file not found"
			case errors.Is(err, service.ErrConflict):
				message = "Image batch is already being published"
			}
			LegacyErrorResponse(c, http.StatusNotFound, ErrCodeAssetNotFound, message, "")
		case http.StatusBadRequest:
			LegacyErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "Filename is required", err.Error())
		default:
			logger.Error("upload_request_failed")
			LegacyErrorResponse(c, http.StatusInternalServerError, ErrCodeUploadFailed, "Failed to upload to IPFS", err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, entity.NewPublishResponse(asset))
}
