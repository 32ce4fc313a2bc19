package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"originmint/internal/entity"
	"originmint/internal/service"
)

// Rep 中继 RepManager 操作，由后端钱包代付 gas
func (h *HTTPHandler) Rep(c *gin.Context) {
	var req entity.RepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		LegacyErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid action", err.Error())
		return
	}
	if _, ok := entity.ParseRepAction(req.Action); !ok {
		LegacyErrorResponse(c, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid action", "")
		return
	}

	txHash, err := h.rep.Execute(c.Request.Context(), req)
	if err != nil {
		status := legacyStatus(err)
		e := service.AsError(err)
		switch {
		case status == http.StatusBadRequest:
			LegacyErrorResponse(c, status, ErrCodeInvalidRequest, "Invalid parameters", e.Error())
		case errors.Is(err, service.ErrConfiguration):
			LegacyErrorResponse(c, status, ErrCodeNotConfigured, "Backend wallet not configured", e.Error())
		default:
			LegacyErrorResponse(c, status, errorCode(e.Kind), "Transaction failed", e.Error())
		}
		return
	}

	c.JSON(http.StatusOK, entity.RepResponse{Success: true, TxHash: txHash})
}
