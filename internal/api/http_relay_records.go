package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"originmint/internal/entity"
)

// ListRelayRecords 分页查询链上中继审计记录
func (h *HTTPHandler) ListRelayRecords(c *gin.Context) {
	if h.relayLog == nil || !h.relayLog.Enabled() {
		ServiceUnavailable(c, "relay audit log is disabled")
		return
	}

	var query entity.RelayRecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		InvalidPayload(c)
		return
	}

	records, meta, err := h.relayLog.List(c.Request.Context(), &query)
	if err != nil {
		logrus.WithError(err).Error("list_relay_records_failed")
		InternalError(c, "failed to load relay records")
		return
	}

	c.JSON(http.StatusOK, entity.ResponseItems{
		Code: 0,
		Msg:  "ok",
		Data: records,
		Meta: meta,
		Time: time.Now().UTC(),
	})
}
