package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"originmint/internal/entity"
)

const mintProgressEvent = "mint_progress"

// MintTx 返回待用户钱包签名的 mint 交易
func (h *HTTPHandler) MintTx(c *gin.Context) {
	var req entity.MintTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Wallet) == "" {
		MissingField(c, "wallet")
		return
	}
	if !requireWallet(c, req.Wallet) {
		return
	}

	tx, err := h.mint.PrepareMint(c.Request.Context(), req)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tx": tx})
}

// Mint 校验并广播用户签名的 mint 交易，串联完整铸造流程。附带操作失败只出现在 warnings 中。
func (h *HTTPHandler) Mint(c *gin.Context) {
	var req entity.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		InvalidPayload(c)
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		MissingField(c, "filename")
		return
	}
	if strings.TrimSpace(req.Wallet) == "" {
		MissingField(c, "wallet")
		return
	}
	if strings.TrimSpace(req.SignedTx) == "" {
		MissingField(c, "signed_tx")
		return
	}
	if !requireWallet(c, req.Wallet) {
		return
	}

	clientID := strings.TrimSpace(req.ClientID)
	progress := func(p entity.MintProgress) {
		h.publishSSEMessage(clientID, sseMessage{event: mintProgressEvent, data: p})
	}

	result, err := h.mint.Run(c.Request.Context(), req, progress)
	if err != nil {
		ServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entity.NewMintResponse(result))
}

// StreamMintEvents 以 SSE 推送铸造进度
func (h *HTTPHandler) StreamMintEvents(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	if clientID == "" {
		MissingField(c, "client_id")
		return
	}

	ctx := c.Request.Context()
	events := make(chan sseMessage, 16)
	h.registerSSEClient(clientID, events)
	defer h.unregisterSSEClient(clientID, events)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	heartbeatTicker := time.NewTicker(10 * time.Second)
	defer heartbeatTicker.Stop()

	logger := logrus.WithField("client_id", clientID)
	logger.WithField("subscribers", h.sseSubscribers(clientID)).Info("mint_sse_connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			logger.Info("mint_sse_disconnected")
			return false
		case <-heartbeatTicker.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UnixMilli()})
			return true
		case msg, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(msg.event, msg.data)
			// 终态之后关闭流
			if p, isProgress := msg.data.(entity.MintProgress); isProgress &&
				(p.State == entity.MintStateComplete || p.State == entity.MintStateFailed) {
				return false
			}
			return true
		}
	})
}
