package entity

import "strings"

// RepAction 是 /api/rep 支持的链上操作
type RepAction string

const (
	RepActionLinkDiscord      RepAction = "linkDiscord"
	RepActionCreditRep        RepAction = "creditRep"
	RepActionRegisterReferral RepAction = "registerReferral"
)

// ParseRepAction 识别 action 字段，大小写不敏感
func ParseRepAction(value string) (RepAction, bool) {
	trimmed := strings.TrimSpace(value)
	for _, action := range []RepAction{RepActionLinkDiscord, RepActionCreditRep, RepActionRegisterReferral} {
		if strings.EqualFold(trimmed, string(action)) {
			return action, true
		}
	}
	return "", false
}

// RepRequest 对应 POST /api/rep 请求体，不同 action 使用不同字段
type RepRequest struct {
	Action string `json:"action"`

	// linkDiscord
	Wallet    string `json:"wallet,omitempty"`
	DiscordID string `json:"discordId,omitempty"`

	// creditRep
	User   string `json:"user,omitempty"`
	Amount string `json:"amount,omitempty"`
	Reason string `json:"reason,omitempty"`

	// registerReferral
	Referred string `json:"referred,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// RepResponse 对应 POST /api/rep 响应体
type RepResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash"`
}
