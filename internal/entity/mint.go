package entity

import "time"

// MintState 是一次铸造流程的状态
type MintState string

const (
	MintStateIdle        MintState = "idle"
	MintStateUploading   MintState = "uploading"
	MintStateMinting     MintState = "minting"
	MintStateLinking     MintState = "linking"
	MintStateRegistering MintState = "registering"
	MintStateFinalizing  MintState = "finalizing"
	MintStateComplete    MintState = "complete"
	MintStateFailed      MintState = "failed"
)

// MintProgress 是推送给调用方的进度事件
type MintProgress struct {
	State    MintState `json:"state"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
}

// MintRequest 对应 POST /api/mint 请求体。SignedTx 是钱包签好的 OriginNFT.mint 原始交易，
// ReferralCode 非空时必须与交易里的推荐码一致。
type MintRequest struct {
	Filename     string `json:"filename"`
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	Wallet       string `json:"wallet"`
	SignedTx     string `json:"signed_tx"`
	DiscordID    string `json:"discord_id,omitempty"`
	ReferralCode string `json:"referral_code,omitempty"`
	Referrer     string `json:"referrer,omitempty"`
	ClientID     string `json:"client_id,omitempty"`
}

// MintTxRequest 对应 POST /api/mint/tx，请求服务端构造待签名的 mint 交易
type MintTxRequest struct {
	Wallet       string `json:"wallet"`
	ReferralCode string `json:"referral_code,omitempty"`
}

// MintRecord 由调用方持久化，后端不保存
type MintRecord struct {
	ID              string    `json:"id"`
	TokenID         string    `json:"tokenId"`
	TokenIDResolved bool      `json:"tokenIdResolved"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Image           string    `json:"image"`
	MetadataURL     string    `json:"metadataUrl"`
	MintedAt        time.Time `json:"mintedAt"`
	TxHash          string    `json:"txHash"`
	ReferralCode    string    `json:"referralCode"`
	OwnReferralCode string    `json:"ownReferralCode,omitempty"`
	Badges          []string  `json:"badges"`
}

// SecondaryStatus 描述 Discord 绑定、推荐注册等附带操作的结果
type SecondaryStatus string

const (
	SecondarySuccess SecondaryStatus = "success"
	SecondaryFailed  SecondaryStatus = "failed"
	SecondarySkipped SecondaryStatus = "skipped"
)

type SecondaryResult struct {
	Status SecondaryStatus `json:"status"`
	TxHash string          `json:"tx_hash,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// MintResult 是铸造流程成功结束时的完整结果
type MintResult struct {
	Record      *MintRecord     `json:"record"`
	DiscordLink SecondaryResult `json:"discord_link"`
	Referral    SecondaryResult `json:"referral"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// Degraded 表示铸造成功但附带操作未全部生效
func (r *MintResult) Degraded() bool {
	if r == nil {
		return false
	}
	return r.DiscordLink.Status == SecondaryFailed ||
		r.Referral.Status == SecondaryFailed ||
		(r.Record != nil && !r.Record.TokenIDResolved)
}

// MintResponse 对应 POST /api/mint 响应体
type MintResponse struct {
	Success   bool        `json:"success"`
	Record    *MintRecord `json:"record"`
	Secondary struct {
		DiscordLink SecondaryResult `json:"discord_link"`
		Referral    SecondaryResult `json:"referral"`
	} `json:"secondary"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewMintResponse 将铸造结果转换为对外响应
func NewMintResponse(result *MintResult) MintResponse {
	var resp MintResponse
	if result == nil {
		return resp
	}
	resp.Success = true
	resp.Record = result.Record
	resp.Secondary.DiscordLink = result.DiscordLink
	resp.Secondary.Referral = result.Referral
	resp.Warnings = result.Warnings
	return resp
}
