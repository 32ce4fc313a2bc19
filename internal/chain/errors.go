package chain

import (
	"errors"
	"strings"
)

var (
	// ErrSignerNotConfigured 表示所需的私钥没有配置
	ErrSignerNotConfigured = errors.New("chain: signer not configured")
	// ErrReverted 表示交易已上链但执行失败
	ErrReverted = errors.New("chain: transaction reverted")
	// ErrInvalidAddress 表示地址不是合法的十六进制地址
	ErrInvalidAddress = errors.New("chain: invalid address")
	// ErrInvalidMintTx 表示用户提交的已签名交易不是发给 OriginNFT 的 mint 调用
	ErrInvalidMintTx = errors.New("chain: invalid mint transaction")
	// ErrSenderMismatch 表示交易签名者与请求中的钱包不一致
	ErrSenderMismatch = errors.New("chain: transaction sender does not match wallet")
)

var userRejectedMarkers = []string{
	"user rejected",
	"user denied",
	"action_rejected",
	"rejected by user",
	"code=4001",
	"code: 4001",
}

// IsUserRejected 判断错误是否来自签名方拒绝签名
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range userRejectedMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
