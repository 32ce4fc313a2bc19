package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"originmint/internal/config"
)

// Identity 是鉴权通过的调用方。Wallet 为空表示共享密钥，不绑定钱包。
type Identity struct {
	Wallet string
}

// BoundTo 未绑定钱包时放行任意钱包，否则要求地址相同（不区分大小写）
func (i Identity) BoundTo(wallet string) bool {
	return i.Wallet == "" || strings.EqualFold(i.Wallet, strings.TrimSpace(wallet))
}

// Authenticator 判断 authorization 头是否放行，并返回调用方身份
type Authenticator interface {
	Check(header string) (Identity, bool)
}

// StaticKey 按共享密钥做精确匹配。配置了哈希时比较 bcrypt，否则做常量时间比较。
type StaticKey struct {
	key  []byte
	hash string
}

func NewStaticKey(key, hash string) (*StaticKey, error) {
	key = strings.TrimSpace(key)
	hash = strings.TrimSpace(hash)
	if key == "" && hash == "" {
		return nil, errors.New("static api key is not configured")
	}
	return &StaticKey{key: []byte(key), hash: hash}, nil
}

func (s *StaticKey) Check(header string) (Identity, bool) {
	if header == "" {
		return Identity{}, false
	}
	if s.hash != "" {
		return Identity{}, VerifyAPIKey(s.hash, header) == nil
	}
	return Identity{}, subtle.ConstantTimeCompare([]byte(header), s.key) == 1
}

// JWTAuthenticator 接受 "Bearer <token>" 形式的钱包会话 token，身份绑定到 token 中的钱包
type JWTAuthenticator struct {
	manager *Manager
}

func NewJWTAuthenticator(manager *Manager) *JWTAuthenticator {
	return &JWTAuthenticator{manager: manager}
}

func (j *JWTAuthenticator) Check(header string) (Identity, bool) {
	token, ok := bearerToken(header)
	if !ok {
		return Identity{}, false
	}
	claims, err := j.manager.ParseToken(token)
	if err != nil || strings.TrimSpace(claims.Wallet) == "" {
		return Identity{}, false
	}
	return Identity{Wallet: strings.TrimSpace(claims.Wallet)}, true
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// NewAuthenticator 根据 AUTH_MODE 构建鉴权器
func NewAuthenticator(cfg config.Config) (Authenticator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.AuthMode)) {
	case "", "static":
		return NewStaticKey(cfg.APIKey, cfg.APIKeyHash)
	case "jwt":
		manager, err := NewManager(cfg.JWTSecret, cfg.JWTIssuer, time.Duration(cfg.JWTExpirationMinutes)*time.Minute)
		if err != nil {
			return nil, err
		}
		return NewJWTAuthenticator(manager), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.AuthMode)
	}
}

var (
	_ Authenticator = (*StaticKey)(nil)
	_ Authenticator = (*JWTAuthenticator)(nil)
)
