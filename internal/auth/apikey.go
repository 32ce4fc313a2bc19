package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const defaultBcryptCost = bcrypt.DefaultCost

// HashAPIKey 生成 API_KEY_HASH 使用的 bcrypt 哈希
func HashAPIKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", errors.New("api key must not be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(key), defaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyAPIKey 验证明文密钥是否与哈希匹配
func VerifyAPIKey(hash, candidate string) error {
	if strings.TrimSpace(hash) == "" {
		return errors.New("stored api key hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
}
