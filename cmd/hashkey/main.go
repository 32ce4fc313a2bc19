// hashkey 为 API_KEY_HASH 生成 bcrypt 哈希，也可以为钱包签发一个会话 JWT
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"originmint/internal/auth"
	"originmint/internal/chain"
)

func main() {
	key := flag.String("key", "", "API key to hash")
	wallet := flag.String("wallet", "", "wallet address to issue a JWT for")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT signing secret")
	issuer := flag.String("issuer", "iopn-backend", "JWT issuer")
	expiry := flag.Duration("expiry", 24*time.Hour, "JWT lifetime")
	flag.Parse()

	if *key == "" && *wallet == "" {
		flag.Usage()
		os.Exit(2)
	}

	if *key != "" {
		hash, err := auth.HashAPIKey(*key)
		if err != nil {
			logrus.WithError(err).Fatal("hash api key failed")
		}
		fmt.Printf("API_KEY_HASH=%s\n", hash)
	}

	if *wallet != "" {
		addr, err := chain.ParseAddress(*wallet)
		if err != nil {
			logrus.WithError(err).Fatal("invalid wallet")
		}
		manager, err := auth.NewManager(*secret, *issuer, *expiry)
		if err != nil {
			logrus.WithError(err).Fatal("init jwt manager failed")
		}
		token, expiresAt, err := manager.GenerateToken(addr.Hex())
		if err != nil {
			logrus.WithError(err).Fatal("issue token failed")
		}
		fmt.Printf("Authorization: Bearer %s\n", token)
		fmt.Printf("expires_at=%s\n", expiresAt.UTC().Format(time.RFC3339))
	}
}
