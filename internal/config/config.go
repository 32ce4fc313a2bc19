package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"3001"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// 接口鉴权：static 为共享密钥，jwt 为钱包签发的 Bearer Token
	AuthMode             string `env:"AUTH_MODE" envDefault:"static"`
	APIKey               string `env:"API_KEY"`
	APIKeyHash           string `env:"API_KEY_HASH"`
	JWTSecret            string `env:"JWT_SECRET"`
	JWTIssuer            string `env:"JWT_ISSUER" envDefault:"iopn-backend"`
	JWTExpirationMinutes int    `env:"JWT_EXPIRATION_MINUTES" envDefault:"1440"`

	// 图像生成
	GenerationProvider string        `env:"GENERATION_PROVIDER" envDefault:"huggingface"`
	GenerationVariants int           `env:"GENERATION_VARIANTS" envDefault:"3"`
	GenerationTimeout  time.Duration `env:"GENERATION_TIMEOUT" envDefault:"2m"`
	PromptMaxLength    int           `env:"PROMPT_MAX_LENGTH" envDefault:"1000"`

	HFToken    string `env:"HF_TOKEN"`
	HFModelURL string `env:"HF_MODEL_URL" envDefault:"https://api-inference.huggingface.co/models/black-forest-labs/FLUX.1-schnell"`

	VolcengineAPIKey string `env:"VOLCENGINE_API_KEY"`
	VolcengineModel  string `env:"VOLCENGINE_MODEL" envDefault:"doubao-seedream-3-0-t2i-250415"`

	OpenRouterAPIKey   string `env:"OPENROUTER_API_KEY"`
	OpenRouterEndpoint string `env:"OPENROUTER_ENDPOINT" envDefault:"https://openrouter.ai/api/v1/chat/completions"`
	OpenRouterModel    string `env:"OPENROUTER_MODEL" envDefault:"google/gemini-2.5-flash-image-preview"`

	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash-image-preview"`

	// 品牌水印
	LogoPath  string `env:"LOGO_PATH" envDefault:"assets/IOPnlogo.png"`
	LogoWidth int    `env:"LOGO_WIDTH" envDefault:"100"`
	LogoInset int    `env:"LOGO_INSET" envDefault:"20"`

	StorageType     string `env:"STORAGE_TYPE" envDefault:"local"`
	StorageLocalDir string `env:"STORAGE_LOCAL_DIR" envDefault:"outputs"`

	// S3 兼容存储配置
	StorageS3Region          string `env:"STORAGE_S3_REGION"`
	StorageS3Bucket          string `env:"STORAGE_S3_BUCKET"`
	StorageS3Prefix          string `env:"STORAGE_S3_PREFIX"`
	StorageS3Endpoint        string `env:"STORAGE_S3_ENDPOINT"`
	StorageS3AccessKeyID     string `env:"STORAGE_S3_ACCESS_KEY_ID"`
	StorageS3SecretAccessKey string `env:"STORAGE_S3_SECRET_ACCESS_KEY"`
	StorageS3SessionToken    string `env:"STORAGE_S3_SESSION_TOKEN"`
	StorageS3ForcePathStyle  bool   `env:"STORAGE_S3_FORCE_PATH_STYLE" envDefault:"false"`

	// 阿里云 OSS 存储配置
	StorageOSSEndpoint        string `env:"STORAGE_OSS_ENDPOINT"`
	StorageOSSBucket          string `env:"STORAGE_OSS_BUCKET"`
	StorageOSSPrefix          string `env:"STORAGE_OSS_PREFIX"`
	StorageOSSAccessKeyID     string `env:"STORAGE_OSS_ACCESS_KEY_ID"`
	StorageOSSAccessKeySecret string `env:"STORAGE_OSS_ACCESS_KEY_SECRET"`

	// 腾讯云 COS 存储配置
	StorageCOSBucketURL string `env:"STORAGE_COS_BUCKET_URL"`
	StorageCOSPrefix    string `env:"STORAGE_COS_PREFIX"`
	StorageCOSSecretID  string `env:"STORAGE_COS_SECRET_ID"`
	StorageCOSSecretKey string `env:"STORAGE_COS_SECRET_KEY"`

	// Cloudflare R2 存储配置
	StorageR2AccountID       string `env:"STORAGE_R2_ACCOUNT_ID"`
	StorageR2Endpoint        string `env:"STORAGE_R2_ENDPOINT"`
	StorageR2Region          string `env:"STORAGE_R2_REGION" envDefault:"auto"`
	StorageR2Bucket          string `env:"STORAGE_R2_BUCKET"`
	StorageR2Prefix          string `env:"STORAGE_R2_PREFIX"`
	StorageR2AccessKeyID     string `env:"STORAGE_R2_ACCESS_KEY_ID"`
	StorageR2SecretAccessKey string `env:"STORAGE_R2_SECRET_ACCESS_KEY"`

	// 生成会话缓存
	SessionBackend       string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL           time.Duration `env:"SESSION_TTL" envDefault:"1h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"10m"`
	RedisAddr            string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword        string        `env:"REDIS_PASSWORD"`
	RedisDB              int           `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix       string        `env:"REDIS_KEY_PREFIX" envDefault:"iopn:gen"`

	// IPFS（Pinata）
	PinataJWT      string        `env:"PINATA_JWT"`
	PinataAPIURL   string        `env:"PINATA_API_URL" envDefault:"https://api.pinata.cloud/pinning/pinFileToIPFS"`
	IPFSGatewayURL string        `env:"IPFS_GATEWAY_URL" envDefault:"https://gateway.pinata.cloud/ipfs/"`
	PinTimeout     time.Duration `env:"PIN_TIMEOUT" envDefault:"1m"`

	// 链上中继
	ChainRPCURL       string        `env:"CHAIN_RPC_URL" envDefault:"https://testnet-rpc.iopn.tech"`
	ChainID           int64         `env:"CHAIN_ID" envDefault:"984"`
	BackendWalletKey  string        `env:"BACKEND_WALLET_PRIVATE_KEY"`
	OriginNFTAddress  string        `env:"ORIGIN_NFT_ADDRESS" envDefault:"0xB70B4DAb3F51A7ED2e353f84ccFaE1e0DA69E6bE"`
	RepManagerAddress string        `env:"REP_MANAGER_ADDRESS" envDefault:"0x4dF5eCA74b41a7e5C30731c815558107a9ADd185"`
	ChainTimeout      time.Duration `env:"CHAIN_TIMEOUT" envDefault:"2m"`

	// 审计日志数据库，留空则不记录
	DBType     string `env:"DB_TYPE" envDefault:"sqlite"`
	DSNURL     string `env:"DSN_URL" envDefault:""`
	DBUser     string `env:"DB_USER" envDefault:""`
	DBPassword string `env:"DB_PASSWORD" envDefault:""`
	DBAddr     string `env:"DB_ADDR" envDefault:""`
	DBName     string `env:"DB_NAME" envDefault:"iopn"`
	DBPath     string `env:"DB_PATH" envDefault:"datas/relay.db"`
	DBPort     string `env:"DB_PORT" envDefault:"3306"`
}

// ParseConfig 读取 .env（可选）与环境变量
func ParseConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("failed to load .env file")
	}

	var conf Config
	if err := env.Parse(&conf); err != nil {
		logrus.WithError(err).Error("env.Parse error")
		return Config{}, err
	}
	if err := conf.Validate(); err != nil {
		return Config{}, err
	}
	return conf, nil
}

// Validate 检查互相依赖的配置项
func (c Config) Validate() error {
	if c.GenerationVariants < 1 || c.GenerationVariants > 4 {
		return fmt.Errorf("GENERATION_VARIANTS must be between 1 and 4, got %d", c.GenerationVariants)
	}
	if c.PromptMaxLength <= 0 {
		return fmt.Errorf("PROMPT_MAX_LENGTH must be positive, got %d", c.PromptMaxLength)
	}
	if c.LogoWidth <= 0 {
		return fmt.Errorf("LOGO_WIDTH must be positive, got %d", c.LogoWidth)
	}
	switch strings.ToLower(strings.TrimSpace(c.AuthMode)) {
	case "", "static":
		if strings.TrimSpace(c.APIKey) == "" && strings.TrimSpace(c.APIKeyHash) == "" {
			return errors.New("API_KEY or API_KEY_HASH is required when AUTH_MODE=static")
		}
	case "jwt":
		if strings.TrimSpace(c.JWTSecret) == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE: %s", c.AuthMode)
	}
	switch strings.ToLower(strings.TrimSpace(c.SessionBackend)) {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_BACKEND: %s", c.SessionBackend)
	}
	return nil
}

// ParseLogLevel 解析日志级别，无法识别时回退到 info
func (c Config) ParseLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(c.LogLevel))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
