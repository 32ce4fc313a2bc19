package api

import (
	"context"
	"net/http"
	"sync"

	"originmint/internal/auth"
	"originmint/internal/chain"
	"originmint/internal/config"
	"originmint/internal/entity"
	"originmint/internal/service"
)

const serviceName = "IOPn NFT Generation API"

// Generator 生成候选图并读取已生成文件
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]string, error)
	LoadImage(ctx context.Context, filename string) ([]byte, string, error)
}

// AssetPublisher 把候选图发布到 IPFS
type AssetPublisher interface {
	Publish(ctx context.Context, req entity.PublishRequest) (*entity.PublishedAsset, error)
}

// RepExecutor 中继 RepManager 操作
type RepExecutor interface {
	Execute(ctx context.Context, req entity.RepRequest) (string, error)
}

// MintRunner 构造待签名的 mint 交易，并执行完整铸造流程
type MintRunner interface {
	PrepareMint(ctx context.Context, req entity.MintTxRequest) (*chain.UnsignedTx, error)
	Run(ctx context.Context, req entity.MintRequest, progress service.ProgressFunc) (*entity.MintResult, error)
}

// RelayLog 查询链上中继审计记录
type RelayLog interface {
	Enabled() bool
	List(ctx context.Context, params *entity.RelayRecordQuery) ([]entity.DbRelayRecord, *entity.Meta, error)
}

// Dependencies 汇总 HTTPHandler 需要的服务
type Dependencies struct {
	Authenticator auth.Authenticator
	Generation    Generator
	Publisher     AssetPublisher
	Rep           RepExecutor
	Mint          MintRunner
	RelayLog      RelayLog
	Metrics       http.Handler
}

// HTTPHandler HTTP 请求处理器
type HTTPHandler struct {
	cfg           config.Config
	authenticator auth.Authenticator

	// 服务层
	generation Generator
	publisher  AssetPublisher
	rep        RepExecutor
	mint       MintRunner
	relayLog   RelayLog
	metrics    http.Handler

	// SSE 客户端管理
	sseClients map[string][]chan sseMessage
	sseMu      sync.Mutex
}

// NewHTTPHandler 创建 HTTP 处理器实例
func NewHTTPHandler(cfg config.Config, deps Dependencies) *HTTPHandler {
	return &HTTPHandler{
		cfg:           cfg,
		authenticator: deps.Authenticator,
		generation:    deps.Generation,
		publisher:     deps.Publisher,
		rep:           deps.Rep,
		mint:          deps.Mint,
		relayLog:      deps.RelayLog,
		metrics:       deps.Metrics,
		sseClients:    make(map[string][]chan sseMessage),
	}
}
