// Package chain 负责签名并发送 OriginNFT 与 RepManager 合约交易。
package chain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

// Backend 是中继需要的链上能力，*ethclient.Client 满足该接口
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type Config struct {
	ChainID           int64
	OriginNFTAddress  string
	RepManagerAddress string
	BackendKey        string
	Timeout           time.Duration
}

// TokenIDSource 说明 token id 是如何得到的
type TokenIDSource string

const (
	TokenIDFromEvent  TokenIDSource = "event"
	TokenIDFromView   TokenIDSource = "view"
	TokenIDUnresolved TokenIDSource = "unresolved"
)

const defaultConfirmTimeout = 2 * time.Minute

// MintReceipt 是一次成功铸造的结果，TokenID 在无法解析时为 nil
type MintReceipt struct {
	TxHash        string
	Wallet        string
	ReferralCode  string
	TokenID       *big.Int
	TokenIDSource TokenIDSource
	BlockNumber   uint64
}

// MintTx 是校验通过、等待广播的用户签名 mint 交易
type MintTx struct {
	Wallet       string
	ReferralCode string
	Hash         string

	tx *types.Transaction
}

// UnsignedTx 是交给钱包签名的交易字段，数值均为 0x 十六进制
type UnsignedTx struct {
	ChainID              string `json:"chainId"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	Nonce                string `json:"nonce"`
	Gas                  string `json:"gas"`
	GasPrice             string `json:"gasPrice,omitempty"`
	MaxFeePerGas         string `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas string `json:"maxPriorityFeePerGas,omitempty"`
	Value                string `json:"value"`
	Data                 string `json:"data"`
}

type Relay struct {
	backend Backend
	chainID *big.Int
	timeout time.Duration

	originNFTAddress  common.Address
	repManagerAddress common.Address
	originNFT         *bind.BoundContract
	repManager        *bind.BoundContract

	backendSigner *signer
}

// Dial 连接 RPC 节点并创建中继
func Dial(ctx context.Context, rpcURL string, cfg Config) (*Relay, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	relay, err := NewRelay(client, cfg)
	if err != nil {
		client.Close()
		return nil, err
	}
	return relay, nil
}

// NewRelay 使用已有的 backend 创建中继。后端私钥可以为空，RepManager 操作会返回 ErrSignerNotConfigured。
// mint 由用户钱包签名，中继只负责校验与广播。
func NewRelay(backend Backend, cfg Config) (*Relay, error) {
	if backend == nil {
		return nil, errors.New("chain: backend is nil")
	}
	nftAddr, err := ParseAddress(cfg.OriginNFTAddress)
	if err != nil {
		return nil, fmt.Errorf("origin nft address: %w", err)
	}
	repAddr, err := ParseAddress(cfg.RepManagerAddress)
	if err != nil {
		return nil, fmt.Errorf("rep manager address: %w", err)
	}
	backendSigner, err := newSigner(cfg.BackendKey)
	if err != nil {
		return nil, fmt.Errorf("backend wallet key: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultConfirmTimeout
	}

	return &Relay{
		backend:           backend,
		chainID:           big.NewInt(cfg.ChainID),
		timeout:           timeout,
		originNFTAddress:  nftAddr,
		repManagerAddress: repAddr,
		originNFT:         bind.NewBoundContract(nftAddr, originNFTABI, backend, backend, backend),
		repManager:        bind.NewBoundContract(repAddr, repManagerABI, backend, backend, backend),
		backendSigner:     backendSigner,
	}, nil
}

// ParseAddress 校验并解析十六进制地址
func ParseAddress(value string) (common.Address, error) {
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, value)
	}
	return common.HexToAddress(trimmed), nil
}

// HasBackendSigner 表示是否配置了后端钱包私钥
func (r *Relay) HasBackendSigner() bool { return r.backendSigner != nil }

// BuildMintTx 为钱包构造未签名的 OriginNFT.mint(referralCode) 交易，nonce、gas 与费用由节点估算
func (r *Relay) BuildMintTx(ctx context.Context, wallet, referralCode string) (*UnsignedTx, error) {
	from, err := ParseAddress(wallet)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx, err := r.originNFT.Transact(&bind.TransactOpts{
		From:    from,
		Context: ctx,
		NoSend:  true,
		// 不签名，原样交回钱包
		Signer: func(_ common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}, "mint", strings.TrimSpace(referralCode))
	if err != nil {
		return nil, fmt.Errorf("build mint tx: %w", err)
	}

	out := &UnsignedTx{
		ChainID: hexutil.EncodeBig(r.chainID),
		From:    from.Hex(),
		To:      r.originNFTAddress.Hex(),
		Nonce:   hexutil.EncodeUint64(tx.Nonce()),
		Gas:     hexutil.EncodeUint64(tx.Gas()),
		Value:   hexutil.EncodeBig(tx.Value()),
		Data:    hexutil.Encode(tx.Data()),
	}
	if tx.Type() == types.DynamicFeeTxType {
		out.MaxFeePerGas = hexutil.EncodeBig(tx.GasFeeCap())
		out.MaxPriorityFeePerGas = hexutil.EncodeBig(tx.GasTipCap())
	} else {
		out.GasPrice = hexutil.EncodeBig(tx.GasPrice())
	}
	return out, nil
}

// DecodeMintTx 解码用户签名的原始交易，要求目标是 OriginNFT.mint、链 id 一致且签名者就是 wallet。
// 只做本地校验，不访问节点。
func (r *Relay) DecodeMintTx(wallet, rawTx string) (*MintTx, error) {
	walletAddr, err := ParseAddress(wallet)
	if err != nil {
		return nil, err
	}
	raw, err := hexutil.Decode(strings.TrimSpace(rawTx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMintTx, err)
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMintTx, err)
	}

	if tx.To() == nil || *tx.To() != r.originNFTAddress {
		return nil, fmt.Errorf("%w: recipient is not the OriginNFT contract", ErrInvalidMintTx)
	}
	// 未做 EIP-155 保护的交易 chain id 为 0，同样拒绝
	if tx.ChainId().Cmp(r.chainID) != 0 {
		return nil, fmt.Errorf("%w: chain id %s, expected %s", ErrInvalidMintTx, tx.ChainId(), r.chainID)
	}
	method := originNFTABI.Methods["mint"]
	data := tx.Data()
	if len(data) < 4 || !bytes.Equal(data[:4], method.ID) {
		return nil, fmt.Errorf("%w: not a mint call", ErrInvalidMintTx)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil || len(args) != 1 {
		return nil, fmt.Errorf("%w: malformed mint arguments", ErrInvalidMintTx)
	}
	referralCode, _ := args[0].(string)

	sender, err := types.Sender(types.LatestSignerForChainID(r.chainID), tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMintTx, err)
	}
	if sender != walletAddr {
		return nil, fmt.Errorf("%w: signed by %s, expected %s", ErrSenderMismatch, sender.Hex(), walletAddr.Hex())
	}

	return &MintTx{
		Wallet:       walletAddr.Hex(),
		ReferralCode: referralCode,
		Hash:         tx.Hash().Hex(),
		tx:           tx,
	}, nil
}

// Mint 广播用户签名的 mint 交易并等待确认。token id 优先取发给该钱包的 Transfer 事件，
// 其次查询合约的 addressToTokenId(wallet)，都拿不到时标记为 unresolved。
func (r *Relay) Mint(ctx context.Context, mintTx *MintTx) (*MintReceipt, error) {
	if mintTx == nil || mintTx.tx == nil {
		return nil, fmt.Errorf("mint: %w", ErrInvalidMintTx)
	}
	wallet := common.HexToAddress(mintTx.Wallet)

	receipt, err := r.relaySigned(ctx, mintTx.tx, logrus.WithFields(logrus.Fields{
		"method": "mint",
		"signer": wallet.Hex(),
	}))
	if err != nil {
		return nil, fmt.Errorf("mint: %w", err)
	}

	result := &MintReceipt{
		TxHash:        receipt.TxHash.Hex(),
		Wallet:        wallet.Hex(),
		ReferralCode:  mintTx.ReferralCode,
		TokenIDSource: TokenIDUnresolved,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if tokenID, ok := tokenIDFromReceipt(receipt, r.originNFTAddress, wallet); ok {
		result.TokenID = tokenID
		result.TokenIDSource = TokenIDFromEvent
		return result, nil
	}

	// 回执里没有发给该钱包的 Transfer 事件时回退到合约的只读映射
	tokenID, err := r.tokenIDOf(ctx, wallet)
	if err != nil {
		logrus.WithError(err).WithField("tx_hash", result.TxHash).Warn("chain_token_id_view_failed")
		return result, nil
	}
	if tokenID.Sign() > 0 {
		result.TokenID = tokenID
		result.TokenIDSource = TokenIDFromView
	}
	return result, nil
}

// TokenIDOf 查询地址持有的 Origin NFT token id，未铸造时为 0
func (r *Relay) TokenIDOf(ctx context.Context, wallet string) (*big.Int, error) {
	addr, err := ParseAddress(wallet)
	if err != nil {
		return nil, err
	}
	return r.tokenIDOf(ctx, addr)
}

func (r *Relay) tokenIDOf(ctx context.Context, addr common.Address) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []interface{}
	if err := r.originNFT.Call(&bind.CallOpts{Context: ctx}, &out, "addressToTokenId", addr); err != nil {
		return nil, fmt.Errorf("addressToTokenId: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("addressToTokenId: empty result")
	}
	tokenID, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("addressToTokenId: unexpected result type %T", out[0])
	}
	return tokenID, nil
}

// ReferralCodeOf 查询地址的推荐码
func (r *Relay) ReferralCodeOf(ctx context.Context, wallet string) (string, error) {
	addr, err := ParseAddress(wallet)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var out []interface{}
	if err := r.originNFT.Call(&bind.CallOpts{Context: ctx}, &out, "getReferralCode", addr); err != nil {
		return "", fmt.Errorf("getReferralCode: %w", err)
	}
	if len(out) == 0 {
		return "", nil
	}
	code, _ := out[0].(string)
	return code, nil
}

// LinkDiscord 由后端钱包调用 RepManager.linkDiscord
func (r *Relay) LinkDiscord(ctx context.Context, wallet, discordID string) (string, error) {
	walletAddr, err := ParseAddress(wallet)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(discordID) == "" {
		return "", errors.New("linkDiscord: discord id is empty")
	}
	return r.sendBackend(ctx, "linkDiscord", walletAddr, strings.TrimSpace(discordID))
}

// CreditRep 由后端钱包调用 RepManager.creditRep
func (r *Relay) CreditRep(ctx context.Context, user string, amount *big.Int, reason string) (string, error) {
	userAddr, err := ParseAddress(user)
	if err != nil {
		return "", err
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", errors.New("creditRep: amount must be positive")
	}
	return r.sendBackend(ctx, "creditRep", userAddr, amount, reason)
}

// RegisterReferral 由后端钱包调用 RepManager.registerReferral
func (r *Relay) RegisterReferral(ctx context.Context, referred, referrer string) (string, error) {
	referredAddr, err := ParseAddress(referred)
	if err != nil {
		return "", err
	}
	referrerAddr, err := ParseAddress(referrer)
	if err != nil {
		return "", err
	}
	if referredAddr == referrerAddr {
		return "", errors.New("registerReferral: referrer equals referred")
	}
	return r.sendBackend(ctx, "registerReferral", referredAddr, referrerAddr)
}

func (r *Relay) sendBackend(ctx context.Context, method string, args ...interface{}) (string, error) {
	if r.backendSigner == nil {
		return "", fmt.Errorf("%s: %w", method, ErrSignerNotConfigured)
	}
	receipt, err := r.send(ctx, r.backendSigner, r.repManager, method, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w", method, err)
	}
	return receipt.TxHash.Hex(), nil
}

// send 用中继自己的私钥签名发送交易并等待确认
func (r *Relay) send(ctx context.Context, s *signer, contract *bind.BoundContract, method string, args ...interface{}) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	logger := logrus.WithFields(logrus.Fields{
		"method": method,
		"signer": s.address.Hex(),
	})

	tx, err := s.transact(ctx, r.backend, r.chainID, func(opts *bind.TransactOpts) (*types.Transaction, error) {
		return contract.Transact(opts, method, args...)
	})
	if err != nil {
		logger.WithError(err).Error("chain_tx_send_failed")
		return nil, err
	}
	return r.confirm(ctx, tx, logger)
}

// relaySigned 广播外部已签名的交易并等待确认
func (r *Relay) relaySigned(ctx context.Context, tx *types.Transaction, logger *logrus.Entry) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.backend.SendTransaction(ctx, tx); err != nil {
		logger.WithError(err).WithField("tx_hash", tx.Hash().Hex()).Error("chain_tx_send_failed")
		return nil, err
	}
	return r.confirm(ctx, tx, logger)
}

// confirm 等待交易上链，回执状态失败时返回 ErrReverted
func (r *Relay) confirm(ctx context.Context, tx *types.Transaction, logger *logrus.Entry) (*types.Receipt, error) {
	logger = logger.WithFields(logrus.Fields{
		"tx_hash": tx.Hash().Hex(),
		"nonce":   tx.Nonce(),
	})
	logger.Info("chain_tx_sent")

	receipt, err := bind.WaitMined(ctx, r.backend, tx)
	if err != nil {
		logger.WithError(err).Error("chain_tx_wait_failed")
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		logger.WithField("block", receipt.BlockNumber).Error("chain_tx_reverted")
		return nil, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	logger.WithField("block", receipt.BlockNumber).Info("chain_tx_confirmed")
	return receipt, nil
}

// tokenIDFromReceipt 从 OriginNFT 的 Transfer(0x0 -> to, tokenId) 事件中取出 token id，to 必须是 wallet
func tokenIDFromReceipt(receipt *types.Receipt, nft, wallet common.Address) (*big.Int, bool) {
	if receipt == nil {
		return nil, false
	}
	for _, lg := range receipt.Logs {
		if lg == nil || lg.Address != nft || len(lg.Topics) != 4 {
			continue
		}
		if lg.Topics[0] != transferEventID || lg.Topics[1] != (common.Hash{}) {
			continue
		}
		if common.BytesToAddress(lg.Topics[2].Bytes()) != wallet {
			continue
		}
		return new(big.Int).SetBytes(lg.Topics[3].Bytes()), true
	}
	return nil, false
}
