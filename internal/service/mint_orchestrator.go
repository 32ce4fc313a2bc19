package service

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"originmint/internal/chain"
	"originmint/internal/entity"
	"originmint/internal/metrics"
)

// Publisher 发布候选图到 IPFS
type Publisher interface {
	Publish(ctx context.Context, req entity.PublishRequest) (*entity.PublishedAsset, error)
}

// ChainRelay 是铸造流程需要的链上操作。mint 交易由用户钱包签名，中继只校验并广播。
type ChainRelay interface {
	BuildMintTx(ctx context.Context, wallet, referralCode string) (*chain.UnsignedTx, error)
	DecodeMintTx(wallet, rawTx string) (*chain.MintTx, error)
	Mint(ctx context.Context, tx *chain.MintTx) (*chain.MintReceipt, error)
	TokenIDOf(ctx context.Context, wallet string) (*big.Int, error)
	ReferralCodeOf(ctx context.Context, wallet string) (string, error)
	LinkDiscord(ctx context.Context, wallet, discordID string) (string, error)
	RegisterReferral(ctx context.Context, referred, referrer string) (string, error)
}

// ProgressFunc 接收流程进度，可以为 nil
type ProgressFunc func(entity.MintProgress)

// MintOrchestrator 串联 上传 -> 铸造 -> 绑定 Discord -> 注册推荐 -> 汇总。
// 只有上传与铸造失败会终止流程，后两步是尽力而为的附带操作。
type MintOrchestrator struct {
	publisher Publisher
	relay     ChainRelay
	auditor   *RelayAuditor
	metrics   *metrics.Collectors

	now   func() time.Time
	newID func() string
}

func NewMintOrchestrator(publisher Publisher, relay ChainRelay, auditor *RelayAuditor, m *metrics.Collectors) *MintOrchestrator {
	return &MintOrchestrator{
		publisher: publisher,
		relay:     relay,
		auditor:   auditor,
		metrics:   m,
		now:       time.Now,
		newID:     func() string { return "nft_" + uuid.NewString() },
	}
}

// PrepareMint 为钱包构造待签名的 mint 交易。已持有 Origin NFT 的钱包直接返回 ErrConflict。
func (o *MintOrchestrator) PrepareMint(ctx context.Context, req entity.MintTxRequest) (*chain.UnsignedTx, error) {
	const op = "prepare mint"

	wallet := strings.TrimSpace(req.Wallet)
	if _, err := chain.ParseAddress(wallet); err != nil {
		return nil, invalidRequest(op, "wallet must be a hex address")
	}
	if o.relay == nil {
		return nil, newError(KindConfiguration, op, "chain relay is not configured", nil)
	}
	if err := o.ensureNotMinted(ctx, op, wallet); err != nil {
		return nil, err
	}

	tx, err := o.relay.BuildMintTx(ctx, wallet, req.ReferralCode)
	if err != nil {
		classified := classify(op, KindChainFailure, err)
		logrus.WithError(classified).WithField("wallet", wallet).Error("mint_prepare_failed")
		return nil, classified
	}
	return tx, nil
}

// Run 执行一次完整的铸造流程。失败时不返回任何 MintRecord。
// 已签名交易在上传之前校验，签名者不是 wallet 时不会消耗候选图。
func (o *MintOrchestrator) Run(ctx context.Context, req entity.MintRequest, progress ProgressFunc) (*entity.MintResult, error) {
	const op = "mint"

	emit := func(state entity.MintState, pct int, msg string) {
		if progress != nil {
			progress(entity.MintProgress{State: state, Progress: pct, Message: msg})
		}
	}
	fail := func(err error) (*entity.MintResult, error) {
		e := AsError(err)
		emit(entity.MintStateFailed, 0, e.Error())
		return nil, e
	}

	wallet := strings.TrimSpace(req.Wallet)
	if _, err := chain.ParseAddress(wallet); err != nil {
		return fail(invalidRequest(op, "wallet must be a hex address"))
	}
	referrer := strings.TrimSpace(req.Referrer)
	if referrer != "" {
		if _, err := chain.ParseAddress(referrer); err != nil {
			return fail(invalidRequest(op, "referrer must be a hex address"))
		}
	}
	if strings.TrimSpace(req.Filename) == "" {
		return fail(invalidRequest(op, "filename is required"))
	}
	if strings.TrimSpace(req.SignedTx) == "" {
		return fail(invalidRequest(op, "signed_tx is required"))
	}
	if o.relay == nil {
		return fail(newError(KindConfiguration, op, "chain relay is not configured", nil))
	}

	mintTx, err := o.relay.DecodeMintTx(wallet, req.SignedTx)
	if err != nil {
		return fail(classify(op, KindInvalidRequest, err))
	}
	if code := strings.TrimSpace(req.ReferralCode); code != "" && code != mintTx.ReferralCode {
		return fail(invalidRequest(op, "referral_code does not match the signed transaction"))
	}
	if err := o.ensureNotMinted(ctx, op, wallet); err != nil {
		return fail(err)
	}

	logger := logrus.WithFields(logrus.Fields{
		"wallet":    wallet,
		"file":      req.Filename,
		"client_id": req.ClientID,
		"tx_hash":   mintTx.Hash,
	})

	emit(entity.MintStateUploading, 0, "uploading image and metadata to IPFS")
	asset, err := o.publisher.Publish(ctx, entity.PublishRequest{
		Filename:    req.Filename,
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		logger.WithError(err).Error("mint_upload_failed")
		return fail(err)
	}
	emit(entity.MintStateUploading, 30, "uploaded")

	emit(entity.MintStateMinting, 30, "minting")
	started := time.Now()
	receipt, err := o.relay.Mint(ctx, mintTx)
	o.metrics.ObserveUpstream("chain", started)
	o.metrics.ChainCall(entity.RelayActionMint, metrics.Outcome(err))
	if err != nil {
		classified := classify(op, KindChainFailure, err)
		o.auditor.Record(ctx, entity.DbRelayRecord{
			Action:       entity.RelayActionMint,
			Wallet:       wallet,
			Target:       mintTx.ReferralCode,
			TxHash:       mintTx.Hash,
			Status:       entity.RelayStatusFailed,
			ErrorMessage: err.Error(),
			MetadataURL:  asset.MetadataURL,
		})
		logger.WithError(classified).WithField("kind", KindOf(classified)).Error("mint_chain_failed")
		return fail(classified)
	}
	emit(entity.MintStateMinting, 70, "minted")

	result := &entity.MintResult{}

	emit(entity.MintStateLinking, 70, "linking discord")
	result.DiscordLink = o.secondary(ctx, string(entity.RepActionLinkDiscord), wallet, req.DiscordID, func() (string, error) {
		return o.relay.LinkDiscord(ctx, wallet, strings.TrimSpace(req.DiscordID))
	})
	emit(entity.MintStateRegistering, 80, "registering referral")
	result.Referral = o.secondary(ctx, string(entity.RepActionRegisterReferral), wallet, referrer, func() (string, error) {
		return o.relay.RegisterReferral(ctx, wallet, referrer)
	})

	emit(entity.MintStateFinalizing, 90, "finalizing")
	record := &entity.MintRecord{
		ID:           o.newID(),
		Name:         asset.Metadata.Name,
		Description:  asset.Metadata.Description,
		Image:        asset.ImageURL,
		MetadataURL:  asset.MetadataURL,
		MintedAt:     o.now().UTC(),
		TxHash:       receipt.TxHash,
		ReferralCode: receipt.ReferralCode,
		Badges:       []string{},
	}
	if receipt.TokenID != nil {
		record.TokenID = receipt.TokenID.String()
		record.TokenIDResolved = true
	}
	// 新持有者自己的推荐码，查询失败不影响结果
	if code, err := o.relay.ReferralCodeOf(ctx, wallet); err != nil {
		logger.WithError(err).Warn("mint_referral_code_lookup_failed")
	} else {
		record.OwnReferralCode = code
	}
	result.Record = record

	if !record.TokenIDResolved {
		result.Warnings = append(result.Warnings, "minted, but the token id could not be resolved from the receipt")
	}
	if result.DiscordLink.Status == entity.SecondaryFailed {
		result.Warnings = append(result.Warnings, "minted, but discord link failed: "+result.DiscordLink.Error)
	}
	if result.Referral.Status == entity.SecondaryFailed {
		result.Warnings = append(result.Warnings, "minted, but referral registration failed: "+result.Referral.Error)
	}

	o.auditor.Record(ctx, entity.DbRelayRecord{
		Action:      entity.RelayActionMint,
		Wallet:      wallet,
		Target:      receipt.ReferralCode,
		TxHash:      receipt.TxHash,
		TokenID:     record.TokenID,
		Status:      entity.RelayStatusSuccess,
		MetadataURL: asset.MetadataURL,
	})

	emit(entity.MintStateComplete, 100, "complete")
	logger.WithFields(logrus.Fields{
		"tx_hash":         receipt.TxHash,
		"token_id":        record.TokenID,
		"token_id_source": receipt.TokenIDSource,
		"degraded":        result.Degraded(),
	}).Info("mint_completed")
	return result, nil
}

// ensureNotMinted 合约限制每个钱包只能铸造一次，提前拦截避免消耗候选图与 IPFS 上传。
// 只读查询失败时放行，交给链上判断。
func (o *MintOrchestrator) ensureNotMinted(ctx context.Context, op, wallet string) error {
	held, err := o.relay.TokenIDOf(ctx, wallet)
	if err != nil {
		logrus.WithError(err).WithField("wallet", wallet).Warn("mint_holder_check_failed")
		return nil
	}
	if held != nil && held.Sign() > 0 {
		return newError(KindConflict, op, fmt.Sprintf("wallet already holds Origin NFT #%s", held), nil)
	}
	return nil
}

// secondary 执行附带操作，失败只记录警告。target 为空时跳过。
func (o *MintOrchestrator) secondary(ctx context.Context, action, wallet, target string, call func() (string, error)) entity.SecondaryResult {
	if strings.TrimSpace(target) == "" {
		return entity.SecondaryResult{Status: entity.SecondarySkipped}
	}

	started := time.Now()
	txHash, err := call()
	o.metrics.ObserveUpstream("chain", started)
	o.metrics.ChainCall(action, metrics.Outcome(err))
	o.auditor.Record(ctx, entity.DbRelayRecord{
		Action:       action,
		Wallet:       wallet,
		Target:       target,
		TxHash:       txHash,
		Status:       relayStatus(err),
		ErrorMessage: errorMessage(err),
	})

	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"wallet": wallet,
		}).Warn("mint_secondary_failed")
		return entity.SecondaryResult{Status: entity.SecondaryFailed, Error: fmt.Sprintf("%s: %v", action, err)}
	}
	return entity.SecondaryResult{Status: entity.SecondarySuccess, TxHash: txHash}
}
