package service

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"originmint/internal/chain"
	"originmint/internal/entity"
	"originmint/internal/metrics"
)

// RepRelay 是 RepManager 合约上由后端钱包代付的操作
type RepRelay interface {
	LinkDiscord(ctx context.Context, wallet, discordID string) (string, error)
	CreditRep(ctx context.Context, user string, amount *big.Int, reason string) (string, error)
	RegisterReferral(ctx context.Context, referred, referrer string) (string, error)
}

// RepService 处理 /api/rep 的三种动作
type RepService struct {
	relay   RepRelay
	auditor *RelayAuditor
	metrics *metrics.Collectors
}

func NewRepService(relay RepRelay, auditor *RelayAuditor, m *metrics.Collectors) *RepService {
	return &RepService{relay: relay, auditor: auditor, metrics: m}
}

// Execute 校验参数并中继交易，成功返回交易哈希
func (s *RepService) Execute(ctx context.Context, req entity.RepRequest) (string, error) {
	const op = "rep"

	action, ok := entity.ParseRepAction(req.Action)
	if !ok {
		return "", invalidRequest(op, "invalid action %q", req.Action)
	}
	if s.relay == nil {
		return "", newError(KindConfiguration, op, "chain relay is not configured", chain.ErrSignerNotConfigured)
	}

	var (
		call   func() (string, error)
		wallet string
		target string
	)
	switch action {
	case entity.RepActionLinkDiscord:
		wallet, target = strings.TrimSpace(req.Wallet), strings.TrimSpace(req.DiscordID)
		if wallet == "" || target == "" {
			return "", invalidRequest(op, "linkDiscord requires wallet and discordId")
		}
		call = func() (string, error) { return s.relay.LinkDiscord(ctx, wallet, target) }
	case entity.RepActionCreditRep:
		wallet, target = strings.TrimSpace(req.User), strings.TrimSpace(req.Reason)
		if wallet == "" {
			return "", invalidRequest(op, "creditRep requires user")
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(req.Amount), 10)
		if !ok || amount.Sign() <= 0 {
			return "", invalidRequest(op, "creditRep requires a positive integer amount")
		}
		call = func() (string, error) { return s.relay.CreditRep(ctx, wallet, amount, req.Reason) }
	case entity.RepActionRegisterReferral:
		wallet, target = strings.TrimSpace(req.Referred), strings.TrimSpace(req.Referrer)
		if wallet == "" || target == "" {
			return "", invalidRequest(op, "registerReferral requires referred and referrer")
		}
		call = func() (string, error) { return s.relay.RegisterReferral(ctx, wallet, target) }
	}

	started := time.Now()
	txHash, err := call()
	s.metrics.ObserveUpstream("chain", started)
	s.metrics.ChainCall(string(action), metrics.Outcome(err))
	s.auditor.Record(ctx, entity.DbRelayRecord{
		Action:       string(action),
		Wallet:       wallet,
		Target:       target,
		TxHash:       txHash,
		Status:       relayStatus(err),
		ErrorMessage: errorMessage(err),
	})

	logger := logrus.WithFields(logrus.Fields{
		"action": action,
		"wallet": wallet,
	})
	if err != nil {
		classified := classify(op, KindChainFailure, err)
		logger.WithError(classified).Error("rep_action_failed")
		return "", classified
	}
	logger.WithField("tx_hash", txHash).Info("rep_action_succeeded")
	return txHash, nil
}
