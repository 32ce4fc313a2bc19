package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// signer 串行化同一私钥的交易发送，自己维护 nonce。
// 发送失败时丢弃本地 nonce，下次重新向节点查询。
type signer struct {
	key     *ecdsa.PrivateKey
	address common.Address

	mu        sync.Mutex
	nextNonce *uint64
}

func newSigner(hexKey string) (*signer, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, nil
	}
	key, err := crypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

type nonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

func (s *signer) transact(ctx context.Context, backend nonceSource, chainID *big.Int, send func(*bind.TransactOpts) (*types.Transaction, error)) (*types.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nextNonce == nil {
		nonce, err := backend.PendingNonceAt(ctx, s.address)
		if err != nil {
			return nil, fmt.Errorf("fetch nonce: %w", err)
		}
		s.nextNonce = &nonce
	}

	opts, err := bind.NewKeyedTransactorWithChainID(s.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	opts.Context = ctx
	opts.Nonce = new(big.Int).SetUint64(*s.nextNonce)

	tx, err := send(opts)
	if err != nil {
		s.nextNonce = nil
		return nil, err
	}
	*s.nextNonce++
	return tx, nil
}
