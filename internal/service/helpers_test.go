package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/big"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"originmint/internal/branding"
	"originmint/internal/chain"
	"originmint/internal/entity"
	"originmint/internal/ipfs"
	"originmint/internal/llm"
	"originmint/internal/session"
	"originmint/internal/storage"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeGenerator struct {
	mu      sync.Mutex
	prompts []string
	calls   atomic.Int32
	image   []byte
	// failOn 指定第几次调用（从 1 开始）失败，failGate 非空时等它关闭后才返回
	failOn   int32
	failGate chan struct{}
	err      error
	block    bool
}

func (f *fakeGenerator) ProviderID() string { return "fake" }

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt string) (*llm.ImageResult, error) {
	n := f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.failOn > 0 && n == f.failOn {
		if f.failGate != nil {
			<-f.failGate
		}
		return nil, f.err
	}
	return &llm.ImageResult{Data: f.image, Extension: "png"}, nil
}

// countingStorage 统计每个 key 被删除的次数，原图删除数达到 rawTarget 时关闭 rawDone
type countingStorage struct {
	storage.Storage

	mu         sync.Mutex
	deletes    map[string]int
	rawDeleted int
	rawTarget  int
	rawDone    chan struct{}
}

func (c *countingStorage) Delete(ctx context.Context, key string) error {
	err := c.Storage.Delete(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes[key]++
	if strings.HasPrefix(key, rawFilePrefix+"_") {
		c.rawDeleted++
		if c.rawDeleted == c.rawTarget && c.rawDone != nil {
			close(c.rawDone)
		}
	}
	return err
}

func (c *countingStorage) deleteCounts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.deletes))
	for k, v := range c.deletes {
		out[k] = v
	}
	return out
}

type fakePinner struct {
	mu        sync.Mutex
	files     []string
	jsonNames []string
	metadata  []entity.NFTMetadata
	fileErr   error
	jsonErr   error

	// entered 在 PinFile 开始时收到文件名，gate 关闭前 PinFile 一直阻塞
	entered chan string
	gate    chan struct{}
}

func (p *fakePinner) PinFile(_ context.Context, name, filename, _ string, data []byte) (*ipfs.PinResult, error) {
	if p.entered != nil {
		p.entered <- name
	}
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fileErr != nil {
		return nil, p.fileErr
	}
	p.files = append(p.files, name)
	cid := fmt.Sprintf("QmImage%d", len(p.files))
	return &ipfs.PinResult{CID: cid, URL: "https://gateway.pinata.cloud/ipfs/" + cid, Size: int64(len(data))}, nil
}

func (p *fakePinner) PinJSON(_ context.Context, name string, v any) (*ipfs.PinResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jsonErr != nil {
		return nil, p.jsonErr
	}
	p.jsonNames = append(p.jsonNames, name)
	if md, ok := v.(entity.NFTMetadata); ok {
		p.metadata = append(p.metadata, md)
	}
	cid := fmt.Sprintf("QmMeta%d", len(p.jsonNames))
	return &ipfs.PinResult{CID: cid, URL: "https://gateway.pinata.cloud/ipfs/" + cid}, nil
}

// fakeRelay 模拟链上中继：signedTx 形如 "<签名钱包>|<推荐码>"，合约规则是每个钱包只能铸造一次
type fakeRelay struct {
	mu sync.Mutex

	mintErr     error
	mintReceipt *chain.MintReceipt
	viewErr     error
	codeErr     error
	linkErr     error
	referralErr error
	creditErr   error

	minted      map[string]int64
	nextTokenID int64
	calls       []string
}

func signedBy(wallet, referralCode string) string {
	return wallet + "|" + referralCode
}

func (r *fakeRelay) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *fakeRelay) BuildMintTx(_ context.Context, wallet, referralCode string) (*chain.UnsignedTx, error) {
	r.record("build:" + referralCode)
	return &chain.UnsignedTx{From: wallet, To: "0xnft", Data: "0xmint:" + referralCode}, nil
}

func (r *fakeRelay) DecodeMintTx(wallet, rawTx string) (*chain.MintTx, error) {
	signer, code, ok := strings.Cut(rawTx, "|")
	if !ok {
		return nil, fmt.Errorf("%w: %q", chain.ErrInvalidMintTx, rawTx)
	}
	if !strings.EqualFold(signer, wallet) {
		return nil, fmt.Errorf("%w: signed by %s", chain.ErrSenderMismatch, signer)
	}
	return &chain.MintTx{Wallet: wallet, ReferralCode: code, Hash: "0xmint"}, nil
}

func (r *fakeRelay) Mint(_ context.Context, tx *chain.MintTx) (*chain.MintReceipt, error) {
	r.record("mint:" + tx.ReferralCode)
	if r.mintErr != nil {
		return nil, r.mintErr
	}
	if r.mintReceipt != nil {
		return r.mintReceipt, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.minted == nil {
		r.minted = make(map[string]int64)
	}
	if _, done := r.minted[tx.Wallet]; done {
		return nil, fmt.Errorf("mint: %w: 0xmint", chain.ErrReverted)
	}
	r.nextTokenID++
	r.minted[tx.Wallet] = r.nextTokenID
	return &chain.MintReceipt{
		TxHash:        "0xmint",
		Wallet:        tx.Wallet,
		ReferralCode:  tx.ReferralCode,
		TokenID:       big.NewInt(r.nextTokenID),
		TokenIDSource: chain.TokenIDFromEvent,
	}, nil
}

func (r *fakeRelay) TokenIDOf(_ context.Context, wallet string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.viewErr != nil {
		return nil, r.viewErr
	}
	return big.NewInt(r.minted[wallet]), nil
}

func (r *fakeRelay) ReferralCodeOf(_ context.Context, wallet string) (string, error) {
	if r.codeErr != nil {
		return "", r.codeErr
	}
	return "REF-" + wallet[len(wallet)-4:], nil
}

func (r *fakeRelay) LinkDiscord(_ context.Context, wallet, discordID string) (string, error) {
	r.record("linkDiscord:" + discordID)
	if r.linkErr != nil {
		return "", r.linkErr
	}
	return "0xlink", nil
}

func (r *fakeRelay) CreditRep(_ context.Context, user string, amount *big.Int, reason string) (string, error) {
	r.record(fmt.Sprintf("creditRep:%s:%s", amount, reason))
	if r.creditErr != nil {
		return "", r.creditErr
	}
	return "0xcredit", nil
}

func (r *fakeRelay) RegisterReferral(_ context.Context, referred, referrer string) (string, error) {
	r.record("registerReferral:" + referrer)
	if r.referralErr != nil {
		return "", r.referralErr
	}
	return "0xreferral", nil
}

func (r *fakeRelay) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeRepo struct {
	mu      sync.Mutex
	records []entity.DbRelayRecord
}

func (f *fakeRepo) CreateRelayRecord(_ context.Context, record *entity.DbRelayRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeRepo) ListRelayRecords(_ context.Context, _ *entity.RelayRecordQuery) ([]entity.DbRelayRecord, *entity.Meta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.DbRelayRecord(nil), f.records...), &entity.Meta{Total: int64(len(f.records))}, nil
}

func (f *fakeRepo) Records() []entity.DbRelayRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.DbRelayRecord(nil), f.records...)
}

type pipeline struct {
	dir       string
	store     *storage.LocalStorage
	sessions  *session.MemoryStore
	generator *fakeGenerator
	pinner    *fakePinner
	gen       *GenerationService
	pub       *PublishService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)

	logo := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for i := range logo.Pix {
		logo.Pix[i] = 0xff
	}
	brander, err := branding.NewBranderFromImage(logo, 10, 2)
	require.NoError(t, err)

	sessions := session.NewMemoryStore()
	generator := &fakeGenerator{image: solidPNG(t, 64, 64, color.RGBA{R: 200, A: 255})}
	pinner := &fakePinner{}

	var seed atomic.Int64
	gen := NewGenerationService(generator, brander, store, sessions, nil, GenerationOptions{Variants: 3, PromptMaxLength: 100})
	gen.seed = func() int64 { return seed.Add(1) }

	return &pipeline{
		dir:       dir,
		store:     store,
		sessions:  sessions,
		generator: generator,
		pinner:    pinner,
		gen:       gen,
		pub:       NewPublishService(pinner, store, sessions, nil, 0),
	}
}

func (p *pipeline) sessionCount(t *testing.T) int {
	t.Helper()
	n, err := p.sessions.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (p *pipeline) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(p.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
