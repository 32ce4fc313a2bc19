package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"originmint/internal/llm"
	"originmint/internal/metrics"
	"originmint/internal/session"
	"originmint/internal/storage"
)

const (
	defaultVariantCount    = 3
	defaultPromptMaxLength = 1000
	defaultGenerateTimeout = 2 * time.Minute

	rawFilePrefix     = "output"
	brandedFilePrefix = "branded"
	brandedExtension  = "png"
)

// Brander 给原始图片叠加品牌 logo
type Brander interface {
	Brand(raw []byte) ([]byte, error)
}

// GenerationOptions 控制单次生成批次
type GenerationOptions struct {
	Variants        int
	PromptMaxLength int
	Timeout         time.Duration
}

// GenerationService 生成一批候选图：增强 prompt、并发调用模型、加水印、登记会话
type GenerationService struct {
	generator llm.ImageGenerator
	brander   Brander
	storage   storage.Storage
	sessions  session.Store
	metrics   *metrics.Collectors

	variants        int
	promptMaxLength int
	timeout         time.Duration

	// 可在测试中替换
	seed       func() int64
	newBatchID func() string
	now        func() time.Time
}

// NewGenerationService 创建生成服务实例
func NewGenerationService(generator llm.ImageGenerator, brander Brander, store storage.Storage, sessions session.Store, m *metrics.Collectors, opts GenerationOptions) *GenerationService {
	if opts.Variants <= 0 {
		opts.Variants = defaultVariantCount
	}
	if opts.PromptMaxLength <= 0 {
		opts.PromptMaxLength = defaultPromptMaxLength
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultGenerateTimeout
	}
	return &GenerationService{
		generator:       generator,
		brander:         brander,
		storage:         store,
		sessions:        sessions,
		metrics:         m,
		variants:        opts.Variants,
		promptMaxLength: opts.PromptMaxLength,
		timeout:         opts.Timeout,
		seed:            func() int64 { return rand.Int63n(1_000_000) },
		newBatchID:      func() string { return strings.ReplaceAll(uuid.NewString(), "-", "")[:12] },
		now:             time.Now,
	}
}

// Generate 返回本批次全部加水印后的文件名。任一变体失败则整批失败，已写入的文件会被清理。
func (s *GenerationService) Generate(ctx context.Context, prompt string) ([]string, error) {
	const op = "generate"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, invalidRequest(op, "prompt is required")
	}
	if n := utf8.RuneCountInString(prompt); n > s.promptMaxLength {
		return nil, invalidRequest(op, "prompt is too long (%d > %d characters)", n, s.promptMaxLength)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	batchID := s.newBatchID()
	logger := logrus.WithFields(logrus.Fields{
		"batch_id": batchID,
		"provider": s.generator.ProviderID(),
		"variants": s.variants,
	})

	seeds := make([]int64, s.variants)
	for i := range seeds {
		seeds[i] = s.seed()
	}

	filenames := make([]string, s.variants)
	written := &writtenFiles{}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < s.variants; i++ {
		i := i
		g.Go(func() error {
			key, err := s.generateVariant(gctx, batchID, i, prompt, seeds[i], written)
			if err != nil {
				return err
			}
			filenames[i] = key
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(context.WithoutCancel(ctx), written.list())
		s.metrics.GenerationBatch(metrics.Outcome(err))
		classified := classify(op, KindUpstreamFailure, err)
		logger.WithError(classified).Error("generation_batch_failed")
		return nil, classified
	}

	if err := s.sessions.PutBatch(ctx, batchID, prompt, filenames); err != nil {
		s.discard(context.WithoutCancel(ctx), filenames)
		s.metrics.GenerationBatch(metrics.Outcome(err))
		logger.WithError(err).Error("generation_session_put_failed")
		return nil, newError(KindInternal, op, "failed to register generation batch", err)
	}

	s.metrics.GenerationBatch(metrics.Outcome(nil))
	logger.WithField("files", filenames).Info("generation_batch_completed")
	return filenames, nil
}

// generateVariant 生成单张图：原图先落盘，加水印后保存并删除原图
func (s *GenerationService) generateVariant(ctx context.Context, batchID string, index int, prompt string, seed int64, written *writtenFiles) (string, error) {
	enriched := llm.EnrichPrompt(prompt, seed)

	started := time.Now()
	result, err := s.generator.GenerateImage(ctx, enriched)
	s.metrics.ObserveUpstream(s.generator.ProviderID(), started)
	if err != nil {
		return "", fmt.Errorf("variant %d: %w", index, err)
	}
	if result == nil || len(result.Data) == 0 {
		return "", fmt.Errorf("variant %d: %w", index, errors.New("empty image payload"))
	}

	ext := result.Extension
	if ext == "" {
		ext = brandedExtension
	}
	rawKey, err := s.storage.Save(ctx, result.Data, storage.SaveOptions{
		BaseName:  fmt.Sprintf("%s_%s_%d", rawFilePrefix, batchID, index),
		Extension: ext,
	})
	if err != nil {
		return "", newError(KindInternal, "generate", fmt.Sprintf("save raw variant %d", index), err)
	}
	written.add(rawKey)

	branded, err := s.brander.Brand(result.Data)
	if err != nil {
		return "", newError(KindUpstreamFailure, "generate", fmt.Sprintf("brand variant %d", index), err)
	}

	brandedKey, err := s.storage.Save(ctx, branded, storage.SaveOptions{
		BaseName:  fmt.Sprintf("%s_%s_%d", brandedFilePrefix, batchID, index),
		Extension: brandedExtension,
	})
	if err != nil {
		return "", newError(KindInternal, "generate", fmt.Sprintf("save branded variant %d", index), err)
	}
	written.add(brandedKey)

	if err := s.storage.Delete(ctx, rawKey); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"batch_id": batchID,
			"file":     rawKey,
		}).Warn("generation_raw_delete_failed")
		return brandedKey, nil
	}
	written.remove(rawKey)
	return brandedKey, nil
}

// writtenFiles 记录本批次已落盘、失败时需要清理的文件
type writtenFiles struct {
	mu   sync.Mutex
	keys []string
}

func (w *writtenFiles) add(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.keys = append(w.keys, key)
}

func (w *writtenFiles) remove(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, k := range w.keys {
		if k == key {
			w.keys = append(w.keys[:i], w.keys[i+1:]...)
			return
		}
	}
}

func (w *writtenFiles) list() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.keys...)
}

// discard 删除一组文件，失败只记日志
func (s *GenerationService) discard(ctx context.Context, keys []string) int {
	removed := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.storage.Delete(ctx, key); err != nil {
			logrus.WithError(err).WithField("file", key).Warn("generation_file_delete_failed")
			continue
		}
		removed++
	}
	return removed
}

// LoadImage 读取已生成的图片，供 /images/:filename 使用
func (s *GenerationService) LoadImage(ctx context.Context, filename string) ([]byte, string, error) {
	const op = "load image"
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, "", invalidRequest(op, "filename is required")
	}
	data, err := s.storage.Load(ctx, filename)
	if err != nil {
		// 非法 key 同样按不存在处理
		return nil, "", assetNotFound(op, filename, err)
	}
	return data, storage.ContentTypeForKey(filename), nil
}

// SweepExpired 清理早于 ttl 的批次及其文件，返回删除的文件数
func (s *GenerationService) SweepExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	expired, err := s.sessions.Sweep(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, newError(KindInternal, "sweep sessions", "", err)
	}
	removed := s.discard(ctx, expired)
	s.metrics.SessionFilesSwept(removed)
	if pending, err := s.sessions.Count(ctx); err == nil {
		s.metrics.SessionBatches(pending)
	}
	if len(expired) > 0 {
		logrus.WithFields(logrus.Fields{
			"expired": len(expired),
			"removed": removed,
		}).Info("generation_sessions_swept")
	}
	return removed, nil
}

// StartSweeper 按 interval 周期清理过期批次，ctx 取消后退出
func (s *GenerationService) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 || ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepExpired(ctx, ttl); err != nil {
					logrus.WithError(err).Warn("generation_sweep_failed")
				}
			}
		}
	}()
}
