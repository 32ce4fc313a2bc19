package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"originmint/internal/entity"
	"originmint/internal/ipfs"
	"originmint/internal/metrics"
	"originmint/internal/session"
	"originmint/internal/storage"
)

const (
	defaultPinTimeout  = time.Minute
	metadataNamePrefix = "metadata_"
	collectionName     = "Origin"
	isoMillisLayout    = "2006-01-02T15:04:05.000Z"
)

// Pinner 把文件固定到 IPFS
type Pinner interface {
	PinFile(ctx context.Context, name, filename, contentType string, data []byte) (*ipfs.PinResult, error)
	PinJSON(ctx context.Context, name string, v any) (*ipfs.PinResult, error)
}

// PublishService 把选中的候选图及其元数据上传到 IPFS，成功后清理整批候选图
type PublishService struct {
	pinner   Pinner
	storage  storage.Storage
	sessions session.Store
	metrics  *metrics.Collectors
	timeout  time.Duration

	now          func() time.Time
	serialNumber func() int
}

func NewPublishService(pinner Pinner, store storage.Storage, sessions session.Store, m *metrics.Collectors, timeout time.Duration) *PublishService {
	if timeout <= 0 {
		timeout = defaultPinTimeout
	}
	return &PublishService{
		pinner:       pinner,
		storage:      store,
		sessions:     sessions,
		metrics:      m,
		timeout:      timeout,
		now:          time.Now,
		serialNumber: func() int { return rand.Intn(9999) + 1 },
	}
}

// Publish 上传图片与元数据。发布期间占用整批，同批兄弟文件的并发发布返回 ErrConflict。
// 任一上传失败整体失败并释放占用，已固定的图片不会回滚。
func (s *PublishService) Publish(ctx context.Context, req entity.PublishRequest) (*entity.PublishedAsset, error) {
	const op = "publish"

	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, invalidRequest(op, "filename is required")
	}
	if s.pinner == nil {
		return nil, newError(KindConfiguration, op, "pinning service is not configured", nil)
	}

	logger := logrus.WithField("file", filename)

	entry, err := s.sessions.Claim(ctx, filename)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotFound):
			return nil, assetNotFound(op, filename, err)
		case errors.Is(err, session.ErrClaimed):
			logger.Warn("ipfs_publish_batch_busy")
			return nil, classify(op, KindConflict, err)
		}
		return nil, newError(KindInternal, op, "session claim failed", err)
	}
	logger = logger.WithField("batch_id", entry.BatchID)

	data, err := s.storage.Load(ctx, filename)
	if err != nil {
		s.release(ctx, entry.BatchID)
		return nil, assetNotFound(op, filename, err)
	}

	asset, err := s.pin(ctx, filename, entry.Prompt, req, data)
	s.metrics.Publish(metrics.Outcome(err))
	if err != nil {
		s.release(ctx, entry.BatchID)
		classified := classify(op, KindUpstreamFailure, err)
		logger.WithError(classified).Error("ipfs_publish_failed")
		return nil, classified
	}

	s.cleanupBatch(ctx, filename)

	logger.WithFields(logrus.Fields{
		"image_cid":    asset.ImageCID,
		"metadata_cid": asset.MetadataCID,
	}).Info("ipfs_publish_succeeded")
	return asset, nil
}

// release 释放批次占用，失败时占用键会随 TTL 过期
func (s *PublishService) release(ctx context.Context, batchID string) {
	if err := s.sessions.Release(context.WithoutCancel(ctx), batchID); err != nil {
		logrus.WithError(err).WithField("batch_id", batchID).Warn("generation_batch_release_failed")
	}
}

func (s *PublishService) pin(ctx context.Context, filename, prompt string, req entity.PublishRequest, data []byte) (*entity.PublishedAsset, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	image, err := s.pinner.PinFile(ctx, filename, filename, storage.ContentTypeForKey(filename), data)
	s.metrics.ObserveUpstream("pinata", started)
	if err != nil {
		return nil, fmt.Errorf("pin image: %w", err)
	}

	metadata := s.buildMetadata(req, prompt, image.URL)

	started = time.Now()
	meta, err := s.pinner.PinJSON(ctx, metadataNamePrefix+filename, metadata)
	s.metrics.ObserveUpstream("pinata", started)
	if err != nil {
		return nil, fmt.Errorf("pin metadata: %w", err)
	}

	return &entity.PublishedAsset{
		ImageURL:    image.URL,
		MetadataURL: meta.URL,
		ImageCID:    image.CID,
		MetadataCID: meta.CID,
		Metadata:    metadata,
	}, nil
}

// buildMetadata 名称缺省为随机编号，描述缺省为生成时的 prompt
func (s *PublishService) buildMetadata(req entity.PublishRequest, prompt, imageURL string) entity.NFTMetadata {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = fmt.Sprintf("Origin Genesis #%d", s.serialNumber())
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = prompt
	}
	return entity.NFTMetadata{
		Name:        name,
		Description: description,
		Image:       imageURL,
		Attributes: []entity.MetadataAttribute{
			{TraitType: "Collection", Value: collectionName},
			{TraitType: "Generated", Value: s.now().UTC().Format(isoMillisLayout)},
		},
	}
}

// cleanupBatch 移除整批会话并删除文件
func (s *PublishService) cleanupBatch(ctx context.Context, filename string) {
	ctx = context.WithoutCancel(ctx)
	siblings, err := s.sessions.TakeBatch(ctx, filename)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logrus.WithError(err).WithField("file", filename).Warn("generation_batch_cleanup_failed")
		}
		return
	}
	for _, name := range siblings {
		if err := s.storage.Delete(ctx, name); err != nil {
			logrus.WithError(err).WithField("file", name).Warn("generation_file_delete_failed")
		}
	}
	logrus.WithFields(logrus.Fields{
		"file":  filename,
		"files": siblings,
	}).Info("generation_batch_cleaned")
}
