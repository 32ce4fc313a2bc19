package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type redisBatch struct {
	Prompt    string    `json:"prompt"`
	Filenames []string  `json:"filenames"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisStore 把会话保存在 Redis 中，多实例部署时共享批次记账。
//
// 键布局：
//
//	{prefix}:file:{filename}  -> batchID
//	{prefix}:batch:{batchID}  -> JSON(redisBatch)
//	{prefix}:batches          -> ZSET(batchID, createdAt)
//	{prefix}:claim:{batchID}  -> 正在发布的文件名，SETNX 占用
//
// 键的过期时间是 TTL 的两倍，sweeper 按 ZSET 先一步清理并删除文件。
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "iopn:gen"
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) fileKey(filename string) string { return s.prefix + ":file:" + filename }
func (s *RedisStore) batchKey(batchID string) string { return s.prefix + ":batch:" + batchID }
func (s *RedisStore) indexKey() string               { return s.prefix + ":batches" }
func (s *RedisStore) claimKey(batchID string) string { return s.prefix + ":claim:" + batchID }

func (s *RedisStore) PutBatch(ctx context.Context, batchID, prompt string, filenames []string) error {
	createdAt := s.now().UTC()
	payload, err := json.Marshal(redisBatch{Prompt: prompt, Filenames: filenames, CreatedAt: createdAt})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	expire := 2 * s.ttl

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.batchKey(batchID), payload, expire)
	for _, name := range filenames {
		pipe.Set(ctx, s.fileKey(name), batchID, expire)
	}
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(createdAt.Unix()), Member: batchID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store batch in redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Lookup(ctx context.Context, filename string) (*Entry, error) {
	batchID, b, err := s.loadByFile(ctx, filename)
	if err != nil {
		return nil, err
	}
	return &Entry{
		Filename:  filename,
		BatchID:   batchID,
		Prompt:    b.Prompt,
		Siblings:  b.Filenames,
		CreatedAt: b.CreatedAt,
	}, nil
}

func (s *RedisStore) Claim(ctx context.Context, filename string) (*Entry, error) {
	batchID, b, err := s.loadByFile(ctx, filename)
	if err != nil {
		return nil, err
	}
	// 占用键随 TTL 过期，进程崩溃也不会永久锁住批次
	ok, err := s.client.SetNX(ctx, s.claimKey(batchID), filename, s.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("claim session batch: %w", err)
	}
	if !ok {
		return nil, ErrClaimed
	}
	return &Entry{
		Filename:  filename,
		BatchID:   batchID,
		Prompt:    b.Prompt,
		Siblings:  b.Filenames,
		CreatedAt: b.CreatedAt,
	}, nil
}

func (s *RedisStore) Release(ctx context.Context, batchID string) error {
	if err := s.client.Del(ctx, s.claimKey(batchID)).Err(); err != nil {
		return fmt.Errorf("release session batch: %w", err)
	}
	return nil
}

func (s *RedisStore) TakeBatch(ctx context.Context, filename string) ([]string, error) {
	batchID, b, err := s.loadByFile(ctx, filename)
	if err != nil {
		return nil, err
	}
	removed, err := s.removeBatch(ctx, batchID, b.Filenames)
	if err != nil {
		return nil, err
	}
	if !removed {
		// 另一个请求已经取走了这一批
		return nil, ErrNotFound
	}
	return b.Filenames, nil
}

func (s *RedisStore) Sweep(ctx context.Context, olderThan time.Time) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(olderThan.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list expired batches: %w", err)
	}

	var swept []string
	for _, batchID := range ids {
		b, err := s.loadBatch(ctx, batchID)
		if errors.Is(err, ErrNotFound) {
			s.client.ZRem(ctx, s.indexKey(), batchID)
			continue
		}
		if err != nil {
			return swept, err
		}
		removed, err := s.removeBatch(ctx, batchID, b.Filenames)
		if err != nil {
			return swept, err
		}
		if removed {
			swept = append(swept, b.Filenames...)
		}
	}
	return swept, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count session batches: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan session keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *RedisStore) loadByFile(ctx context.Context, filename string) (string, *redisBatch, error) {
	batchID, err := s.client.Get(ctx, s.fileKey(filename)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("get session file: %w", err)
	}
	b, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return "", nil, err
	}
	return batchID, b, nil
}

func (s *RedisStore) loadBatch(ctx context.Context, batchID string) (*redisBatch, error) {
	raw, err := s.client.Get(ctx, s.batchKey(batchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session batch: %w", err)
	}
	var b redisBatch
	if err := json.Unmarshal(raw, &b); err != nil {
		logrus.WithError(err).WithField("batch_id", batchID).Warn("corrupted session batch in redis")
		return nil, ErrNotFound
	}
	return &b, nil
}

// removeBatch 删除批次相关的键，只有真正删掉 batch 键的调用方返回 true
func (s *RedisStore) removeBatch(ctx context.Context, batchID string, filenames []string) (bool, error) {
	keys := make([]string, 0, len(filenames)+1)
	for _, name := range filenames {
		keys = append(keys, s.fileKey(name))
	}

	pipe := s.client.TxPipeline()
	delBatch := pipe.Del(ctx, s.batchKey(batchID))
	keys = append(keys, s.claimKey(batchID))
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), batchID)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("remove session batch: %w", err)
	}
	return delBatch.Val() == 1, nil
}

var _ Store = (*RedisStore)(nil)
