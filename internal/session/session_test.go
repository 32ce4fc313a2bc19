package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clockSetter func(func() time.Time)

func newStores(t *testing.T) map[string]struct {
	store    Store
	setClock clockSetter
} {
	t.Helper()
	mem := NewMemoryStore()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	rs := NewRedisStore(client, "test:gen", time.Hour)

	return map[string]struct {
		store    Store
		setClock clockSetter
	}{
		"memory": {store: mem, setClock: func(f func() time.Time) { mem.now = f }},
		"redis":  {store: rs, setClock: func(f func() time.Time) { rs.now = f }},
	}
}

func TestStoreLookupAndTake(t *testing.T) {
	for name, tc := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			files := []string{"branded_b1_0.png", "branded_b1_1.png", "branded_b1_2.png"}
			require.NoError(t, tc.store.PutBatch(ctx, "b1", "a cyberpunk fox", files))

			entry, err := tc.store.Lookup(ctx, "branded_b1_1.png")
			require.NoError(t, err)
			assert.Equal(t, "a cyberpunk fox", entry.Prompt)
			assert.Equal(t, "b1", entry.BatchID)
			assert.ElementsMatch(t, files, entry.Siblings)

			taken, err := tc.store.TakeBatch(ctx, "branded_b1_0.png")
			require.NoError(t, err)
			assert.ElementsMatch(t, files, taken)

			for _, f := range files {
				_, err := tc.store.Lookup(ctx, f)
				assert.ErrorIs(t, err, ErrNotFound, f)
			}
			_, err = tc.store.TakeBatch(ctx, "branded_b1_2.png")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreTakeBatchIsExclusive(t *testing.T) {
	for name, tc := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			files := []string{"x_0.png", "x_1.png", "x_2.png"}
			require.NoError(t, tc.store.PutBatch(ctx, "x", "p", files))

			var wins int32
			var wg sync.WaitGroup
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					if _, err := tc.store.TakeBatch(ctx, files[i%len(files)]); err == nil {
						atomic.AddInt32(&wins, 1)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
		})
	}
}

func TestStoreSweep(t *testing.T) {
	for name, tc := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

			tc.setClock(func() time.Time { return base })
			require.NoError(t, tc.store.PutBatch(ctx, "old", "p", []string{"old_0.png", "old_1.png"}))
			tc.setClock(func() time.Time { return base.Add(2 * time.Hour) })
			require.NoError(t, tc.store.PutBatch(ctx, "new", "p", []string{"new_0.png"}))

			swept, err := tc.store.Sweep(ctx, base.Add(time.Hour))
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"old_0.png", "old_1.png"}, swept)

			_, err = tc.store.Lookup(ctx, "old_0.png")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = tc.store.Lookup(ctx, "new_0.png")
			assert.NoError(t, err)
		})
	}
}

func TestStoreClear(t *testing.T) {
	for name, tc := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i := 0; i < 3; i++ {
				id := fmt.Sprintf("b%d", i)
				require.NoError(t, tc.store.PutBatch(ctx, id, "p", []string{id + "_0.png"}))
			}
			require.NoError(t, tc.store.Clear(ctx))
			for i := 0; i < 3; i++ {
				_, err := tc.store.Lookup(ctx, fmt.Sprintf("b%d_0.png", i))
				assert.ErrorIs(t, err, ErrNotFound)
			}
		})
	}
}

func TestMemoryStoreIsolatedPerInstance(t *testing.T) {
	ctx := context.Background()
	a := NewMemoryStore()
	b := NewMemoryStore()
	require.NoError(t, a.PutBatch(ctx, "b", "p", []string{"f.png"}))

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = b.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreClaimRelease(t *testing.T) {
	for name, tc := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			files := []string{"c_0.png", "c_1.png", "c_2.png"}
			require.NoError(t, tc.store.PutBatch(ctx, "c", "a prompt", files))

			entry, err := tc.store.Claim(ctx, files[0])
			require.NoError(t, err)
			assert.Equal(t, "c", entry.BatchID)
			assert.Equal(t, "a prompt", entry.Prompt)

			// 同批任意兄弟文件都拿不到
			for _, f := range files {
				_, err := tc.store.Claim(ctx, f)
				assert.ErrorIs(t, err, ErrClaimed, f)
			}
			// 占用不影响查询
			_, err = tc.store.Lookup(ctx, files[1])
			assert.NoError(t, err)

			require.NoError(t, tc.store.Release(ctx, entry.BatchID))
			entry, err = tc.store.Claim(ctx, files[2])
			require.NoError(t, err)
			assert.Equal(t, files[2], entry.Filename)

			// 取走批次后占用一并清除
			_, err = tc.store.TakeBatch(ctx, files[2])
			require.NoError(t, err)
			_, err = tc.store.Claim(ctx, files[0])
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, tc.store.PutBatch(ctx, "c", "again", files))
			_, err = tc.store.Claim(ctx, files[0])
			assert.NoError(t, err)

			_, err = tc.store.Claim(ctx, "missing.png")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreClaimIsExclusive(t *testing.T) {
	for name, tc := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			files := []string{"y_0.png", "y_1.png", "y_2.png"}
			require.NoError(t, tc.store.PutBatch(ctx, "y", "p", files))

			var wins, claimed int32
			var wg sync.WaitGroup
			for i := 0; i < 12; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := tc.store.Claim(ctx, files[i%len(files)])
					switch {
					case err == nil:
						atomic.AddInt32(&wins, 1)
					case errors.Is(err, ErrClaimed):
						atomic.AddInt32(&claimed, 1)
					}
				}(i)
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins)
			assert.Equal(t, int32(11), claimed)
		})
	}
}

func TestStoreCount(t *testing.T) {
	for name, tc := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, tc.store.PutBatch(ctx, "a", "p", []string{"a_0.png", "a_1.png"}))
			require.NoError(t, tc.store.PutBatch(ctx, "b", "p", []string{"b_0.png"}))

			n, err := tc.store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			_, err = tc.store.TakeBatch(ctx, "a_1.png")
			require.NoError(t, err)
			n, err = tc.store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}
