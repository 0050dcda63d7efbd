package cache

import (
	"context"
	"fmt"
	"io"
	"time"

	"dbdb/pkg/core"
	"dbdb/pkg/storage"
	"dbdb/pkg/types"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedStore 是一个装饰器，它为底层的 storage.Store 添加 Redis 缓存层
// 它同时实现了 storage.LeafCache：root -> 有序叶子列表 (CBOR 编码)
type CachedStore struct {
	backend storage.Store // 被装饰的底层存储 (如 S3)
	client  *redis.Client
	ns      string
	ttl     time.Duration
	log     *zap.Logger
}

type Config struct {
	RedisURL string        // 标准连接字符串: redis://<user>:<password>@<host>:<port>/<db>
	TTL      time.Duration // 过期时间
	// Namespace 标识被装饰的那个存储 (目录绝对路径或 s3://bucket/prefix)
	// 多个存储共用一个 Redis 时靠它隔离，不能为空
	Namespace string
}

func NewCachedStore(backend storage.Store, cfg Config, log *zap.Logger) (*CachedStore, error) {
	if cfg.Namespace == "" {
		return nil, fmt.Errorf("redis cache namespace is required")
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := redis.NewClient(opts)

	// Fail-fast 连接检查
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedStore{
		backend: backend,
		client:  client,
		ns:      cfg.Namespace,
		ttl:     cfg.TTL,
		log:     log,
	}, nil
}

func (s *CachedStore) Close() error {
	return s.client.Close()
}

// cacheKey 生成 Redis Key: dbdb:<namespace>:obj:<hash>
func (s *CachedStore) cacheKey(hash types.Hash) string {
	return "dbdb:" + s.ns + ":obj:" + string(hash)
}

func (s *CachedStore) leavesKey(root types.Hash) string {
	return "dbdb:" + s.ns + ":leaves:" + string(root)
}

// Has 优先查 Redis
func (s *CachedStore) Has(ctx context.Context, hash types.Hash) (bool, error) {
	key := s.cacheKey(hash)

	val, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		// 缓存故障降级：退化为无缓存模式，直接查底层存储
		s.log.Warn("redis exists failed, falling back to backend", zap.Error(err))
	} else if val > 0 {
		return true, nil
	}

	found, err := s.backend.Has(ctx, hash)
	if err != nil {
		return false, err
	}

	// 回填。单写者模型下同步写即可，失败不影响主流程
	if found {
		if err := s.client.Set(ctx, key, "1", s.ttl).Err(); err != nil {
			s.log.Warn("redis fill failed", zap.Error(err))
		}
	}
	return found, nil
}

// Create 透传到底层存储，提交成功后再写缓存
func (s *CachedStore) Create(ctx context.Context, hash types.Hash) (storage.Writer, error) {
	w, err := s.backend.Create(ctx, hash)
	if err != nil {
		return nil, err
	}
	return &cachedWriter{Writer: w, onCommit: func() {
		if err := s.client.Set(ctx, s.cacheKey(hash), "1", s.ttl).Err(); err != nil {
			s.log.Warn("redis set failed", zap.Error(err))
		}
	}}, nil
}

type cachedWriter struct {
	storage.Writer
	onCommit func()
}

func (w *cachedWriter) Commit() error {
	if err := w.Writer.Commit(); err != nil {
		return err
	}
	w.onCommit()
	return nil
}

// Get 透传 - 不缓存 Blob 数据，Redis 内存只存元数据
func (s *CachedStore) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	return s.backend.Get(ctx, hash)
}

// ExpandHash 透传
func (s *CachedStore) ExpandHash(ctx context.Context, short types.HashPrefix) (types.Hash, error) {
	return s.backend.ExpandHash(ctx, short)
}

// GetLeaves 实现 storage.LeafCache
func (s *CachedStore) GetLeaves(ctx context.Context, root types.Hash) ([]types.Hash, bool) {
	data, err := s.client.Get(ctx, s.leavesKey(root)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn("redis get leaves failed", zap.Error(err))
		}
		return nil, false
	}
	leaves, err := core.DecodeLeaves(root, data)
	if err != nil {
		s.log.Warn("dropping corrupted leaf cache entry", zap.Stringer("root", root), zap.Error(err))
		s.client.Del(ctx, s.leavesKey(root))
		return nil, false
	}
	return leaves, true
}

// PutLeaves 实现 storage.LeafCache
func (s *CachedStore) PutLeaves(ctx context.Context, root types.Hash, leaves []types.Hash) {
	data, err := core.EncodeLeaves(root, leaves)
	if err != nil {
		s.log.Warn("encode leaves failed", zap.Error(err))
		return
	}
	if err := s.client.Set(ctx, s.leavesKey(root), data, s.ttl).Err(); err != nil {
		s.log.Warn("redis set leaves failed", zap.Error(err))
	}
}
