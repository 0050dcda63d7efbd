package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dbdb/pkg/compress"
	"dbdb/pkg/core"
	"dbdb/pkg/engine"
	"dbdb/pkg/index"
	"dbdb/pkg/logger"
	"dbdb/pkg/meta"
	"dbdb/pkg/metrics"
	"dbdb/pkg/storage"
	"dbdb/pkg/storage/badger"
	"dbdb/pkg/storage/cache"
	"dbdb/pkg/storage/disk"
	"dbdb/pkg/storage/s3"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	ObjectsDir  = "objects"
	IndexFile   = "index"
	BadgerDir   = "badger"
	CatalogFile = "catalog.db"
)

// App 是整个应用程序的依赖容器 (Dependency Container)
// 它持有所有"单例"服务，由 Viper 配置组装
type App struct {
	Workdir string

	Store   storage.Store
	Index   *index.Index
	Catalog *meta.Repository
	Engine  *engine.Engine
	Log     *zap.Logger
	Metrics *metrics.Metrics

	closers []io.Closer
}

// NewApp 是工厂函数，负责组装这一台机器
// 它遵循 Viper 的配置，但不知道具体的 CLI 命令
func NewApp(ctx context.Context) (*App, error) {
	log, err := logger.New(logger.Config{
		Level:  viper.GetString("log.level"),
		Format: viper.GetString("log.format"),
	})
	if err != nil {
		return nil, err
	}

	workdir := viper.GetString("store.workdir")
	if workdir == "" {
		return nil, errors.New("store workdir not set")
	}

	a := &App{Workdir: workdir, Log: log, Metrics: metrics.New()}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	hasher, err := core.NewHasher(viper.GetString("store.hash"))
	if err != nil {
		return err
	}
	codec, err := compress.Lookup(viper.GetString("store.codec"))
	if err != nil {
		return err
	}

	store, err := initStore(ctx, a.Workdir, a.Log)
	if err != nil {
		return err
	}
	a.track(store)

	opts := []engine.Option{
		engine.WithHasher(hasher),
		engine.WithCodec(codec),
		engine.WithBlockSize(viper.GetInt("store.block_size")),
		engine.WithLogger(a.Log),
		engine.WithMetrics(a.Metrics),
		engine.WithNodeCache(viper.GetInt("cache.nodes")),
		engine.WithVerifyWorkers(viper.GetInt("verify.workers")),
	}

	// Redis 是可选的缓存层，装饰在任何后端之上
	if url := viper.GetString("redis.url"); url != "" {
		ns, err := storeNamespace(a.Workdir)
		if err != nil {
			return err
		}
		cached, err := cache.NewCachedStore(store, cache.Config{
			RedisURL:  url,
			TTL:       viper.GetDuration("redis.ttl"),
			Namespace: ns,
		}, a.Log.Named("redis"))
		if err != nil {
			return err
		}
		a.track(cached)
		store = cached
		opts = append(opts, engine.WithLeafCache(cached))
	}
	a.Store = store

	catalog, err := initCatalog(ctx, a.Workdir)
	if err != nil {
		return err
	}
	if catalog != nil {
		a.track(catalog)
		a.Catalog = meta.NewRepository(catalog)
		opts = append(opts, engine.WithCatalog(a.Catalog))
	}

	a.Index = index.NewIndex(filepath.Join(a.Workdir, IndexFile), index.WithMetrics(a.Metrics))
	a.Engine = engine.New(store, a.Index, opts...)

	a.Log.Debug("app initialized",
		zap.String("workdir", a.Workdir),
		zap.String("storage", viper.GetString("storage.type")),
		zap.String("hash", hasher.Name()),
		zap.String("codec", codec.Name()))
	return nil
}

// initStore 按 storage.type 选择存储后端
func initStore(ctx context.Context, workdir string, log *zap.Logger) (storage.Store, error) {
	storageType := viper.GetString("storage.type")

	switch storageType {
	case "disk", "":
		s, err := disk.NewAdapter(filepath.Join(workdir, ObjectsDir))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "badger":
		s, err := badger.NewAdapter(filepath.Join(workdir, BadgerDir))
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		cfg := s3.Config{
			Endpoint:        viper.GetString("s3.endpoint"),
			Region:          viper.GetString("s3.region"),
			Bucket:          viper.GetString("s3.bucket"),
			Prefix:          viper.GetString("s3.prefix"),
			AccessKeyID:     viper.GetString("s3.access_key"),
			SecretAccessKey: viper.GetString("s3.secret_key"),
		}
		s, err := s3.NewAdapter(ctx, cfg, log.Named("s3"))
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// storeNamespace 返回当前后端的唯一标识，作为 Redis key 的命名空间
// 本地后端用对象目录的绝对路径，s3 用 s3://bucket/prefix
func storeNamespace(workdir string) (string, error) {
	switch storageType := viper.GetString("storage.type"); storageType {
	case "disk", "":
		return absDir(workdir, ObjectsDir)
	case "badger":
		return absDir(workdir, BadgerDir)
	case "s3":
		return "s3://" + viper.GetString("s3.bucket") + "/" + strings.Trim(viper.GetString("s3.prefix"), "/"), nil
	default:
		return "", fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

func absDir(workdir, dir string) (string, error) {
	p, err := filepath.Abs(filepath.Join(workdir, dir))
	if err != nil {
		return "", fmt.Errorf("failed to resolve workdir: %w", err)
	}
	return p, nil
}

// initCatalog 没配置 catalog 时返回 nil
func initCatalog(ctx context.Context, workdir string) (*meta.DB, error) {
	driver := viper.GetString("catalog.driver")
	if driver == "" || driver == meta.DriverNone {
		return nil, nil
	}

	dsn := viper.GetString("catalog.dsn")
	if dsn == "" && driver == meta.DriverSQLite {
		dsn = filepath.Join(workdir, CatalogFile)
	}
	return meta.Open(ctx, meta.Config{
		Driver:  driver,
		DSN:     dsn,
		Verbose: viper.GetString("log.level") == "debug",
	})
}

func (a *App) track(v any) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

// Close 按创建的逆序释放资源
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}

// WriteMetrics 把本次运行的指标导出为 textfile
func (a *App) WriteMetrics(path string) error {
	if path == "" {
		return nil
	}
	return a.Metrics.WriteTextfile(path)
}

// Init 创建工作目录骨架: objects/ 和空的 index
func Init(workdir string) error {
	if _, err := disk.NewAdapter(filepath.Join(workdir, ObjectsDir)); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(workdir, IndexFile), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return f.Close()
}
