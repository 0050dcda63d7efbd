package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"dbdb/pkg/storage"
	"dbdb/pkg/types"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "objects/"

// Adapter 把对象存进嵌入式 Badger KV
// Key 沿用磁盘布局: "objects/aa/bbcc..."，方便按前缀扫描
type Adapter struct {
	db *badger.DB
}

// NewAdapter 打开 (或创建) dir 下的 Badger 数据库
func NewAdapter(dir string) (*Adapter, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // 关闭 Badger 自带日志，由调用方记录

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &Adapter{db: db}, nil
}

// NewInMemory 用于测试
func NewInMemory() (*Adapter, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Adapter{db: db}, nil
}

func (s *Adapter) Close() error {
	return s.db.Close()
}

func key(hash types.Hash) ([]byte, error) {
	if err := storage.ValidateHash(hash); err != nil {
		return nil, err
	}
	return []byte(keyPrefix + storage.ShardKey(hash)), nil
}

// Create 在 Commit 时用一个事务写入，事务保证了可见性的原子性
func (s *Adapter) Create(ctx context.Context, hash types.Hash) (storage.Writer, error) {
	k, err := key(hash)
	if err != nil {
		return nil, err
	}
	return storage.NewBufferWriter(func(data []byte) error {
		// data 属于 BufferWriter，Badger 要求 value 在事务提交前不被修改
		val := append([]byte(nil), data...)
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set(k, val)
		})
	}), nil
}

func (s *Adapter) Get(ctx context.Context, hash types.Hash) (io.ReadCloser, error) {
	k, err := key(hash)
	if err != nil {
		return nil, err
	}

	var valCopy []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		valCopy, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("badger get failed: %w", err)
	}
	return io.NopCloser(bytes.NewReader(valCopy)), nil
}

func (s *Adapter) Has(ctx context.Context, hash types.Hash) (bool, error) {
	k, err := key(hash)
	if err != nil {
		return false, err
	}
	err = s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(k)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Adapter) ExpandHash(ctx context.Context, prefix types.HashPrefix) (types.Hash, error) {
	if err := storage.ValidatePrefix(prefix); err != nil {
		return "", err
	}
	p := string(prefix)
	scan := []byte(keyPrefix + p[:2] + "/" + p[2:])

	var matches []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = scan
		it := txn.NewIterator(opts)
		defer it.Close()

		// 只需要知道 0 / 1 / 多个
		for it.Rewind(); it.Valid() && len(matches) < 2; it.Next() {
			matches = append(matches, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, prefix)
	case 1:
		k := strings.TrimPrefix(matches[0], keyPrefix)
		return types.Hash(strings.Replace(k, "/", "", 1)), nil
	default:
		return "", fmt.Errorf("%w: %s", storage.ErrAmbiguousHash, prefix)
	}
}
