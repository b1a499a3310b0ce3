// Package store 基于BadgerDB的续爬记录
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RecoveryAshes/naracrawler/internal/models"
)

const (
	docKeyPrefix = "doc:"
	resumeDBDir  = "resume_db"
)

// badgerLogger 将badger日志转到zerolog
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.logger.Error().Msgf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.logger.Warn().Msgf(f, v...) }

// badger的Info日志很多,降为Debug
func (l badgerLogger) Infof(f string, v ...interface{})  { l.logger.Debug().Msgf(f, v...) }
func (l badgerLogger) Debugf(f string, v ...interface{}) { l.logger.Trace().Msgf(f, v...) }

// ResumeStore 记录已成功爬取的文档号
type ResumeStore struct {
	db    *badger.DB
	path  string
	count atomic.Int64
}

// Open 打开stateDir下的续爬数据库
// resume为false时删除旧数据重新开始
func Open(stateDir string, resume bool) (*ResumeStore, error) {
	dbPath := filepath.Join(stateDir, resumeDBDir)

	if !resume {
		if err := os.RemoveAll(dbPath); err != nil {
			log.Warn().Err(err).Str("path", dbPath).Msg("删除旧的续爬数据失败")
		}
	}
	if err := os.MkdirAll(dbPath, 0755); err != nil {
		return nil, fmt.Errorf("创建续爬目录失败 %s: %w", dbPath, err)
	}

	opts := badger.DefaultOptions(dbPath).
		WithLogger(badgerLogger{logger: log.With().Str("component", "badger").Logger()}).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("打开续爬数据库失败 %s: %w", dbPath, err)
	}

	s := &ResumeStore{db: db, path: dbPath}
	if resume {
		n, err := s.countKeys()
		if err != nil {
			log.Warn().Err(err).Msg("统计续爬记录失败")
		}
		s.count.Store(int64(n))
		log.Info().Int("done", n).Str("path", dbPath).Msg("已加载续爬记录")
	}
	return s, nil
}

func (s *ResumeStore) countKeys() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(docKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

const maxConflictRetries = 10

func (s *ResumeStore) update(fn func(txn *badger.Txn) error) error {
	for i := 0; i < maxConflictRetries; i++ {
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("事务冲突重试%d次仍失败", maxConflictRetries)
}

// MarkDone 保存一个成功文档的记录,已存在时覆盖
func (s *ResumeStore) MarkDone(cp models.Checkpoint) error {
	if cp.DocumentID == "" {
		return errors.New("文档号为空")
	}
	data, err := cp.ToJSON()
	if err != nil {
		return fmt.Errorf("序列化续爬记录失败: %w", err)
	}

	key := []byte(docKeyPrefix + cp.DocumentID)
	added := false
	err = s.update(func(txn *badger.Txn) error {
		_, getErr := txn.Get(key)
		switch {
		case errors.Is(getErr, badger.ErrKeyNotFound):
			added = true
		case getErr != nil:
			return getErr
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("写入续爬记录 %s 失败: %w", cp.DocumentID, err)
	}
	if added {
		s.count.Add(1)
	}
	return nil
}

// Get 读取文档的记录,不存在时返回nil
func (s *ResumeStore) Get(docID string) (*models.Checkpoint, error) {
	var cp *models.Checkpoint
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(docKeyPrefix + docID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var c models.Checkpoint
			if err := c.FromJSON(val); err != nil {
				return err
			}
			cp = &c
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("读取续爬记录 %s 失败: %w", docID, err)
	}
	return cp, nil
}

// IsDone 文档是否已成功爬取
func (s *ResumeStore) IsDone(docID string) (bool, error) {
	if docID == "" {
		return false, nil
	}
	done := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(docKeyPrefix + docID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		done = true
		return nil
	})
	return done, err
}

// Count 已记录的文档数
func (s *ResumeStore) Count() int {
	return int(s.count.Load())
}

// Path 数据库目录
func (s *ResumeStore) Path() string {
	return s.path
}

// Close 关闭数据库
func (s *ResumeStore) Close() error {
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("关闭续爬数据库失败: %w", err)
	}
	s.db = nil
	return nil
}
