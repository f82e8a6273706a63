// Package queue はバッチ生成要求の永続キューを管理します。
//
// キューファイル（JSON）が唯一の信頼できる状態であり、すべての操作は
// 読み込み → 変更 → 原子的書き込み のサイクルで行います。プロセス内に
// 長寿命のキャッシュは持ちません。
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/shouni/gemini-image-server/pkg/domain"
)

// queueDocument はキューファイルのオンディスク表現です。
// 旧実装のファイル形式（トップレベル prompts 配列）と互換です。
type queueDocument struct {
	Prompts []domain.QueueItem `json:"prompts"`
}

// Store はキューファイルへの CRUD 操作を提供します。
type Store struct {
	path    string
	maxRefs int
	lock    *flock.Flock
}

// NewStore はキューファイルのパスと参照画像上限を束ねた Store を返します。
func NewStore(path string, maxRefs int) *Store {
	return &Store{
		path:    path,
		maxRefs: maxRefs,
		lock:    flock.New(path + ".lock"),
	}
}

// withLock はファイルロックを取得して fn を実行します。
// ホスト環境はツール呼び出しを直列化する前提ですが、同一ファイルを
// 触る別プロセスへの保険としてロックを取ります。
func (s *Store) withLock(fn func() error) error {
	if err := s.lock.Lock(); err != nil {
		return &domain.StorageError{Op: "lock", Path: s.path, Err: err}
	}
	defer func() {
		_ = s.lock.Unlock()
	}()
	return fn()
}

// load はキューファイルを読み込みます。ファイルが無い場合は空キューです。
func (s *Store) load() ([]domain.QueueItem, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &domain.StorageError{Op: "read", Path: s.path, Err: err}
	}

	var doc queueDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &domain.StorageError{Op: "parse", Path: s.path, Err: err}
	}
	return doc.Prompts, nil
}

// save はキュー全体を一時ファイル経由で原子的に書き換えます。
func (s *Store) save(items []domain.QueueItem) error {
	if items == nil {
		items = []domain.QueueItem{}
	}
	data, err := json.MarshalIndent(queueDocument{Prompts: items}, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "encode", Path: s.path, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return &domain.StorageError{Op: "mkdir", Path: s.path, Err: err}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &domain.StorageError{Op: "write", Path: s.path, Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &domain.StorageError{Op: "rename", Path: s.path, Err: err}
	}
	return nil
}

// Add はアイテムを検証してキュー末尾に追加し、1始まりの位置と
// 追加後の総数を返します。検証違反時はキューを変更しません。
func (s *Store) Add(item domain.QueueItem) (position, total int, err error) {
	item.Normalize()
	if err := item.Validate(s.maxRefs); err != nil {
		return 0, 0, err
	}

	err = s.withLock(func() error {
		items, err := s.load()
		if err != nil {
			return err
		}

		if item.Filename != "" {
			for _, existing := range items {
				if existing.Filename == item.Filename {
					return &domain.ValidationError{
						Field:  "filename",
						Reason: fmt.Sprintf("%q is already queued", item.Filename),
					}
				}
			}
		}

		items = append(items, item)
		if err := s.save(items); err != nil {
			return err
		}
		position = len(items)
		total = len(items)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return position, total, nil
}

// Items はキューの順序付きスナップショットを返します。
// 空キューはエラーではなく空スライスです。
func (s *Store) Items() ([]domain.QueueItem, error) {
	var items []domain.QueueItem
	err := s.withLock(func() error {
		loaded, err := s.load()
		if err != nil {
			return err
		}
		items = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Remove は識別子（1始まりの位置またはファイル名の完全一致）で
// アイテムを取り除きます。位置として解釈できて範囲内ならば位置優先、
// そうでなければファイル名照合、どちらも外れたら NotFoundError です。
// 後続アイテムの位置は 1 つずつ繰り上がります。
func (s *Store) Remove(identifier string) (removed domain.QueueItem, remaining int, err error) {
	err = s.withLock(func() error {
		items, err := s.load()
		if err != nil {
			return err
		}

		idx := -1
		if n, convErr := strconv.Atoi(identifier); convErr == nil && n >= 1 && n <= len(items) {
			idx = n - 1
		} else {
			for i, it := range items {
				if it.Filename != "" && it.Filename == identifier {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			return &domain.NotFoundError{Identifier: identifier}
		}

		removed = items[idx]
		items = append(items[:idx], items[idx+1:]...)
		if err := s.save(items); err != nil {
			return err
		}
		remaining = len(items)
		return nil
	})
	if err != nil {
		return domain.QueueItem{}, 0, err
	}
	return removed, remaining, nil
}

// Clear はキューを空として永続化します。
func (s *Store) Clear() error {
	return s.withLock(func() error {
		return s.save(nil)
	})
}
