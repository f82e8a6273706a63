// Package media は生成済み WebP 画像の列挙とエクスポートを提供します。
package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Image は列挙された WebP 画像 1 件分の情報です。
// Base64 はアップロード用途にそのまま使えるエンコード済みデータです。
type Image struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Base64   string `json:"base64"`
	Size     int64  `json:"size"`
}

// RecentWebP は dir 直下の WebP ファイルを更新時刻の新しい順に
// 最大 limit 件返します。ディレクトリが無い場合は空の結果です。
func RecentWebP(dir string, limit int) ([]Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Image{}, nil
		}
		return nil, fmt.Errorf("ディレクトリの読み取りに失敗しました (%s): %w", dir, err)
	}

	type candidate struct {
		name    string
		modTime int64
		size    int64
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".webp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			name:    entry.Name(),
			modTime: info.ModTime().UnixNano(),
			size:    info.Size(),
		})
	}

	// 新しい順
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].modTime > candidates[j].modTime
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	images := make([]Image, 0, len(candidates))
	for _, c := range candidates {
		path := filepath.Join(dir, c.name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("画像の読み取りに失敗しました (%s): %w", path, err)
		}
		images = append(images, Image{
			Filename: c.name,
			Path:     path,
			Base64:   base64.StdEncoding.EncodeToString(data),
			Size:     c.size,
		})
	}
	return images, nil
}
