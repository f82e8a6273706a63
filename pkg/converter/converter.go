// Package converter は生成済みのラスタ画像を WebP に一括変換します。
package converter

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shouni/gemini-image-server/pkg/imgutil"
)

// ファイルごとの変換結果ステータス
const (
	StatusConverted = "converted"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Outcome はファイル 1 件分の変換結果です。
type Outcome struct {
	Source string `json:"source"`
	Output string `json:"output,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Summary はディレクトリ変換全体の集計です。
type Summary struct {
	Results   []Outcome `json:"results"`
	Converted int       `json:"converted"`
	Skipped   int       `json:"skipped"`
	Failed    int       `json:"failed"`
}

// 変換対象とみなす拡張子
var rasterExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// ConvertDir は root 以下を再帰的に走査し、ラスタ画像を隣接する .webp に
// 変換します。既に変換済みのファイルは force が true でない限りスキップし、
// 個々の失敗は記録して走査を続けます。
func ConvertDir(ctx context.Context, root string, quality int, force bool) (*Summary, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("変換対象ディレクトリを開けません (%s): %w", root, err)
	}

	summary := &Summary{Results: []Outcome{}}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !rasterExtensions[ext] {
			return nil
		}

		output := strings.TrimSuffix(path, filepath.Ext(path)) + ".webp"
		if !force {
			if _, err := os.Stat(output); err == nil {
				summary.Results = append(summary.Results, Outcome{Source: path, Output: output, Status: StatusSkipped})
				summary.Skipped++
				return nil
			}
		}

		if err := convertFile(path, output, quality); err != nil {
			slog.WarnContext(ctx, "WebP変換に失敗しました", "source", path, "error", err)
			summary.Results = append(summary.Results, Outcome{Source: path, Status: StatusFailed, Error: err.Error()})
			summary.Failed++
			return nil
		}

		summary.Results = append(summary.Results, Outcome{Source: path, Output: output, Status: StatusConverted})
		summary.Converted++
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("ディレクトリ走査に失敗しました (%s): %w", root, walkErr)
	}

	slog.InfoContext(ctx, "WebP変換が完了しました",
		"root", root, "converted", summary.Converted, "skipped", summary.Skipped, "failed", summary.Failed)
	return summary, nil
}

func convertFile(source, output string, quality int) error {
	data, err := os.ReadFile(source)
	if err != nil {
		return err
	}

	webpData, err := imgutil.EncodeWebP(data, quality)
	if err != nil {
		return err
	}
	return os.WriteFile(output, webpData, 0o644)
}
