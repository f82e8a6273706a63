package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/gemini-image-server/pkg/domain"
)

// Generator はバッチ実行が消費する生成クライアントの窓口です。
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.ImageResponse, error)
}

// resultsFilename は実行レポートの書き出し先ファイル名です。
const resultsFilename = "batch_results.json"

// Runner はキュー全体を順次実行します。並列化は行わず、連続する
// API 呼び出しの間に固定のディレイを挟みます（レート制限対策）。
type Runner struct {
	store     *Store
	generator Generator
	outputDir string
	delay     time.Duration

	// テストから差し替えるための関数フィールド
	sleep func(time.Duration)
	now   func() time.Time
}

// NewRunner は依存関係を注入して Runner を初期化します。
func NewRunner(store *Store, generator Generator, outputDir string, delay time.Duration) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if outputDir == "" {
		return nil, fmt.Errorf("outputDir is required")
	}

	return &Runner{
		store:     store,
		generator: generator,
		outputDir: outputDir,
		delay:     delay,
		sleep:     time.Sleep,
		now:       time.Now,
	}, nil
}

// Run はキューの全アイテムを先頭から順に実行し、レポートを返します。
//
//   - アイテム単体の失敗は記録して次へ進む（バッチは中断しない）
//   - 実行後、成否にかかわらずキューは空として永続化される
//   - 空キューでは API を一切呼ばず空レポートを返す
func (r *Runner) Run(ctx context.Context) (*domain.RunReport, error) {
	items, err := r.store.Items()
	if err != nil {
		return nil, err
	}

	report := &domain.RunReport{Results: []domain.ItemResult{}}
	if len(items) == 0 {
		slog.InfoContext(ctx, "キューが空のためバッチ実行をスキップします")
		return report, nil
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return nil, &domain.StorageError{Op: "mkdir", Path: r.outputDir, Err: err}
	}

	slog.InfoContext(ctx, "バッチ実行を開始します", "total", len(items), "output_dir", r.outputDir)

	for i, item := range items {
		result := r.runItem(ctx, i, item)
		report.Append(result)

		// 最後のアイテムの後にはディレイを入れない
		if i < len(items)-1 && r.delay > 0 {
			r.sleep(r.delay)
		}
	}

	// 実行済みアイテムはすべてキューから消える（成功・失敗を問わない）
	if err := r.store.Clear(); err != nil {
		return report, err
	}

	r.writeResultsFile(ctx, report)

	slog.InfoContext(ctx, "バッチ実行が完了しました",
		"total", report.Total, "succeeded", report.Succeeded, "failed", report.Failed)
	return report, nil
}

// runItem はアイテム 1 件分の生成・保存を行います。
func (r *Runner) runItem(ctx context.Context, index int, item domain.QueueItem) domain.ItemResult {
	filename := r.resolveFilename(item.Filename)

	result := domain.ItemResult{
		Filename:    filename,
		AspectRatio: item.AspectRatio,
	}

	quality, tier := domain.ResolveTier(item.Quality)
	if !tier.SupportsReferences && len(item.ReferenceImages) > 0 {
		// enqueue 時には通した寛容仕様ぶんの注意喚起
		result.Warning = fmt.Sprintf("reference_images are ignored when quality is %q", quality)
	}

	slog.InfoContext(ctx, "画像を生成します",
		"index", index+1, "filename", filename, "quality", string(quality))

	resp, err := r.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:          item.Prompt,
		AspectRatio:     item.AspectRatio,
		ImageSize:       item.ImageSize,
		Quality:         item.Quality,
		ReferenceImages: item.ReferenceImages,
	})
	if err != nil {
		slog.WarnContext(ctx, "画像生成に失敗しました", "filename", filename, "error", err)
		result.Status = domain.StatusError
		result.Error = err.Error()
		return result
	}

	path := filepath.Join(r.outputDir, filename)
	if err := os.WriteFile(path, resp.Data, 0o644); err != nil {
		slog.WarnContext(ctx, "画像の保存に失敗しました", "path", path, "error", err)
		result.Status = domain.StatusError
		result.Error = fmt.Sprintf("failed to write image: %v", err)
		return result
	}

	result.Status = domain.StatusSuccess
	result.Path = path
	result.Resolution = resp.Resolution
	result.ReferencesUsed = resp.ReferencesUsed

	slog.InfoContext(ctx, "画像を保存しました", "path", path, "resolution", resp.Resolution)
	return result
}

// resolveFilename は最終的な保存ファイル名を決定します。
// 未指定ならタイムスタンプから生成し、.png 拡張子を保証し、
// 出力先に同名ファイルがあれば上書きせず連番サフィックスを付けます。
func (r *Runner) resolveFilename(supplied string) string {
	name := supplied
	if name == "" {
		name = fmt.Sprintf("gemini_image_%s", r.now().Format("20060102_150405"))
	}
	if !strings.HasSuffix(name, ".png") {
		name += ".png"
	}

	if _, err := os.Stat(filepath.Join(r.outputDir, name)); err != nil {
		return name
	}

	base := strings.TrimSuffix(name, ".png")
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d.png", base, i)
		if _, err := os.Stat(filepath.Join(r.outputDir, candidate)); err != nil {
			return candidate
		}
	}
}

// writeResultsFile はレポートを出力先ディレクトリに書き残します。
// 書き込み失敗はバッチの成否に影響させません。
func (r *Runner) writeResultsFile(ctx context.Context, report *domain.RunReport) {
	data, err := json.MarshalIndent(report.Results, "", "  ")
	if err != nil {
		return
	}
	path := filepath.Join(r.outputDir, resultsFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.WarnContext(ctx, "実行結果ファイルの書き込みに失敗しました", "path", path, "error", err)
	}
}
