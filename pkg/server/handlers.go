package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/shouni/gemini-image-server/pkg/config"
	"github.com/shouni/gemini-image-server/pkg/converter"
	"github.com/shouni/gemini-image-server/pkg/domain"
	"github.com/shouni/gemini-image-server/pkg/media"
	"github.com/shouni/gemini-image-server/pkg/wordpress"
)

// handlers はツール名ごとの実処理です。各ハンドラは内部コンポーネントを
// 呼び出し、結果を JSON テキストとして返します。内部エラーはプロトコル
// エラーにせず、ツール結果のエラーとしてクライアントへ渡します。
type handlers struct {
	deps Deps

	// テストから差し替えるための関数フィールド
	now func() time.Time
}

// jsonResult は任意のペイロードを整形済み JSON のツール結果にします。
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultErrorFromErr("結果の整形に失敗しました", err), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// referencePaths は単数形 reference_image と複数形 reference_images を
// 1 つのリストへ正規化します。複数形が優先です。
func referencePaths(req mcp.CallToolRequest) []string {
	if refs := req.GetStringSlice("reference_images", nil); len(refs) > 0 {
		return refs
	}
	if single := req.GetString("reference_image", ""); single != "" {
		return []string{single}
	}
	return nil
}

func (h *handlers) timeNow() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *handlers) generateImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	item := domain.QueueItem{
		Prompt:          prompt,
		AspectRatio:     req.GetString("aspect_ratio", "1:1"),
		ImageSize:       domain.ImageSize(req.GetString("image_size", "large")),
		Quality:         domain.Quality(req.GetString("quality", "pro")),
		ReferenceImages: referencePaths(req),
	}
	item.Normalize()
	if err := item.Validate(h.deps.Config.MaxReferenceImages); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := h.deps.Generator.Generate(ctx, domain.GenerationRequest{
		Prompt:          item.Prompt,
		AspectRatio:     item.AspectRatio,
		ImageSize:       item.ImageSize,
		Quality:         item.Quality,
		ReferenceImages: item.ReferenceImages,
	})
	if err != nil {
		return mcp.NewToolResultErrorFromErr("画像生成に失敗しました", err), nil
	}

	dir := h.deps.Config.ImagesDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return mcp.NewToolResultErrorFromErr("出力先ディレクトリを作成できません", err), nil
	}
	filename := fmt.Sprintf("gemini_image_%s.png", h.timeNow().Format("20060102_150405"))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, resp.Data, 0o644); err != nil {
		return mcp.NewToolResultErrorFromErr("画像の保存に失敗しました", err), nil
	}

	slog.InfoContext(ctx, "画像を生成して保存しました",
		"path", path, "model", resp.Model, "resolution", resp.Resolution)

	return jsonResult(map[string]any{
		"success":               true,
		"image_path":            path,
		"resolution":            resp.Resolution,
		"aspect_ratio":          item.AspectRatio,
		"quality":               item.Quality,
		"model":                 resp.Model,
		"reference_images_used": resp.ReferencesUsed,
		"message":               fmt.Sprintf("Image generated and saved to %s", path),
	})
}

func (h *handlers) addToBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	item := domain.QueueItem{
		Prompt:          prompt,
		Filename:        req.GetString("filename", ""),
		AspectRatio:     req.GetString("aspect_ratio", "16:9"),
		ImageSize:       domain.ImageSize(req.GetString("image_size", "large")),
		Quality:         domain.Quality(req.GetString("quality", "pro")),
		Description:     req.GetString("description", ""),
		ReferenceImages: referencePaths(req),
	}

	position, total, err := h.deps.Store.Add(item)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.InfoContext(ctx, "キューに追加しました", "position", position, "total", total)

	return jsonResult(map[string]any{
		"success":  true,
		"position": position,
		"total":    total,
		"message":  fmt.Sprintf("Added to batch queue at position %d (%d queued)", position, total),
	})
}

func (h *handlers) removeFromBatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identifier, err := req.RequireString("identifier")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	removed, remaining, err := h.deps.Store.Remove(identifier)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.InfoContext(ctx, "キューから削除しました", "identifier", identifier, "remaining", remaining)

	return jsonResult(map[string]any{
		"success":   true,
		"removed":   removed,
		"remaining": remaining,
	})
}

func (h *handlers) viewBatchQueue(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := h.deps.Store.Items()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	type queuedItem struct {
		Position int `json:"position"`
		domain.QueueItem
	}
	queued := make([]queuedItem, 0, len(items))
	for i, item := range items {
		queued = append(queued, queuedItem{Position: i + 1, QueueItem: item})
	}

	return jsonResult(map[string]any{
		"success": true,
		"count":   len(queued),
		"items":   queued,
	})
}

func (h *handlers) runBatch(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := h.deps.Runner.Run(ctx)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("バッチ実行に失敗しました", err), nil
	}

	return jsonResult(map[string]any{
		"success":    report.Failed == 0,
		"total":      report.Total,
		"succeeded":  report.Succeeded,
		"failed":     report.Failed,
		"results":    report.Results,
		"output_dir": h.deps.Config.BatchDir(),
	})
}

func (h *handlers) convertToWebP(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	quality := req.GetInt("quality", h.deps.Config.WebP.Quality)
	force := req.GetBool("force", false)

	summary, err := converter.ConvertDir(ctx, h.deps.Config.ImagesDir, quality, force)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("WebP変換に失敗しました", err), nil
	}

	return jsonResult(map[string]any{
		"success":   summary.Failed == 0,
		"converted": summary.Converted,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"results":   summary.Results,
	})
}

func (h *handlers) uploadToWordPress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wp := h.deps.Config.WordPress
	uploader, err := wordpress.NewUploader(wordpress.Credentials{
		BaseURL:     wp.URL,
		User:        wp.User,
		AppPassword: wp.AppPassword,
	}, nil)
	if err != nil {
		return mcp.NewToolResultError("WordPress の接続設定がありません。設定ファイルの [wordpress] セクションを確認してください"), nil
	}

	paths := req.GetStringSlice("files", nil)
	if len(paths) == 0 {
		dir := filepath.Join(h.deps.Config.ImagesDir, req.GetString("directory", "batch"))
		limit := req.GetInt("limit", 10)
		images, err := media.RecentWebP(dir, limit)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		for _, img := range images {
			paths = append(paths, img.Path)
		}
	} else {
		for i, p := range paths {
			paths[i] = config.ExpandUser(p)
		}
	}

	if len(paths) == 0 {
		return jsonResult(map[string]any{
			"success": true,
			"total":   0,
			"message": "No WebP images found to upload",
		})
	}

	report := uploader.UploadFiles(ctx, paths)
	return jsonResult(map[string]any{
		"success":  len(report.Failed) == 0,
		"total":    report.Total,
		"uploaded": report.Uploaded,
		"failed":   report.Failed,
	})
}

func (h *handlers) getGeneratedWebPImages(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := filepath.Join(h.deps.Config.ImagesDir, req.GetString("directory", "batch"))
	limit := req.GetInt("limit", 10)

	images, err := media.RecentWebP(dir, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"success":   true,
		"count":     len(images),
		"directory": dir,
		"images":    images,
	})
}
