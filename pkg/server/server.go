// Package server は MCP (Model Context Protocol) のツールサーフェスを提供し、
// 各ツール呼び出しを内部コンポーネントへディスパッチします。
package server

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/shouni/gemini-image-server/pkg/config"
	"github.com/shouni/gemini-image-server/pkg/queue"
)

const (
	serverName    = "gemini-image-generator"
	serverVersion = "3.1.0"
)

// Deps はツールハンドラが利用するコンポーネント群です。
// 起動時に main で構築され、以後の暗黙的な状態参照はありません。
type Deps struct {
	Config    config.Config
	Generator queue.Generator
	Store     *queue.Store
	Runner    *queue.Runner
}

// New はツール群を登録済みの MCP サーバを構築します。
func New(deps Deps) (*server.MCPServer, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	h := &handlers{deps: deps}

	s := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	maxRefs := deps.Config.MaxReferenceImages

	s.AddTool(mcp.NewTool("generate_image",
		mcp.WithDescription("Generate a single image immediately using Gemini. Use quality='pro' (default) for high-quality with reference image support, or quality='fast' for cheaper/quicker social media images (no reference images)."),
		mcp.WithString("prompt", mcp.Required(),
			mcp.Description("Text description of the image to generate")),
		mcp.WithString("aspect_ratio",
			mcp.Description("Aspect ratio (1:1, 16:9, 9:16, 4:3, 3:4)"),
			mcp.DefaultString("1:1")),
		mcp.WithString("image_size",
			mcp.Description("Image resolution: 'small' (1K), 'medium' (2K), 'large' (2K default for pro, small default for fast), 'xlarge' (4K)"),
			mcp.Enum("small", "medium", "large", "xlarge"),
			mcp.DefaultString("large")),
		mcp.WithString("quality",
			mcp.Description("Quality tier: 'pro' (high quality, reference images supported) or 'fast' (cheaper/quicker, no reference images)"),
			mcp.Enum("pro", "fast"),
			mcp.DefaultString("pro")),
		mcp.WithString("reference_image",
			mcp.Description("Optional single reference image file path (pro mode only)")),
		mcp.WithArray("reference_images",
			mcp.Description(fmt.Sprintf("Optional list of reference image file paths, max %d (pro mode only)", maxRefs)),
			mcp.Items(map[string]any{"type": "string"})),
	), h.generateImage)

	s.AddTool(mcp.NewTool("add_to_batch",
		mcp.WithDescription("Add an image to the batch queue for later generation with resolution control and quality tier"),
		mcp.WithString("prompt", mcp.Required(),
			mcp.Description("Text description of the image to generate")),
		mcp.WithString("filename",
			mcp.Description("Optional filename for the image (must be unique within the queue)")),
		mcp.WithString("aspect_ratio",
			mcp.Description("Aspect ratio (1:1, 16:9, 9:16, 4:3, 3:4)"),
			mcp.DefaultString("16:9")),
		mcp.WithString("image_size",
			mcp.Description("Image resolution: 'small' (1K), 'medium' (2K), 'large' (2K default for pro, small for fast), 'xlarge' (4K)"),
			mcp.Enum("small", "medium", "large", "xlarge"),
			mcp.DefaultString("large")),
		mcp.WithString("quality",
			mcp.Description("Quality tier: 'pro' (default) or 'fast' (cheaper, no reference images)"),
			mcp.Enum("pro", "fast"),
			mcp.DefaultString("pro")),
		mcp.WithString("description",
			mcp.Description("Optional description/note for this image")),
		mcp.WithString("reference_image",
			mcp.Description("Optional single reference image file path (pro mode only)")),
		mcp.WithArray("reference_images",
			mcp.Description(fmt.Sprintf("Optional list of reference image file paths, max %d (pro mode only)", maxRefs)),
			mcp.Items(map[string]any{"type": "string"})),
	), h.addToBatch)

	s.AddTool(mcp.NewTool("remove_from_batch",
		mcp.WithDescription("Remove an image from the batch queue by position (1, 2, 3...) or filename"),
		mcp.WithString("identifier", mcp.Required(),
			mcp.Description("Either a 1-based position (1 for first item, 2 for second, etc.) or a filename string")),
	), h.removeFromBatch)

	s.AddTool(mcp.NewTool("view_batch_queue",
		mcp.WithDescription("View all images currently queued for batch generation"),
	), h.viewBatchQueue)

	s.AddTool(mcp.NewTool("run_batch",
		mcp.WithDescription("Execute batch generation for all queued images. The queue is cleared after the run and a per-item report is returned."),
	), h.runBatch)

	s.AddTool(mcp.NewTool("convert_to_webp",
		mcp.WithDescription("Convert generated images to WebP format for WordPress optimization. Scans the images directory recursively and converts PNG/JPG to WebP."),
		mcp.WithNumber("quality",
			mcp.Description("WebP quality (0-100). Default 85"),
			mcp.DefaultNumber(85),
			mcp.Min(0),
			mcp.Max(100)),
		mcp.WithBoolean("force",
			mcp.Description("Force reconversion even if .webp files already exist"),
			mcp.DefaultBool(false)),
	), h.convertToWebP)

	s.AddTool(mcp.NewTool("upload_to_wordpress",
		mcp.WithDescription("Upload WebP images to the WordPress media library. Credentials come from the server configuration."),
		mcp.WithArray("files",
			mcp.Description("Explicit list of file paths to upload. If omitted, the newest WebP files from the directory are used."),
			mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("directory",
			mcp.Description("Directory containing images, relative to the images dir (default: batch)"),
			mcp.DefaultString("batch")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of images to upload when files is omitted"),
			mcp.DefaultNumber(10)),
	), h.uploadToWordPress)

	s.AddTool(mcp.NewTool("get_generated_webp_images",
		mcp.WithDescription("Get base64 data of recently generated WebP images for uploading"),
		mcp.WithString("directory",
			mcp.Description("Directory to scan, relative to the images dir (default: batch)"),
			mcp.DefaultString("batch")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of images to return"),
			mcp.DefaultNumber(10)),
	), h.getGeneratedWebPImages)

	return s, nil
}
