// gemini-image-server は Gemini 画像生成・バッチキュー・WebP 変換・
// WordPress アップロードを MCP ツールとして公開する stdio サーバです。
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/shouni/gemini-image-server/pkg/config"
	"github.com/shouni/gemini-image-server/pkg/generator"
	"github.com/shouni/gemini-image-server/pkg/queue"
	"github.com/shouni/gemini-image-server/pkg/server"
)

const apiKeyEnv = "GEMINI_API_KEY"

func defaultConfigPath() string {
	return config.ExpandUser("~/.config/gemini-image-server/config.toml")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath(), "設定ファイル（TOML）のパス")
	printSample := flag.Bool("print-sample-config", false, "サンプル設定を標準出力に書き出して終了する")
	flag.Parse()

	if *printSample {
		fmt.Print(config.Sample())
		return nil
	}

	// stdout は MCP トランスポート専用。ログはすべて stderr に流す。
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return fmt.Errorf("環境変数 %s が設定されていません", apiKeyEnv)
	}

	ctx := context.Background()

	gen, err := generator.New(ctx, apiKey, generator.Options{
		ProModel:           cfg.Models.Pro,
		FastModel:          cfg.Models.Fast,
		MaxReferenceImages: cfg.MaxReferenceImages,
	})
	if err != nil {
		return fmt.Errorf("生成クライアントの初期化に失敗しました: %w", err)
	}

	store := queue.NewStore(cfg.QueuePath(), cfg.MaxReferenceImages)
	runner, err := queue.NewRunner(store, gen, cfg.BatchDir(),
		time.Duration(cfg.APIDelaySeconds)*time.Second)
	if err != nil {
		return err
	}

	s, err := server.New(server.Deps{
		Config:    cfg,
		Generator: gen,
		Store:     store,
		Runner:    runner,
	})
	if err != nil {
		return err
	}

	slog.Info("MCPサーバを起動します",
		"images_dir", cfg.ImagesDir, "queue_path", cfg.QueuePath())

	return mcpserver.ServeStdio(s)
}
