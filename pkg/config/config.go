package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Models はティアごとのモデル ID 上書き設定です。
// 空のフィールドは domain のティアテーブル定義が使われます。
type Models struct {
	Pro  string `toml:"pro"`
	Fast string `toml:"fast"`
}

// WebP は WebP 変換の設定です。
type WebP struct {
	Quality int `toml:"quality"`
}

// WordPress はメディアアップロード先の資格情報です。
// アプリケーションパスワードは不透明な設定値として扱います。
type WordPress struct {
	URL         string `toml:"url"`
	User        string `toml:"user"`
	AppPassword string `toml:"app_password"`
}

// Config はサーバ全体の設定です。起動時に 1 度だけ構築し、
// 各コンポーネントのコンストラクタへ明示的に渡します。
type Config struct {
	ImagesDir          string `toml:"images_dir"`
	BatchSubdir        string `toml:"batch_subdir"`
	QueueFilename      string `toml:"queue_filename"`
	MaxReferenceImages int    `toml:"max_reference_images"`
	APIDelaySeconds    int    `toml:"api_delay_seconds"`

	Models    Models    `toml:"models"`
	WebP      WebP      `toml:"webp"`
	WordPress WordPress `toml:"wordpress"`
}

const (
	defaultImagesDir          = "~/Pictures/gemini"
	defaultBatchSubdir        = "batch"
	defaultQueueFilename      = "batch_queue.json"
	defaultMaxReferenceImages = 14
	defaultAPIDelaySeconds    = 3
	defaultWebPQuality        = 85
)

// Default はリポジトリ既定値の Config を返します。
func Default() Config {
	return Config{
		ImagesDir:          defaultImagesDir,
		BatchSubdir:        defaultBatchSubdir,
		QueueFilename:      defaultQueueFilename,
		MaxReferenceImages: defaultMaxReferenceImages,
		APIDelaySeconds:    defaultAPIDelaySeconds,
		WebP:               WebP{Quality: defaultWebPQuality},
	}
}

// Load は path の TOML を既定値にマージした Config を返します。
// ファイルが存在しない場合は既定値のみで動作します。
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("設定ファイルの読み込みに失敗しました (%s): %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("設定ファイルの解析に失敗しました (%s): %w", path, err)
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize はパス中の ~ を展開し、ゼロ値のフィールドを既定値で補います。
func (c *Config) normalize() {
	if c.BatchSubdir == "" {
		c.BatchSubdir = defaultBatchSubdir
	}
	if c.QueueFilename == "" {
		c.QueueFilename = defaultQueueFilename
	}
	if c.MaxReferenceImages <= 0 {
		c.MaxReferenceImages = defaultMaxReferenceImages
	}
	if c.APIDelaySeconds < 0 {
		c.APIDelaySeconds = defaultAPIDelaySeconds
	}
	if c.WebP.Quality <= 0 || c.WebP.Quality > 100 {
		c.WebP.Quality = defaultWebPQuality
	}
	c.ImagesDir = ExpandUser(c.ImagesDir)
}

func (c *Config) validate() error {
	if c.ImagesDir == "" {
		return fmt.Errorf("images_dir が未設定です")
	}
	return nil
}

// BatchDir はバッチ生成画像の出力先ディレクトリです。
func (c Config) BatchDir() string {
	return filepath.Join(c.ImagesDir, c.BatchSubdir)
}

// QueuePath はキューファイルのパスです。
func (c Config) QueuePath() string {
	return filepath.Join(c.ImagesDir, c.QueueFilename)
}

// Sample は埋め込みのサンプル設定を返します。
func Sample() string {
	return sampleConfig
}

// ExpandUser は先頭の ~ をホームディレクトリに展開します。
// 展開できない場合は入力をそのまま返します。
func ExpandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
