package generator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/gemini-image-server/pkg/domain"
	"google.golang.org/genai"
)

// generativeAPI は genai クライアントのうち本パッケージが使う面だけを
// 切り出したインターフェースです。*genai.Models がそのまま満たします。
type generativeAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options は Client の動作設定です。
type Options struct {
	// ProModel / FastModel はティアテーブルのモデル ID を上書きします。
	// 空文字の場合はテーブル定義が使われます。
	ProModel  string
	FastModel string
	// MaxReferenceImages は 1 リクエストに添付できる参照画像の上限です。
	MaxReferenceImages int
}

// Client は Gemini API に対して画像生成を 1 回実行するクライアントです。
// 内部状態は持たず、リトライも行いません（失敗は呼び出し元へそのまま返す）。
type Client struct {
	api     generativeAPI
	opts    Options
	fetcher *referenceFetcher
}

// New は API キーから genai クライアントを構築して Client を初期化します。
func New(ctx context.Context, apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}

	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("Geminiクライアントの初期化に失敗しました: %w", err)
	}

	return newWithAPI(cli.Models, opts), nil
}

// newWithAPI はテストからモック API を注入するための内部コンストラクタです。
func newWithAPI(api generativeAPI, opts Options) *Client {
	if opts.MaxReferenceImages <= 0 {
		opts.MaxReferenceImages = 14
	}
	return &Client{
		api:     api,
		opts:    opts,
		fetcher: newReferenceFetcher(),
	}
}

// modelFor はティアと上書き設定から実際に使うモデル ID を決定します。
func (c *Client) modelFor(q domain.Quality, tier domain.Tier) string {
	switch q {
	case domain.QualityPro:
		if c.opts.ProModel != "" {
			return c.opts.ProModel
		}
	case domain.QualityFast:
		if c.opts.FastModel != "" {
			return c.opts.FastModel
		}
	}
	return tier.Model
}

// Generate は 1 件の画像生成要求を実行し、生成画像のバイト列を返します。
// 参照画像はティアがサポートする場合のみ添付され、fast ティアでは
// 警告ログを残して無視されます（検証エラーにはしない寛容仕様）。
func (c *Client) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.ImageResponse, error) {
	quality, tier := domain.ResolveTier(req.Quality)
	model := c.modelFor(quality, tier)
	resolution := domain.Resolution(quality, req.ImageSize)

	// 1. 参照画像パーツの組み立て
	var parts []*genai.Part
	refsUsed := 0
	if tier.SupportsReferences {
		if len(req.ReferenceImages) > c.opts.MaxReferenceImages {
			return nil, &domain.ValidationError{
				Field:  "reference_images",
				Reason: fmt.Sprintf("exceeds the configured maximum of %d", c.opts.MaxReferenceImages),
			}
		}
		refParts, err := c.fetcher.load(ctx, req.ReferenceImages)
		if err != nil {
			return nil, err
		}
		parts = append(parts, refParts...)
		refsUsed = len(refParts)
	} else if len(req.ReferenceImages) > 0 {
		slog.WarnContext(ctx, "fastティアでは参照画像を使用できないため無視します",
			"quality", string(quality), "ref_count", len(req.ReferenceImages))
	}

	// 2. プロンプト本文は最後のパーツとして追加する
	parts = append(parts, &genai.Part{Text: req.Prompt})

	// 3. 生成設定。fast ティアのモデルは imageSize を受け付けない。
	imageConfig := &genai.ImageConfig{AspectRatio: req.AspectRatio}
	if tier.SupportsImageSize {
		imageConfig.ImageSize = resolution
	}

	slog.InfoContext(ctx, "Geminiに画像生成をリクエストします",
		"model", model, "resolution", resolution, "aspect_ratio", req.AspectRatio, "ref_count", refsUsed)

	resp, err := c.api.GenerateContent(ctx, model,
		[]*genai.Content{{Role: genai.RoleUser, Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        imageConfig,
		})
	if err != nil {
		return nil, fmt.Errorf("Gemini画像生成エラー: %w", err)
	}

	data, mimeType, err := parseImageData(resp)
	if err != nil {
		return nil, err
	}

	return &domain.ImageResponse{
		Data:           data,
		MimeType:       mimeType,
		Resolution:     resolution,
		Model:          model,
		ReferencesUsed: refsUsed,
	}, nil
}

// parseImageData はレスポンス候補から最初の画像パーツを抽出します。
// テキストパーツが混在していても画像だけを取り出します。
func parseImageData(resp *genai.GenerateContentResponse) ([]byte, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, "", fmt.Errorf("Geminiからの有効な応答がありませんでした")
	}

	candidate := resp.Candidates[0]
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, part.InlineData.MIMEType, nil
			}
		}
	}

	// 安全フィルター等によるブロックの確認
	if candidate.FinishReason != genai.FinishReasonUnspecified && candidate.FinishReason != genai.FinishReasonStop {
		return nil, "", fmt.Errorf("画像生成が異常終了しました (FinishReason: %s)", candidate.FinishReason)
	}

	return nil, "", fmt.Errorf("画像データが見つかりませんでした")
}
