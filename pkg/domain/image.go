package domain

// GenerationRequest は単一の画像生成要求です。
// Quality によって使用モデルと参照画像の扱いが変わります（tiers.go 参照）。
type GenerationRequest struct {
	Prompt          string
	AspectRatio     string
	ImageSize       ImageSize
	Quality         Quality
	ReferenceImages []string // ローカルパスの列。fast ティアでは送信されない
}

// ImageResponse は生成された画像データとそのメタデータです。
type ImageResponse struct {
	Data     []byte
	MimeType string
	// Resolution は API に指定した解像度ラベル（1K/2K/4K）です。
	Resolution string
	// Model は実際に使用されたモデル ID です。
	Model string
	// ReferencesUsed は送信された参照画像の枚数です。
	ReferencesUsed int
}
