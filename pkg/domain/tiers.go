package domain

// Quality は生成品質ティアの識別子です。
type Quality string

// ImageSize は要求解像度の識別子です。実際の解像度はティアごとの
// ルックアップテーブルで決定されます。
type ImageSize string

const (
	QualityPro  Quality = "pro"
	QualityFast Quality = "fast"

	SizeSmall  ImageSize = "small"
	SizeMedium ImageSize = "medium"
	SizeLarge  ImageSize = "large"
	SizeXLarge ImageSize = "xlarge"
)

// Tier は品質ティアごとの能力定義です。
// 分岐ロジックではなくテーブル参照で解決することで、新ティアの追加を
// 定義の追記だけで済むようにしています。
type Tier struct {
	// Model はこのティアで使用するデフォルトのモデル ID です。
	Model string
	// SupportsReferences が false のティアでは参照画像は送信されません。
	SupportsReferences bool
	// SupportsImageSize が false のティアでは imageSize を API に渡しません。
	SupportsImageSize bool
	// DefaultSize は呼び出し側が large（全体デフォルト）のまま指定してきた
	// 場合に読み替えるサイズです。
	DefaultSize ImageSize
}

// tiers は (Quality) -> ティア定義 のテーブルです。
var tiers = map[Quality]Tier{
	QualityPro: {
		Model:              "gemini-3-pro-image-preview",
		SupportsReferences: true,
		SupportsImageSize:  true,
		DefaultSize:        SizeLarge,
	},
	QualityFast: {
		Model:              "gemini-2.5-flash-image",
		SupportsReferences: false,
		SupportsImageSize:  false,
		DefaultSize:        SizeSmall,
	},
}

// resolutions は ImageSize -> API 解像度ラベル のテーブルです。
// large が 2K なのは Gemini API の上限仕様に合わせたものです。
var resolutions = map[ImageSize]string{
	SizeSmall:  "1K",
	SizeMedium: "2K",
	SizeLarge:  "2K",
	SizeXLarge: "4K",
}

// ValidAspectRatios は受け付けるアスペクト比の集合です。
var ValidAspectRatios = map[string]bool{
	"1:1":  true,
	"16:9": true,
	"9:16": true,
	"4:3":  true,
	"3:4":  true,
}

// ResolveTier は品質ティア定義を返します。
// 未知の品質値は pro にフォールバックします（旧実装互換の寛容動作）。
func ResolveTier(q Quality) (Quality, Tier) {
	if tier, ok := tiers[q]; ok {
		return q, tier
	}
	return QualityPro, tiers[QualityPro]
}

// EffectiveSize はティアを考慮した実効サイズを返します。
// fast ティアで large（デフォルト）のままの場合は small に読み替えます。
func EffectiveSize(q Quality, size ImageSize) ImageSize {
	_, tier := ResolveTier(q)
	if size == SizeLarge && tier.DefaultSize != SizeLarge {
		return tier.DefaultSize
	}
	if _, ok := resolutions[size]; !ok {
		return SizeLarge
	}
	return size
}

// Resolution は (quality, size) に対する API 解像度ラベルを返します。
func Resolution(q Quality, size ImageSize) string {
	if label, ok := resolutions[EffectiveSize(q, size)]; ok {
		return label
	}
	return "2K"
}

// IsValidSize は size が列挙集合に含まれるかを返します。
func IsValidSize(size ImageSize) bool {
	_, ok := resolutions[size]
	return ok
}

// IsValidQuality は quality が定義済みティアかを返します。
func IsValidQuality(q Quality) bool {
	_, ok := tiers[q]
	return ok
}
