package domain

// アイテムごとの実行結果ステータス。旧バージョンの結果ファイルと
// 互換の文字列値を維持しています。
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ItemResult はバッチ実行におけるアイテム 1 件分の結果です。
type ItemResult struct {
	Filename    string `json:"filename"`
	Status      string `json:"status"`
	Path        string `json:"path,omitempty"`
	Error       string `json:"error,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	// ReferencesUsed は実際に送信された参照画像の枚数です。
	ReferencesUsed int `json:"reference_images_used"`
	// Warning には fast ティアで参照画像が無視された等の注意情報が入ります。
	Warning string `json:"warning,omitempty"`
}

// RunReport はバッチ実行全体のレポートです。
// 実行後キューは空になるため、結果はこのレポートだけが持ちます。
type RunReport struct {
	Results   []ItemResult `json:"results"`
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
}

// Append は結果を追加しつつ成功・失敗数を集計します。
func (r *RunReport) Append(res ItemResult) {
	r.Results = append(r.Results, res)
	r.Total++
	if res.Status == StatusSuccess {
		r.Succeeded++
	} else {
		r.Failed++
	}
}
