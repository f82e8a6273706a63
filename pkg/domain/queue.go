package domain

import (
	"fmt"
	"strings"
)

// QueueItem はバッチキューに積まれた 1 件の生成要求です。
// JSON タグはキューファイル（batch_queue.json）の項目名に一致させています。
type QueueItem struct {
	Prompt          string    `json:"prompt"`
	Filename        string    `json:"filename,omitempty"`
	AspectRatio     string    `json:"aspect_ratio"`
	ImageSize       ImageSize `json:"image_size"`
	Quality         Quality   `json:"quality"`
	ReferenceImages []string  `json:"reference_images,omitempty"`
	Description     string    `json:"description,omitempty"`
}

// Normalize は未指定フィールドにデフォルト値を補います。
func (it *QueueItem) Normalize() {
	if it.AspectRatio == "" {
		it.AspectRatio = "1:1"
	}
	if it.ImageSize == "" {
		it.ImageSize = SizeLarge
	}
	if it.Quality == "" {
		it.Quality = QualityPro
	}
}

// Validate は 1 件分の検証を行い、違反があれば *ValidationError を返します。
// maxRefs は参照画像枚数の上限（設定値）です。
//
// 注意: fast ティアに参照画像が付いていても検証エラーにはしません。
// 実行時に警告として通知する寛容仕様です（無断で消去もしない）。
func (it *QueueItem) Validate(maxRefs int) error {
	if strings.TrimSpace(it.Prompt) == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	if !ValidAspectRatios[it.AspectRatio] {
		return &ValidationError{Field: "aspect_ratio", Reason: "must be one of 1:1, 16:9, 9:16, 4:3, 3:4"}
	}
	if !IsValidSize(it.ImageSize) {
		return &ValidationError{Field: "image_size", Reason: "must be one of small, medium, large, xlarge"}
	}
	if !IsValidQuality(it.Quality) {
		return &ValidationError{Field: "quality", Reason: "must be one of pro, fast"}
	}
	if len(it.ReferenceImages) > maxRefs {
		return &ValidationError{
			Field:  "reference_images",
			Reason: fmt.Sprintf("exceeds the configured maximum of %d", maxRefs),
		}
	}
	return nil
}
