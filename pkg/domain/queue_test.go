package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItem() QueueItem {
	return QueueItem{
		Prompt:      "夕焼けの港町",
		AspectRatio: "16:9",
		ImageSize:   SizeLarge,
		Quality:     QualityPro,
	}
}

func TestQueueItem_Normalize(t *testing.T) {
	t.Run("未指定フィールドにデフォルト値が入ること", func(t *testing.T) {
		it := QueueItem{Prompt: "猫"}
		it.Normalize()

		assert.Equal(t, "1:1", it.AspectRatio)
		assert.Equal(t, SizeLarge, it.ImageSize)
		assert.Equal(t, QualityPro, it.Quality)
	})

	t.Run("指定済みの値は上書きされないこと", func(t *testing.T) {
		it := QueueItem{Prompt: "猫", AspectRatio: "9:16", ImageSize: SizeSmall, Quality: QualityFast}
		it.Normalize()

		assert.Equal(t, "9:16", it.AspectRatio)
		assert.Equal(t, SizeSmall, it.ImageSize)
		assert.Equal(t, QualityFast, it.Quality)
	})
}

func TestQueueItem_Validate(t *testing.T) {
	const maxRefs = 14

	t.Run("正常なアイテムは検証を通過すること", func(t *testing.T) {
		it := validItem()
		require.NoError(t, it.Validate(maxRefs))
	})

	t.Run("空プロンプトはValidationErrorになること", func(t *testing.T) {
		it := validItem()
		it.Prompt = "   "

		err := it.Validate(maxRefs)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "prompt", verr.Field)
	})

	t.Run("不正なアスペクト比を拒否すること", func(t *testing.T) {
		it := validItem()
		it.AspectRatio = "21:9"

		err := it.Validate(maxRefs)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "aspect_ratio", verr.Field)
	})

	t.Run("不正なサイズと品質を拒否すること", func(t *testing.T) {
		it := validItem()
		it.ImageSize = "huge"
		var verr *ValidationError
		require.ErrorAs(t, it.Validate(maxRefs), &verr)
		assert.Equal(t, "image_size", verr.Field)

		it = validItem()
		it.Quality = "ultra"
		require.ErrorAs(t, it.Validate(maxRefs), &verr)
		assert.Equal(t, "quality", verr.Field)
	})

	t.Run("参照画像が上限を超えたら拒否すること", func(t *testing.T) {
		it := validItem()
		for i := 0; i <= maxRefs; i++ {
			it.ReferenceImages = append(it.ReferenceImages, "ref.png")
		}

		err := it.Validate(maxRefs)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "reference_images", verr.Field)
	})

	t.Run("fastティアの参照画像は検証エラーにしないこと", func(t *testing.T) {
		// 実行時警告に留める寛容仕様。enqueue は通す。
		it := validItem()
		it.Quality = QualityFast
		it.ReferenceImages = []string{"ref.png"}

		require.NoError(t, it.Validate(maxRefs))
	})
}

func TestStorageError_Unwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := &StorageError{Op: "save", Path: "/tmp/q.json", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "save")
}
