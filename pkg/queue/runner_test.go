package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/gemini-image-server/pkg/domain"
)

func newTestRunner(t *testing.T, store *Store, gen Generator, delay time.Duration) (*Runner, string, *[]time.Duration) {
	t.Helper()
	outputDir := filepath.Join(t.TempDir(), "batch")

	runner, err := NewRunner(store, gen, outputDir, delay)
	require.NoError(t, err)

	var slept []time.Duration
	runner.sleep = func(d time.Duration) { slept = append(slept, d) }
	runner.now = func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) }
	return runner, outputDir, &slept
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("空キューではAPIを呼ばず空レポートを返すこと", func(t *testing.T) {
		store := newTestStore(t)
		gen := &mockGenerator{}
		runner, _, _ := newTestRunner(t, store, gen, 3*time.Second)

		report, err := runner.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 0, report.Total)
		assert.Equal(t, 0, report.Succeeded)
		assert.Equal(t, 0, report.Failed)
		assert.Empty(t, report.Results)
		assert.Equal(t, 0, gen.calls, "external client must not be contacted")
	})

	t.Run("全件成功時に順序どおりのレポートと空キューが残ること", func(t *testing.T) {
		store := newTestStore(t)
		_, _, _ = store.Add(item("one", "a.png"))
		_, _, _ = store.Add(item("two", "b.png"))

		gen := &mockGenerator{}
		runner, outputDir, _ := newTestRunner(t, store, gen, 0)

		report, err := runner.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, report.Succeeded)
		assert.Equal(t, 0, report.Failed)
		assert.Equal(t, []string{"one", "two"}, gen.prompts)

		// 画像がディスクに書かれていること
		for _, name := range []string{"a.png", "b.png"} {
			data, err := os.ReadFile(filepath.Join(outputDir, name))
			require.NoError(t, err)
			assert.Equal(t, []byte("png-bytes"), data)
		}

		// 実行後はキューが空
		items, err := store.Items()
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("途中の失敗が他アイテムを巻き込まないこと", func(t *testing.T) {
		store := newTestStore(t)
		_, _, _ = store.Add(item("one", "a.png"))
		_, _, _ = store.Add(item("two", "b.png"))
		_, _, _ = store.Add(item("three", "c.png"))

		gen := &mockGenerator{failOn: map[int]bool{2: true}}
		runner, _, _ := newTestRunner(t, store, gen, 0)

		report, err := runner.Run(ctx)

		require.NoError(t, err)
		assert.Equal(t, 3, report.Total)
		assert.Equal(t, 2, report.Succeeded)
		assert.Equal(t, 1, report.Failed)

		// レポートは元の順序を維持する
		require.Len(t, report.Results, 3)
		assert.Equal(t, domain.StatusSuccess, report.Results[0].Status)
		assert.Equal(t, domain.StatusError, report.Results[1].Status)
		assert.Contains(t, report.Results[1].Error, "simulated API error")
		assert.Equal(t, domain.StatusSuccess, report.Results[2].Status)

		// 失敗したアイテムもキューからは消える
		items, err := store.Items()
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("ディレイは連続呼び出しの間にのみ入ること", func(t *testing.T) {
		store := newTestStore(t)
		_, _, _ = store.Add(item("one", "a.png"))
		_, _, _ = store.Add(item("two", "b.png"))
		_, _, _ = store.Add(item("three", "c.png"))

		gen := &mockGenerator{}
		runner, _, slept := newTestRunner(t, store, gen, 3*time.Second)

		_, err := runner.Run(ctx)

		require.NoError(t, err)
		// 3件なら間は2回。最初の前と最後の後には入らない。
		require.Len(t, *slept, 2)
		assert.Equal(t, 3*time.Second, (*slept)[0])
		assert.Equal(t, 3*time.Second, (*slept)[1])
	})

	t.Run("実行結果ファイルが出力先に書かれること", func(t *testing.T) {
		store := newTestStore(t)
		_, _, _ = store.Add(item("one", "a.png"))

		gen := &mockGenerator{}
		runner, outputDir, _ := newTestRunner(t, store, gen, 0)

		_, err := runner.Run(ctx)
		require.NoError(t, err)

		data, err := os.ReadFile(filepath.Join(outputDir, resultsFilename))
		require.NoError(t, err)

		var results []domain.ItemResult
		require.NoError(t, json.Unmarshal(data, &results))
		require.Len(t, results, 1)
		assert.Equal(t, "a.png", results[0].Filename)
	})

	t.Run("fastティアの参照画像には警告が記録されること", func(t *testing.T) {
		store := newTestStore(t)
		it := item("fast with refs", "fast.png")
		it.Quality = domain.QualityFast
		it.ReferenceImages = []string{"ref.png"}
		_, _, err := store.Add(it)
		require.NoError(t, err)

		gen := &mockGenerator{}
		runner, _, _ := newTestRunner(t, store, gen, 0)

		report, err := runner.Run(ctx)

		require.NoError(t, err)
		require.Len(t, report.Results, 1)
		assert.Contains(t, report.Results[0].Warning, "reference_images are ignored")
	})
}

func TestRunner_ResolveFilename(t *testing.T) {
	store := newTestStore(t)
	gen := &mockGenerator{}
	runner, outputDir, _ := newTestRunner(t, store, gen, 0)
	require.NoError(t, os.MkdirAll(outputDir, 0o755))

	t.Run("未指定ならタイムスタンプ名が生成されること", func(t *testing.T) {
		assert.Equal(t, "gemini_image_20260826_120000.png", runner.resolveFilename(""))
	})

	t.Run("拡張子が無ければpngが補われること", func(t *testing.T) {
		assert.Equal(t, "hero.png", runner.resolveFilename("hero"))
		assert.Equal(t, "hero.png", runner.resolveFilename("hero.png"))
	})

	t.Run("既存ファイルとの衝突には連番サフィックスが付くこと", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(outputDir, "dup.png"), []byte("x"), 0o644))
		assert.Equal(t, "dup_1.png", runner.resolveFilename("dup"))

		require.NoError(t, os.WriteFile(filepath.Join(outputDir, "dup_1.png"), []byte("x"), 0o644))
		assert.Equal(t, "dup_2.png", runner.resolveFilename("dup"))
	})
}
