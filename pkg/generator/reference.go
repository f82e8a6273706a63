package generator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/shouni/gemini-image-server/pkg/config"
	"github.com/shouni/gemini-image-server/pkg/imgutil"
	"google.golang.org/genai"
)

const (
	// 参照画像は送信前に JPEG 圧縮してペイロードを抑える
	useImageCompression     = true
	imageCompressionQuality = 75
)

// referenceFetcher はローカルパスの参照画像を読み込んで genai.Part に
// 変換します。パスが見つからない場合は API を呼ぶ前にエラーを返します。
type referenceFetcher struct {
	readFile func(string) ([]byte, error)
}

func newReferenceFetcher() *referenceFetcher {
	return &referenceFetcher{readFile: os.ReadFile}
}

// load はパス列を InlineData パーツ列に変換します。
func (f *referenceFetcher) load(ctx context.Context, paths []string) ([]*genai.Part, error) {
	var parts []*genai.Part
	for _, raw := range paths {
		path := config.ExpandUser(raw)
		data, err := f.readFile(path)
		if err != nil {
			return nil, fmt.Errorf("参照画像が見つかりません (%s): %w", path, err)
		}

		part := toPart(data)
		if part == nil {
			return nil, fmt.Errorf("参照画像が画像フォーマットではありません: %s", path)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// toPart はバイト列を genai.Part (InlineData) に変換します。
// 圧縮に失敗した場合は元データのまま送信します。
func toPart(data []byte) *genai.Part {
	finalData := data
	if useImageCompression {
		if compressed, err := imgutil.CompressToJPEG(data, imageCompressionQuality); err == nil {
			finalData = compressed
		}
	}

	mimeType := http.DetectContentType(finalData)
	if !strings.HasPrefix(mimeType, "image/") {
		return nil
	}
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: mimeType,
			Data:     finalData,
		},
	}
}
