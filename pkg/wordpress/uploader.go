// Package wordpress は WordPress メディアライブラリへの画像アップロードを
// 提供します。資格情報（アプリケーションパスワード）は設定由来の不透明な
// 値として扱い、本パッケージでは中身を解釈しません。
package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Credentials はアップロード先サイトと認証情報です。
type Credentials struct {
	BaseURL     string
	User        string
	AppPassword string
}

// Uploaded はアップロードに成功したファイル 1 件分の参照情報です。
type Uploaded struct {
	Filename string `json:"filename"`
	MediaID  int64  `json:"media_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// Failure はアップロードに失敗したファイル 1 件分の記録です。
type Failure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Report はアップロード全体の結果です。
type Report struct {
	Uploaded []Uploaded `json:"uploaded"`
	Failed   []Failure  `json:"failed"`
	Total    int        `json:"total"`
}

// mediaResponse は WP REST API /wp/v2/media のレスポンスのうち
// 本パッケージが使うフィールドです。
type mediaResponse struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
	Title     struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
}

// Uploader は WordPress メディアエンドポイントへのクライアントです。
type Uploader struct {
	creds  Credentials
	client *http.Client
}

// NewUploader は資格情報を検証して Uploader を初期化します。
func NewUploader(creds Credentials, client *http.Client) (*Uploader, error) {
	if creds.BaseURL == "" || creds.User == "" || creds.AppPassword == "" {
		return nil, fmt.Errorf("wordpress url, user and app_password are required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Uploader{
		creds:  creds,
		client: client,
	}, nil
}

// UploadFiles は複数ファイルを順次アップロードします。
// 1 件の失敗は記録して続行し、全体を中断しません。
func (u *Uploader) UploadFiles(ctx context.Context, paths []string) *Report {
	report := &Report{Uploaded: []Uploaded{}, Failed: []Failure{}}

	for _, path := range paths {
		filename := filepath.Base(path)
		uploaded, err := u.uploadOne(ctx, path)
		if err != nil {
			slog.WarnContext(ctx, "メディアアップロードに失敗しました", "filename", filename, "error", err)
			report.Failed = append(report.Failed, Failure{Filename: filename, Error: err.Error()})
		} else {
			slog.InfoContext(ctx, "メディアをアップロードしました",
				"filename", filename, "media_id", uploaded.MediaID, "url", uploaded.URL)
			report.Uploaded = append(report.Uploaded, *uploaded)
		}
	}

	report.Total = len(report.Uploaded) + len(report.Failed)
	return report
}

// uploadOne は 1 ファイルを multipart POST で送信します。
func (u *Uploader) uploadOne(ctx context.Context, path string) (*Uploaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ファイルを読み込めません: %w", err)
	}
	filename := filepath.Base(path)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := createImagePart(writer, filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(u.creds.BaseURL, "/") + "/wp-json/wp/v2/media"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.SetBasicAuth(u.creds.User, u.creds.AppPassword)

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var media mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&media); err != nil {
		return nil, fmt.Errorf("レスポンスの解析に失敗しました: %w", err)
	}

	return &Uploaded{
		Filename: filename,
		MediaID:  media.ID,
		URL:      media.SourceURL,
		Title:    media.Title.Rendered,
	}, nil
}

// createImagePart は Content-Type 付きの file フィールドを作ります。
// multipart.Writer.CreateFormFile は octet-stream 固定のため自前で組みます。
func createImagePart(writer *multipart.Writer, filename string) (io.Writer, error) {
	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	return writer.CreatePart(header)
}
