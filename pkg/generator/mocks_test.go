package generator

import (
	"context"

	"google.golang.org/genai"
)

// --- Mocks ---

// mockAPI は generativeAPI のモックです。受け取った引数を記録し、
// 固定レスポンスまたはエラーを返します。
type mockAPI struct {
	called       bool
	callCount    int
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig

	resp *genai.GenerateContentResponse
	err  error
}

func (m *mockAPI) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.called = true
	m.callCount++
	m.lastModel = model
	m.lastContents = contents
	m.lastConfig = config

	if m.err != nil {
		return nil, m.err
	}
	if m.resp != nil {
		return m.resp, nil
	}
	return imageResponse([]byte("fake-image-bytes")), nil
}

// imageResponse は InlineData を 1 つ含む正常系レスポンスを作ります。
func imageResponse(data []byte) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{
					{Text: "here is your image"},
					{InlineData: &genai.Blob{MIMEType: "image/png", Data: data}},
				},
			},
		}},
	}
}
