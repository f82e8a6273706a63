package queue

import (
	"context"
	"fmt"

	"github.com/shouni/gemini-image-server/pkg/domain"
)

// --- Mocks ---

// mockGenerator は Generator のモックです。呼び出し順にプロンプトを記録し、
// failOn に含まれる呼び出し（1始まり）でエラーを返します。
type mockGenerator struct {
	calls   int
	prompts []string
	failOn  map[int]bool
	data    []byte
}

func (m *mockGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.ImageResponse, error) {
	m.calls++
	m.prompts = append(m.prompts, req.Prompt)

	if m.failOn[m.calls] {
		return nil, fmt.Errorf("simulated API error on call %d", m.calls)
	}

	data := m.data
	if data == nil {
		data = []byte("png-bytes")
	}
	return &domain.ImageResponse{
		Data:           data,
		MimeType:       "image/png",
		Resolution:     "2K",
		Model:          "gemini-3-pro-image-preview",
		ReferencesUsed: len(req.ReferenceImages),
	}, nil
}
