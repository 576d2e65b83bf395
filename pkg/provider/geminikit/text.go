// Package geminikit は Gemini ベースのプロバイダ実装です。
// テキスト生成は go-gemini-client、画像生成は gemini-image-kit に委譲します。
package geminikit

import (
	"context"
	"fmt"

	"github.com/shouni/go-gemini-client/pkg/gemini"

	"github.com/shouni/go-storybook-kit/pkg/provider"
)

// TextClient は go-gemini-client を provider.TextGenerator に適合させます。
type TextClient struct {
	aiClient gemini.GenerativeModel
	model    string
}

// NewTextClient は新しい TextClient を生成します。
func NewTextClient(aiClient gemini.GenerativeModel, model string) *TextClient {
	return &TextClient{aiClient: aiClient, model: model}
}

// GenerateText はプロンプトを Gemini に送信し、応答テキストを返します。
// systemPrompt が指定された場合はユーザープロンプトの前に結合します。
func (tc *TextClient) GenerateText(ctx context.Context, userPrompt, systemPrompt string) (string, error) {
	prompt := userPrompt
	if systemPrompt != "" {
		prompt = fmt.Sprintf("%s\n\n%s", systemPrompt, userPrompt)
	}

	resp, err := tc.aiClient.GenerateContent(ctx, prompt, tc.model)
	if err != nil {
		return "", provider.WrapError("text", "generate", err)
	}

	return resp.Text, nil
}
