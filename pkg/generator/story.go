// Package generator は、テキストと画像のプロバイダを組み合わせて
// 絵本の生成ワークフロー（本文・キャラクター・挿絵）を実装します。
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/parser"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/provider"
)

// StoryGenerator は物語本文の生成を担当します。
type StoryGenerator struct {
	text      provider.TextGenerator
	assembler *prompts.Assembler
}

// NewStoryGenerator は StoryGenerator を生成します。
func NewStoryGenerator(text provider.TextGenerator, assembler *prompts.Assembler) *StoryGenerator {
	return &StoryGenerator{text: text, assembler: assembler}
}

// Generate はメタデータとテーマから物語を生成し、ページ単位に分割して返します。
func (g *StoryGenerator) Generate(ctx context.Context, meta domain.StoryMetadata, theme string) (*domain.Story, error) {
	prompt := g.assembler.BuildStoryPrompt(meta, theme, meta.UserPrompt)

	raw, err := g.text.GenerateText(ctx, prompt, "")
	if err != nil {
		return nil, fmt.Errorf("物語本文の生成に失敗しました: %w", err)
	}

	pages := parser.ParseStoryPages(raw)
	if len(pages) == 0 {
		return nil, fmt.Errorf("生成結果からページを抽出できませんでした: %w", domain.ErrProviderFailure)
	}
	if len(pages) != meta.NumPages {
		slog.WarnContext(ctx, "ページ数が指定と一致しません",
			"want", meta.NumPages, "got", len(pages))
	}

	now := time.Now()
	story := &domain.Story{
		ID:        uuid.NewString(),
		Metadata:  meta,
		Pages:     pages,
		CreatedAt: now,
		UpdatedAt: now,
	}
	slog.InfoContext(ctx, "物語を生成しました",
		"story_id", story.ID, "title", meta.Title, "pages", len(pages))
	return story, nil
}
