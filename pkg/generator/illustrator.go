package generator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/provider"
	"github.com/shouni/go-storybook-kit/pkg/session"
)

// Illustrator は物語の各ページへの挿絵生成を担当します。
//
// 挿絵はセッション内で生成され、確立済みのアートバイブルと
// キャラクター参照が各ページのプロンプトに織り込まれます。
// 1枚の失敗はそのページを飛ばすだけで、残りの生成は続行されます。
type Illustrator struct {
	sessions  *session.Manager
	images    provider.ImageClient
	assembler *prompts.Assembler

	// concurrency はページ生成の並行数です。セッション内の参照蓄積は
	// 生成順に依存するため、既定値は 1（逐次）です。
	concurrency int
}

// NewIllustrator は Illustrator を生成します。
// concurrency に 0 以下を渡すと逐次生成になります。
func NewIllustrator(sessions *session.Manager, images provider.ImageClient, assembler *prompts.Assembler, concurrency int) *Illustrator {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Illustrator{
		sessions:    sessions,
		images:      images,
		assembler:   assembler,
		concurrency: concurrency,
	}
}

// IllustratePages は物語の全ページに挿絵を生成し、ページを更新して返します。
// 返り値の ok には挿絵が付いたページ数が入ります。
func (il *Illustrator) IllustratePages(ctx context.Context, story *domain.Story, artBible domain.ArtBible) (ok int, err error) {
	if len(story.Pages) == 0 {
		return 0, fmt.Errorf("ページがありません: %w", domain.ErrValidation)
	}

	if _, err := il.sessions.EnsureSession(ctx, story.ID, artBible, story.Characters); err != nil {
		return 0, fmt.Errorf("セッションの確立に失敗しました: %w", err)
	}
	refs := il.sessions.CharacterRefs(story.ID)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(il.concurrency)

	for i := range story.Pages {
		page := &story.Pages[i]
		g.Go(func() error {
			prompt := il.assembler.BuildImagePrompt(
				page.Text, story.Characters, story.Metadata.ArtStyle, &artBible, refs)

			img, genErr := il.sessions.ContinueGeneration(gctx, story.ID, prompt)
			if genErr != nil {
				// このページだけ飛ばして続行する。
				slog.WarnContext(gctx, "ページの挿絵生成に失敗したため飛ばします",
					"story_id", story.ID, "page", page.PageNumber, "error", genErr)
				return nil
			}

			page.ImagePrompt = prompt
			page.ImageURL = img.Path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for i := range story.Pages {
		if story.Pages[i].ImageURL != "" {
			ok++
		}
	}
	slog.InfoContext(ctx, "挿絵の生成が完了しました",
		"story_id", story.ID, "pages", len(story.Pages), "illustrated", ok)
	return ok, nil
}

// GenerateArtBible はアートバイブルのプロンプトを組み立て、
// 参照画像をセッション外で1枚生成します。
func (il *Illustrator) GenerateArtBible(ctx context.Context, artStyle, genre, storyTitle, notes string) (domain.ArtBible, error) {
	bible := il.assembler.BuildArtBiblePrompt(artStyle, genre, storyTitle, notes)

	img, err := il.images.Generate(ctx, bible.Prompt)
	if err != nil {
		return domain.ArtBible{}, fmt.Errorf("アートバイブル画像の生成に失敗しました: %w", err)
	}
	bible.ImageURL = img.FileURI
	bible.LocalImagePath = img.Path
	return bible, nil
}

// GenerateCharacterReference はキャラクター参照シートのプロンプトを組み立て、
// シート画像をセッション外で1枚生成します。includeTurnaround が true の場合は
// 三面図（正面・側面・背面）を指示します。
func (il *Illustrator) GenerateCharacterReference(ctx context.Context, profile domain.CharacterProfile, artStyle string, includeTurnaround bool) (domain.CharacterReference, error) {
	if profile.Name == "" {
		return domain.CharacterReference{}, fmt.Errorf("キャラクター名がありません: %w", domain.ErrValidation)
	}

	ref := il.assembler.BuildCharacterReferencePrompt(profile, artStyle, includeTurnaround)

	img, err := il.images.Generate(ctx, ref.Prompt)
	if err != nil {
		return domain.CharacterReference{}, fmt.Errorf("キャラクター参照画像の生成に失敗しました: %w", err)
	}
	ref.ImageURL = img.FileURI
	ref.LocalImagePath = img.Path
	return ref, nil
}
