package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/projectstore"
	"github.com/shouni/go-storybook-kit/pkg/task"
)

const maxStoryPages = 20

// storyGenerateInput は物語生成タスクの入力です。
type storyGenerateInput struct {
	Metadata domain.StoryMetadata `json:"metadata"`
	Theme    string               `json:"theme"`
}

// storyGenerateHandler は物語本文の生成、キャラクター抽出、
// 再構築用スナップショットの保存までを1タスクとして実行します。
type storyGenerateHandler struct {
	svc Services
}

func (h storyGenerateHandler) Validate(input json.RawMessage) error {
	var in storyGenerateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}
	if in.Theme == "" && in.Metadata.UserPrompt == "" {
		return fmt.Errorf("テーマまたはプロンプトが必要です: %w", domain.ErrValidation)
	}
	if in.Metadata.NumPages < 1 || in.Metadata.NumPages > maxStoryPages {
		return fmt.Errorf("ページ数は 1〜%d で指定してください: %w", maxStoryPages, domain.ErrValidation)
	}
	return nil
}

func (h storyGenerateHandler) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var in storyGenerateInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}

	story, err := h.svc.Stories.Generate(ctx, in.Metadata, in.Theme)
	if err != nil {
		return nil, err
	}

	profiles, err := h.svc.Characters.Extract(ctx, story.Pages.FullText())
	if err != nil {
		return nil, err
	}
	story.Characters = profiles

	// 再起動後のセッション再構築に備えて入力を残しておく。
	snap := projectstore.Snapshot{
		StoryID:  story.ID,
		ArtStyle: story.Metadata.ArtStyle,
		ArtBible: domain.ArtBible{ArtStyle: story.Metadata.ArtStyle},
		Profiles: profiles,
	}
	if err := h.svc.Projects.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("プロジェクトの保存に失敗しました: %w", err)
	}
	return story, nil
}

// characterExtractInput はキャラクター抽出タスクの入力です。
type characterExtractInput struct {
	StoryText string `json:"story_text"`
}

type characterExtractHandler struct {
	svc Services
}

func (h characterExtractHandler) Validate(input json.RawMessage) error {
	var in characterExtractInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}
	if in.StoryText == "" {
		return fmt.Errorf("story_text が空です: %w", domain.ErrValidation)
	}
	return nil
}

func (h characterExtractHandler) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var in characterExtractInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}
	return h.svc.Characters.Extract(ctx, in.StoryText)
}

// pageImagesInput は挿絵生成タスクの入力です。
type pageImagesInput struct {
	Story    domain.Story    `json:"story"`
	ArtBible domain.ArtBible `json:"art_bible"`
}

// pageImagesResult は挿絵生成タスクの結果です。
type pageImagesResult struct {
	Story       *domain.Story `json:"story"`
	Illustrated int           `json:"illustrated"`
}

type pageImagesHandler struct {
	svc Services
}

func (h pageImagesHandler) Validate(input json.RawMessage) error {
	var in pageImagesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}
	if in.Story.ID == "" {
		return fmt.Errorf("story.id が空です: %w", domain.ErrValidation)
	}
	if len(in.Story.Pages) == 0 {
		return fmt.Errorf("ページがありません: %w", domain.ErrValidation)
	}
	return nil
}

func (h pageImagesHandler) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var in pageImagesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}

	ok, err := h.svc.Illustrator.IllustratePages(ctx, &in.Story, in.ArtBible)
	if err != nil {
		return nil, err
	}

	// プライミングに実際に使ったアートバイブルとプロファイルを残す。
	// 再起動後の再構築はこのスナップショットから同じ生成条件を再現する。
	artStyle := in.ArtBible.ArtStyle
	if artStyle == "" {
		artStyle = in.Story.Metadata.ArtStyle
	}
	snap := projectstore.Snapshot{
		StoryID:  in.Story.ID,
		ArtStyle: artStyle,
		ArtBible: in.ArtBible,
		Profiles: in.Story.Characters,
	}
	if err := h.svc.Projects.Save(ctx, snap); err != nil {
		return nil, fmt.Errorf("プロジェクトの保存に失敗しました: %w", err)
	}
	return pageImagesResult{Story: &in.Story, Illustrated: ok}, nil
}

// artBibleInput はアートバイブル生成タスクの入力です。
// story_id を指定すると、生成したバイブルがその物語のスナップショットに
// 反映され、以降のセッション再構築で使われます。
type artBibleInput struct {
	ArtStyle   string `json:"art_style"`
	Genre      string `json:"genre"`
	StoryTitle string `json:"story_title"`
	Notes      string `json:"notes"`
	StoryID    string `json:"story_id,omitempty"`
}

type artBibleHandler struct {
	svc Services
}

func (h artBibleHandler) Validate(input json.RawMessage) error {
	var in artBibleInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}
	if in.ArtStyle == "" {
		return fmt.Errorf("art_style が空です: %w", domain.ErrValidation)
	}
	return nil
}

func (h artBibleHandler) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var in artBibleInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}

	bible, err := h.svc.Illustrator.GenerateArtBible(ctx, in.ArtStyle, in.Genre, in.StoryTitle, in.Notes)
	if err != nil {
		return nil, err
	}

	if in.StoryID != "" {
		snap := projectstore.Snapshot{StoryID: in.StoryID}
		if loaded, err := h.svc.Projects.Load(ctx, in.StoryID); err == nil {
			snap = *loaded
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		snap.ArtStyle = bible.ArtStyle
		snap.ArtBible = bible
		if err := h.svc.Projects.Save(ctx, snap); err != nil {
			return nil, fmt.Errorf("プロジェクトの保存に失敗しました: %w", err)
		}
	}
	return bible, nil
}

// characterReferenceInput はキャラクター参照シート生成タスクの入力です。
type characterReferenceInput struct {
	Profile           domain.CharacterProfile `json:"profile"`
	ArtStyle          string                  `json:"art_style"`
	IncludeTurnaround bool                    `json:"include_turnaround"`
}

type characterReferenceHandler struct {
	svc Services
}

func (h characterReferenceHandler) Validate(input json.RawMessage) error {
	var in characterReferenceInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}
	if in.Profile.Name == "" {
		return fmt.Errorf("profile.name が空です: %w", domain.ErrValidation)
	}
	if in.ArtStyle == "" {
		return fmt.Errorf("art_style が空です: %w", domain.ErrValidation)
	}
	return nil
}

func (h characterReferenceHandler) Run(ctx context.Context, input json.RawMessage) (any, error) {
	var in characterReferenceInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("入力JSONを解析できません: %w", domain.ErrValidation)
	}
	return h.svc.Illustrator.GenerateCharacterReference(ctx, in.Profile, in.ArtStyle, in.IncludeTurnaround)
}

// registerHandlers は全タスク種別をオーケストレーターに登録します。
func registerHandlers(o *task.Orchestrator, svc Services) {
	o.Register(task.KindStoryGenerate, storyGenerateHandler{svc})
	o.Register(task.KindCharacterExtract, characterExtractHandler{svc})
	o.Register(task.KindPageImages, pageImagesHandler{svc})
	o.Register(task.KindArtBible, artBibleHandler{svc})
	o.Register(task.KindCharacterReference, characterReferenceHandler{svc})
}
