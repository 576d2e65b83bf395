package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/parser"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/provider"
)

// CharacterExtractor は、物語本文からの登場キャラクター抽出と、
// キャラクターごとの詳細な外見プロファイルの構築を行います。
//
// 抽出は2段階です。まず本文全体から名前と役割の一覧を取り、次に
// キャラクターごとに個別のプロンプトでプロファイルを生成します。
// 2段目は1件の失敗で全体を止めず、そのキャラクターだけを飛ばします。
type CharacterExtractor struct {
	text      provider.TextGenerator
	assembler *prompts.Assembler
}

// NewCharacterExtractor は CharacterExtractor を生成します。
func NewCharacterExtractor(text provider.TextGenerator, assembler *prompts.Assembler) *CharacterExtractor {
	return &CharacterExtractor{text: text, assembler: assembler}
}

// Extract は2段階の抽出をまとめて実行します。
func (e *CharacterExtractor) Extract(ctx context.Context, storyText string) ([]domain.CharacterProfile, error) {
	characters, err := e.ExtractCharacters(ctx, storyText)
	if err != nil {
		return nil, err
	}
	return e.BuildProfiles(ctx, characters, storyText), nil
}

// ExtractCharacters は本文から登場キャラクターの一覧を抽出します。
func (e *CharacterExtractor) ExtractCharacters(ctx context.Context, storyText string) ([]domain.Character, error) {
	userPrompt, systemPrompt := e.assembler.BuildExtractionPrompt(storyText)

	raw, err := e.text.GenerateText(ctx, userPrompt, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("キャラクター抽出に失敗しました: %w", err)
	}

	characters, err := decodeCharacters([]byte(parser.ExtractJSON(raw)))
	if err != nil {
		return nil, fmt.Errorf("キャラクター一覧の解析に失敗しました: %w", err)
	}
	slog.InfoContext(ctx, "キャラクターを抽出しました", "count", len(characters))
	return characters, nil
}

// BuildProfiles はキャラクターごとに外見プロファイルを構築します。
// 個別の失敗は警告ログに残して飛ばし、成功した分だけを返します。
func (e *CharacterExtractor) BuildProfiles(ctx context.Context, characters []domain.Character, storyContext string) []domain.CharacterProfile {
	profiles := make([]domain.CharacterProfile, 0, len(characters))
	for _, c := range characters {
		p, err := e.buildProfile(ctx, c, storyContext)
		if err != nil {
			slog.WarnContext(ctx, "プロファイル構築に失敗したため飛ばします",
				"character", c.Name, "error", err)
			continue
		}
		profiles = append(profiles, p)
	}
	return profiles
}

func (e *CharacterExtractor) buildProfile(ctx context.Context, c domain.Character, storyContext string) (domain.CharacterProfile, error) {
	userPrompt, systemPrompt := e.assembler.BuildProfilePrompt(c, storyContext)

	raw, err := e.text.GenerateText(ctx, userPrompt, systemPrompt)
	if err != nil {
		return domain.CharacterProfile{}, fmt.Errorf("プロファイル生成に失敗しました: %w", err)
	}

	var p domain.CharacterProfile
	if err := json.Unmarshal([]byte(parser.ExtractJSON(raw)), &p); err != nil {
		return domain.CharacterProfile{}, fmt.Errorf("プロファイルJSONの解析に失敗しました: %w", err)
	}
	if p.Name == "" {
		p.Name = c.Name
	}
	if p.Species == "" || p.PhysicalDescription == "" {
		return domain.CharacterProfile{}, fmt.Errorf("必須フィールドが欠けています (name=%s)", c.Name)
	}
	return p, nil
}

// decodeCharacters は抽出結果のJSONを寛容に読み取ります。
// モデルはフィールド名を揺らすことがあるため、既知の別名も受け付けます。
func decodeCharacters(data []byte) ([]domain.Character, error) {
	var envelope struct {
		Characters []map[string]any `json:"characters"`
	}
	var entries []map[string]any
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Characters == nil {
		// トップレベルが配列の場合へのフォールバック。
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("characters 配列が見つかりません: %w", domain.ErrValidation)
		}
	} else {
		entries = envelope.Characters
	}

	characters := make([]domain.Character, 0, len(entries))
	for _, entry := range entries {
		name := firstString(entry, "name", "character_name", "character")
		if name == "" {
			continue
		}
		characters = append(characters, domain.Character{
			Name:        name,
			Description: firstString(entry, "description", "physical_description", "brief_description", "desc"),
			Role:        firstString(entry, "role"),
		})
	}
	return characters, nil
}

func firstString(entry map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := entry[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
