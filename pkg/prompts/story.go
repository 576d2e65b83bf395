package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// BuildStoryPrompt は物語本文を生成するためのプロンプトを構築します。
// ページ区切り（"Page X:"）の形式指定を含み、パーサがそのまま解析できる
// 出力をAIに要求します。
func (a *Assembler) BuildStoryPrompt(meta domain.StoryMetadata, theme, customPrompt string) string {
	parts := make([]string, 0, 7)

	parts = append(parts, fmt.Sprintf(
		"Write a %s children's story in %s for ages %s.",
		meta.Complexity, meta.Language, meta.AgeGroup,
	))
	parts = append(parts, fmt.Sprintf(
		"The story should have exactly %d pages, with each page containing 2-4 sentences appropriate for the age group.",
		meta.NumPages,
	))

	if meta.Genre != "" {
		parts = append(parts, fmt.Sprintf("Genre: %s.", meta.Genre))
	}
	if theme != "" {
		parts = append(parts, fmt.Sprintf("Theme: %s.", theme))
	}
	if customPrompt != "" {
		parts = append(parts, fmt.Sprintf("Story idea: %s.", customPrompt))
	}

	parts = append(parts, fmt.Sprintf(
		"Use %s vocabulary appropriate for the %s age group.",
		meta.VocabularyDiversity, meta.AgeGroup,
	))

	parts = append(parts,
		"\n\nFormat the story with clear page breaks. "+
			"For each page, write:\nPage X:\n[Story text for that page]\n\n"+
			"Make the story engaging, age-appropriate, and complete within the specified number of pages.")

	return strings.Join(parts, " ")
}

// BuildExtractionPrompt はキャラクター抽出用のシステム指示とユーザープロンプトを
// 構築します。応答を厳密なJSONに固定するため、フィールド名まで指定します。
func (a *Assembler) BuildExtractionPrompt(fullStoryText string) (userPrompt, systemPrompt string) {
	systemPrompt = `You are a character extraction specialist for children's stories.
Your task is to identify all characters in the story and provide a brief description of each.

CRITICAL: Return your response as valid JSON in this EXACT format:
{
    "characters": [
        {
            "name": "Character Name",
            "description": "Brief physical description"
        }
    ]
}

Guidelines:
- Include ALL characters mentioned in the story
- Keep descriptions concise but visually descriptive
- Focus on physical appearance (species, color, size, distinctive features)
- Maintain the order characters appear in the story
- Use the exact names from the story`

	userPrompt = fmt.Sprintf(`Extract all characters from this story:

%s

Return ONLY valid JSON with "characters" array containing objects with "name" and "description" fields. No other text.`, fullStoryText)

	return userPrompt, systemPrompt
}

// BuildProfilePrompt は抽出済みキャラクターの詳細プロフィールを生成するための
// プロンプトを構築します。挿絵の一貫性に必要な視覚項目をJSONで要求します。
func (a *Assembler) BuildProfilePrompt(character domain.Character, storyContext string) (userPrompt, systemPrompt string) {
	systemPrompt = `You are a character designer for children's book illustrations.
Given a character and the story they appear in, produce a detailed visual profile.

CRITICAL: Return your response as valid JSON in this EXACT format:
{
    "name": "Character Name",
    "species": "species or kind",
    "physical_description": "detailed visual description",
    "clothing": "clothing if any",
    "distinctive_features": "features that must stay consistent",
    "personality_traits": "traits that affect appearance"
}

Leave optional fields as empty strings when the story gives no information. Never invent details that contradict the story.`

	userPrompt = fmt.Sprintf(`Create a visual profile for %s (%s).

Story context:
%s

Return ONLY the JSON object. No other text.`, character.Name, character.Description, storyContext)

	return userPrompt, systemPrompt
}
