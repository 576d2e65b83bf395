package prompts

import (
	"fmt"
	"strings"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// Assembler は、画風・キャラクター・シーンを組み合わせてAIプロンプトを構築します。
//
// すべてのメソッドは純粋関数です。同一の入力からは常にバイト単位で同一の
// プロンプトが生成されます。セッションを入力から再構築したとき、元の生成条件を
// 正確に再現するために、この決定性が前提になります。
type Assembler struct {
	qualitySuffix string // "Vibrant colors, ..." 等の共通サフィックス
}

// NewAssembler は新しい Assembler を生成します。
// suffix が空の場合は DefaultQualitySuffix を使用します。
func NewAssembler(suffix string) *Assembler {
	if suffix == "" {
		suffix = DefaultQualitySuffix
	}
	return &Assembler{qualitySuffix: suffix}
}

// BuildImagePrompt は1枚の挿絵用プロンプトを構築します。
//
// 組み立て順は固定です: 画風（アートバイブル）→ キャラクターブロック（登場順）
// → シーン描写 → 品質サフィックス。キャラクターが0人でもエラーにはならず、
// キャラクターブロックが省略されるだけです（風景だけの表紙などは正当な入力です）。
func (a *Assembler) BuildImagePrompt(
	sceneDescription string,
	profiles []domain.CharacterProfile,
	artStyle string,
	artBible *domain.ArtBible,
	characterRefs map[string]string,
) string {
	parts := make([]string, 0, 4)

	// 1. 画風の枠組み。アートバイブルがあればそのスタイルノートを優先します。
	style := artStyle
	if artBible != nil && artBible.ArtStyle != "" {
		style = artBible.ArtStyle
	}
	head := fmt.Sprintf("A %s style children's book illustration showing", style)
	if artBible != nil && artBible.StyleNotes != "" {
		head = fmt.Sprintf("A %s style children's book illustration (%s) showing", style, smartTruncate(artBible.StyleNotes, maxOptionalDescLength))
	}
	parts = append(parts, head)

	// 2. キャラクターブロック。一貫性のため、シーンより先に配置します。
	if block := a.characterBlock(profiles, characterRefs); block != "" {
		parts = append(parts, block)
	}

	// 3. シーン描写。長文は先頭200文字に丸めます。
	scene := sceneDescription
	if runes := []rune(scene); len(runes) > maxSceneLength {
		scene = string(runes[:maxSceneLength])
	}
	parts = append(parts, fmt.Sprintf("in this scene: %s", scene))

	// 4. 品質サフィックス。
	parts = append(parts, a.qualitySuffix)

	prompt := strings.Join(parts, " ")
	if runes := []rune(prompt); len(runes) > maxPromptLength {
		prompt = string(runes[:maxPromptLength-3]) + "..."
	}
	return prompt
}

// characterBlock は登場順の先頭 maxCharacterBlock 人分の外見記述を構築します。
// 任意項目（服装・特徴・性格）は未設定ならそのまま省略します。
func (a *Assembler) characterBlock(profiles []domain.CharacterProfile, characterRefs map[string]string) string {
	var descriptions []string
	for _, p := range profiles {
		if len(descriptions) >= maxCharacterBlock {
			break
		}
		desc := describeProfile(p)
		if desc == "" {
			continue
		}
		if ref, ok := characterRefs[p.Name]; ok && ref != "" {
			// 参照シートのプロンプトが既にあるキャラクターは、その要約で固定します。
			desc = fmt.Sprintf("%s (as established: %s)", p.Name, smartTruncate(ref, maxPhysicalDescLength))
		}
		descriptions = append(descriptions, desc)
	}
	return strings.Join(descriptions, " and ")
}

// describeProfile は1人分のキャラクター記述を "名前 (種族, 外見, ...)" 形式で
// 構築します。名前のないプロフィールは種族と外見のみで表現します。
func describeProfile(p domain.CharacterProfile) string {
	if p.Species == "" || p.PhysicalDescription == "" {
		return ""
	}

	var sb strings.Builder
	if p.Name != "" {
		sb.WriteString(fmt.Sprintf("%s (a %s", p.Name, p.Species))
	} else {
		sb.WriteString(fmt.Sprintf("a %s (", p.Species))
	}

	if phys := smartTruncate(p.PhysicalDescription, maxPhysicalDescLength); phys != "" {
		sb.WriteString(", ")
		sb.WriteString(phys)
	}
	if p.DistinctiveFeatures != "" {
		sb.WriteString(", ")
		sb.WriteString(smartTruncate(p.DistinctiveFeatures, maxOptionalDescLength))
	}
	if p.Clothing != "" {
		sb.WriteString(", ")
		sb.WriteString(smartTruncate(p.Clothing, maxOptionalDescLength))
	}
	if p.PersonalityTraits != "" {
		sb.WriteString(", ")
		sb.WriteString(smartTruncate(p.PersonalityTraits, maxOptionalDescLength))
	}
	sb.WriteString(")")
	return sb.String()
}

// BuildPrimingPrompt はセッションの最初の1往復（プライミング）に使う指示文を
// 構築します。アートバイブルの画風定義とキャラクター参照を1つの文脈として
// 提示し、以降の挿絵生成がこの文脈を引き継げるようにします。
func (a *Assembler) BuildPrimingPrompt(artBible domain.ArtBible, profiles []domain.CharacterProfile) string {
	var sb strings.Builder

	sb.WriteString("You are an expert children's book illustrator creating illustrations for a story.\n\n")
	sb.WriteString(fmt.Sprintf("Art Style: %s\n", artBible.ArtStyle))
	if artBible.Prompt != "" {
		sb.WriteString(fmt.Sprintf("Art Bible: %s\n", artBible.Prompt))
	}
	if artBible.StyleNotes != "" {
		sb.WriteString(fmt.Sprintf("Style Notes: %s\n", artBible.StyleNotes))
	}

	sb.WriteString("\n### CHARACTER IDENTITIES ###\n")
	for _, p := range profiles {
		if desc := describeProfile(p); desc != "" {
			sb.WriteString(fmt.Sprintf("- %s\n", desc))
		}
	}

	sb.WriteString("\nIMPORTANT GUIDELINES:\n")
	sb.WriteString("- All images must maintain perfect visual consistency throughout the story\n")
	sb.WriteString("- Characters must look EXACTLY the same in every illustration\n")
	sb.WriteString("- The art style, colors, and techniques must remain consistent\n")

	return sb.String()
}

// BuildArtBiblePrompt はアートバイブル（画風リファレンス画像）生成用の
// プロンプトを組み立て、ArtBible として返します。
func (a *Assembler) BuildArtBiblePrompt(artStyle, genre, storyTitle, additionalNotes string) domain.ArtBible {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create an art bible reference image in %s style for a children's book", artStyle))
	if storyTitle != "" {
		sb.WriteString(fmt.Sprintf(" titled \"%s\"", storyTitle))
	}
	if genre != "" {
		sb.WriteString(fmt.Sprintf(" in the %s genre", genre))
	}
	sb.WriteString(". ")
	sb.WriteString("Show a sample scene establishing the color palette, lighting style, and rendering technique that all illustrations will follow. ")
	sb.WriteString("No characters, no text.")
	if additionalNotes != "" {
		sb.WriteString(fmt.Sprintf(" Additional direction: %s", additionalNotes))
	}

	return domain.ArtBible{
		Prompt:     sb.String(),
		ArtStyle:   artStyle,
		StyleNotes: additionalNotes,
	}
}

// BuildCharacterReferencePrompt はキャラクター参照シート生成用のプロンプトを
// 組み立て、CharacterReference として返します。includeTurnaround が true の
// 場合は正面・側面・背面の三面図を指示します。
func (a *Assembler) BuildCharacterReferencePrompt(p domain.CharacterProfile, artStyle string, includeTurnaround bool) domain.CharacterReference {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create a character reference sheet in %s style for", artStyle))
	if desc := describeProfile(p); desc != "" {
		sb.WriteString(fmt.Sprintf(" %s.", desc))
	} else {
		sb.WriteString(fmt.Sprintf(" %s.", p.Name))
	}
	if includeTurnaround {
		sb.WriteString(" Show a full turnaround: front view, side view, and back view on a plain background.")
	} else {
		sb.WriteString(" Show a single full-body pose on a plain background.")
	}
	sb.WriteString(" Match the established art bible style exactly. No text labels.")

	return domain.CharacterReference{
		CharacterName:       p.Name,
		Prompt:              sb.String(),
		Species:             p.Species,
		PhysicalDescription: p.PhysicalDescription,
		Clothing:            p.Clothing,
		DistinctiveFeatures: p.DistinctiveFeatures,
	}
}

// smartTruncate は単語の途中で切らないよう、最後の空白位置で丸めます。
// 長さは文字（ルーン）単位で数え、マルチバイト文字の途中では切りません。
func smartTruncate(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}

	truncated := string(runes[:maxLength])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > 0 {
		return truncated[:lastSpace]
	}
	return truncated
}
