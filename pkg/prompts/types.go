package prompts

const (
	// maxCharacterBlock はプロンプトに含めるキャラクターの最大数です。
	// プロンプトを簡潔に保つため、登場順の先頭から採用します。
	maxCharacterBlock = 2

	// maxPromptLength は画像プロンプト全体の上限文字数です。
	// 生成APIの制限（4000字）に対して十分な余裕を持たせています。
	maxPromptLength = 1000

	// maxSceneLength はシーン描写部分の上限文字数です。
	maxSceneLength = 200

	// 各フィールドの切り詰め長。単語の途中では切らずに丸めます。
	maxPhysicalDescLength = 100
	maxOptionalDescLength = 60
)

// DefaultQualitySuffix は全挿絵に共通で付与する品質指示です。
const DefaultQualitySuffix = "Vibrant colors, child-friendly, professional children's book illustration style."

// DefaultNegativePrompt は挿絵から排除したい要素の指示です。
const DefaultNegativePrompt = "text, letters, words, watermark, signatures, low quality, distorted, bad anatomy, photorealistic, scary imagery"
