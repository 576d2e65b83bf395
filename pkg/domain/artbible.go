package domain

// ArtBible は物語全体の画風（スタイル・色彩・質感）を定義するリファレンスです。
// プロンプト文字列と、生成済みの参照画像の所在を保持します。
type ArtBible struct {
	Prompt         string `json:"prompt"`
	ArtStyle       string `json:"art_style"`
	ImageURL       string `json:"image_url,omitempty"`
	LocalImagePath string `json:"local_image_path,omitempty"`
	StyleNotes     string `json:"style_notes,omitempty"`
	ColorPalette   string `json:"color_palette,omitempty"`
	LightingStyle  string `json:"lighting_style,omitempty"`
	BrushTechnique string `json:"brush_technique,omitempty"`
}

// CharacterReference は1キャラクター分の参照シート（外見の基準）です。
// セッションのプライミングで使用したプロンプトをそのまま保持し、
// 再構築時に同一の生成条件を再現できるようにします。
type CharacterReference struct {
	CharacterName       string `json:"character_name"`
	Prompt              string `json:"prompt"`
	ImageURL            string `json:"image_url,omitempty"`
	LocalImagePath      string `json:"local_image_path,omitempty"`
	Species             string `json:"species,omitempty"`
	PhysicalDescription string `json:"physical_description,omitempty"`
	Clothing            string `json:"clothing,omitempty"`
	DistinctiveFeatures string `json:"distinctive_features,omitempty"`
}
