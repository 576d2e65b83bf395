package domain

import (
	"fmt"
	"strings"
	"time"
)

// StoryMetadata は物語の生成条件を保持します。
type StoryMetadata struct {
	Title               string `json:"title"`
	Language            string `json:"language"`
	Complexity          string `json:"complexity"`
	VocabularyDiversity string `json:"vocabulary_diversity"`
	AgeGroup            string `json:"age_group"`
	NumPages            int    `json:"num_pages"`
	WordsPerPage        int    `json:"words_per_page"`
	Genre               string `json:"genre,omitempty"`
	ArtStyle            string `json:"art_style,omitempty"`
	UserPrompt          string `json:"user_prompt,omitempty"`
}

// StoryPage は絵本の1ページ分の本文と挿絵情報を保持します。
type StoryPage struct {
	PageNumber  int    `json:"page_number"`
	Text        string `json:"text"`
	ImageURL    string `json:"image_url,omitempty"`
	ImagePrompt string `json:"image_prompt,omitempty"`
}

// Story は生成された物語の全体（メタデータ・本文・登場キャラクター）です。
type Story struct {
	ID         string             `json:"id"`
	Metadata   StoryMetadata      `json:"metadata"`
	Pages      Pages              `json:"pages"`
	Characters []CharacterProfile `json:"characters,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Pages は StoryPage のスライスに対する操作をまとめた型です。
type Pages []StoryPage

// FullText は全ページの本文を "Page N:" 見出し付きで結合して返します。
// キャラクター抽出など、物語全体の文脈が必要な処理で使用します。
func (ps Pages) FullText() string {
	var sb strings.Builder
	for i, p := range ps {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("Page %d:\n%s", p.PageNumber, p.Text))
	}
	return sb.String()
}
