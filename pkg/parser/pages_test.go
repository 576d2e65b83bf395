package parser

import (
	"strings"
	"testing"
)

func TestParseStoryPages(t *testing.T) {
	t.Run("標準的なページ形式をパースできること", func(t *testing.T) {
		text := "Page 1:\nOnce upon a time, there was a little mouse.\n\nPage 2:\nThe mouse went to the forest.\n\nPage 3:\nAnd they all lived happily."

		pages := ParseStoryPages(text)
		if len(pages) != 3 {
			t.Fatalf("期待値 3ページ, 実際の値 %dページ", len(pages))
		}
		if pages[0].PageNumber != 1 || !strings.Contains(pages[0].Text, "little mouse") {
			t.Errorf("1ページ目の内容が不正です: %+v", pages[0])
		}
		if pages[2].PageNumber != 3 {
			t.Errorf("3ページ目の番号が不正です: %d", pages[2].PageNumber)
		}
	})

	t.Run("スペイン語の見出しをパースできること", func(t *testing.T) {
		text := "Página 1:\nHabía una vez un ratoncito.\n\nPágina 2:\nEl ratón fue al bosque."

		pages := ParseStoryPages(text)
		if len(pages) != 2 {
			t.Fatalf("期待値 2ページ, 実際の値 %dページ", len(pages))
		}
	})

	t.Run("見出し前の前置きを読み飛ばすこと", func(t *testing.T) {
		text := "Here is your story!\n\nPage 1:\nOnce upon a time."

		pages := ParseStoryPages(text)
		if len(pages) != 1 {
			t.Fatalf("期待値 1ページ, 実際の値 %dページ", len(pages))
		}
		if strings.Contains(pages[0].Text, "Here is your story") {
			t.Errorf("前置きが本文に混入しています: %q", pages[0].Text)
		}
	})

	t.Run("本文が空のページは採用しないこと", func(t *testing.T) {
		text := "Page 1:\n\nPage 2:\nReal content."

		pages := ParseStoryPages(text)
		if len(pages) != 1 || pages[0].PageNumber != 2 {
			t.Errorf("空ページの扱いが不正です: %+v", pages)
		}
	})

	t.Run("見出しがない場合は空スライスを返すこと", func(t *testing.T) {
		if pages := ParseStoryPages("just some prose without markers"); len(pages) != 0 {
			t.Errorf("期待値 0ページ, 実際の値 %dページ", len(pages))
		}
	})

	t.Run("大文字小文字を区別しないこと", func(t *testing.T) {
		if pages := ParseStoryPages("PAGE 1:\ncontent here"); len(pages) != 1 {
			t.Errorf("期待値 1ページ, 実際の値 %dページ", len(pages))
		}
	})
}

func TestExtractJSON(t *testing.T) {
	want := `{"characters": []}`

	t.Run("コードブロックからJSONを取り出せること", func(t *testing.T) {
		raw := "```json\n{\"characters\": []}\n```"
		if got := ExtractJSON(raw); got != want {
			t.Errorf("期待値 %q, 実際の値 %q", want, got)
		}
	})

	t.Run("言語指定なしのコードブロックにも対応すること", func(t *testing.T) {
		raw := "```\n{\"characters\": []}\n```"
		if got := ExtractJSON(raw); got != want {
			t.Errorf("期待値 %q, 実際の値 %q", want, got)
		}
	})

	t.Run("前後に文章があっても最外殻のJSONを取り出せること", func(t *testing.T) {
		raw := "Sure! Here you go: {\"characters\": []} Hope that helps."
		if got := ExtractJSON(raw); got != want {
			t.Errorf("期待値 %q, 実際の値 %q", want, got)
		}
	})

	t.Run("JSONが見つからない場合は入力をそのまま返すこと", func(t *testing.T) {
		if got := ExtractJSON("no json here"); got != "no json here" {
			t.Errorf("実際の値 %q", got)
		}
	})
}
