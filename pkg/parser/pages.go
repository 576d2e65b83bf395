package parser

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// ParseStoryPages はAIが生成した物語テキストをページ単位に分解します。
//
// 想定する形式は "Page 1:\n本文\n\nPage 2:..." です。スペイン語の
// "Página 1:" にも対応します。見出しの前に前置きがあれば読み飛ばし、
// 本文が空のページは採用しません。
func ParseStoryPages(storyText string) []domain.StoryPage {
	var pages []domain.StoryPage

	// 見出し位置と番号を先に収集し、見出し間のテキストを本文として切り出します。
	matches := PageHeaderRegex.FindAllStringSubmatchIndex(storyText, -1)
	if len(matches) == 0 {
		slog.Warn("ページ見出しが見つかりませんでした", "length", len(storyText))
		return pages
	}

	for i, m := range matches {
		numStr := storyText[m[2]:m[3]]
		pageNumber, err := strconv.Atoi(numStr)
		if err != nil {
			// 見出しに見えて番号が取れない行は読み飛ばします。
			continue
		}

		bodyStart := m[1]
		bodyEnd := len(storyText)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}

		text := strings.TrimSpace(storyText[bodyStart:bodyEnd])
		if text == "" {
			continue
		}

		pages = append(pages, domain.StoryPage{
			PageNumber: pageNumber,
			Text:       text,
		})
	}

	return pages
}

// ExtractJSON はAI応答からJSON本体を取り出します。
// マークダウンのコードブロックに包まれている場合はその中身を、
// そうでなければ最外殻の { ... } を採用します。
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if matches := JSONBlockRegex.FindStringSubmatch(raw); len(matches) > 1 {
		return matches[1]
	}

	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first != -1 && last != -1 && last > first {
		return raw[first : last+1]
	}

	return raw
}
