package parser

import "regexp"

var (
	// PageHeaderRegex は "Page 1:" / "Página 1:" 形式のページ見出しをキャプチャします。
	PageHeaderRegex = regexp.MustCompile(`(?i)(?:Page|Página)\s+(\d+):\s*`)

	// JSONBlockRegex は ```json ... ``` 形式のコードブロックから中身を取り出します。
	JSONBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*\\S)\\s*```")
)
