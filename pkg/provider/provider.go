// Package provider は、テキスト・画像生成サービスとの境界契約を定義します。
// コアはここで定義されたインターフェースにのみ依存し、個別プロバイダの
// 失敗（接続・タイムアウト・不正応答）はすべて一様な Error として扱います。
package provider

import (
	"context"
	"fmt"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// Image は生成された1枚の画像の所在と内容を表します。
type Image struct {
	// Path は保存先（ローカルパスまたは gs:// URI）です。
	Path string
	// FileURI は File API 上の参照URIです。後続の生成で参照として使えます。
	FileURI string
	// MimeType は画像のMIMEタイプです。
	MimeType string
	// Data は画像のバイト列です。保存済みの場合は空のことがあります。
	Data []byte
}

// TextGenerator はテキスト生成プロバイダとの契約です。
type TextGenerator interface {
	// GenerateText はプロンプトからテキストを生成します。
	// systemPrompt は役割定義で、空の場合は省略されます。
	GenerateText(ctx context.Context, userPrompt, systemPrompt string) (string, error)
}

// ImageClient は画像生成プロバイダとの契約です。
// セッション（会話）単位の生成と、単発の生成の両方をサポートします。
type ImageClient interface {
	// OpenSession は新しい会話を開き、そのハンドルを返します。
	// ハンドルはプロセス寿命であり、永続化しても意味を持ちません。
	OpenSession(ctx context.Context) (string, error)
	// GenerateInSession は既存の会話の文脈内で画像を生成します。
	GenerateInSession(ctx context.Context, sessionID, prompt string) (*Image, error)
	// Generate は会話の文脈を使わずに画像を生成します。
	Generate(ctx context.Context, prompt string) (*Image, error)
}

// Error はプロバイダ呼び出しの失敗を表します。
// errors.Is(err, domain.ErrProviderFailure) で一律に判定できます。
type Error struct {
	Provider string // "text" / "image" など
	Op       string // 失敗した操作名
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s provider: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is は domain.ErrProviderFailure との比較を成立させます。
func (e *Error) Is(target error) bool { return target == domain.ErrProviderFailure }

// WrapError はプロバイダ呼び出しの失敗を Error に包んで返します。
func WrapError(providerName, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Provider: providerName, Op: op, Err: err}
}
