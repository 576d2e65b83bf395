package geminikit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/google/uuid"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/provider"
)

const (
	// pageAspectRatio は絵本の挿絵の推奨アスペクト比です。
	pageAspectRatio = "3:4"

	// maxSessionRefs は1回の生成リクエストに添付する参照画像の上限です。
	// プライミング直後の参照を優先し、超過分は古いものから落とします。
	maxSessionRefs = 6
)

// PageGenerator は gemini-image-kit の生成器のうち、このアダプタが使う操作です。
type PageGenerator interface {
	GenerateMangaPage(ctx context.Context, req imagedom.ImagePageRequest) (*imagedom.ImageResponse, error)
	GenerateMangaPanel(ctx context.Context, req imagedom.ImageGenerationRequest) (*imagedom.ImageResponse, error)
}

// AssetUploader はローカルに保存した画像を File API に登録し、URI を返します。
type AssetUploader interface {
	UploadFile(ctx context.Context, path string) (string, error)
}

// ImageSessionClient は gemini-image-kit を provider.ImageClient に適合させます。
//
// Gemini にはプロバイダ側の会話ハンドルがないため、セッションはローカルに
// 管理します。セッション内で生成した画像を File API にアップロードし、
// 後続の生成リクエストに参照として添付することで、会話と同等の視覚的
// 連続性を実現します。
type ImageSessionClient struct {
	generator PageGenerator
	assets    AssetUploader
	writer    remoteio.OutputWriter
	imageDir  string

	mu       sync.RWMutex
	sessions map[string]*sessionAssets
}

// sessionAssets は1セッション分の参照URIと生成回数を保持します。
type sessionAssets struct {
	refs  []string
	turns int
}

// NewImageSessionClient は新しい ImageSessionClient を生成します。
func NewImageSessionClient(
	gen PageGenerator,
	assets AssetUploader,
	writer remoteio.OutputWriter,
	imageDir string,
) *ImageSessionClient {
	return &ImageSessionClient{
		generator: gen,
		assets:    assets,
		writer:    writer,
		imageDir:  imageDir,
		sessions:  make(map[string]*sessionAssets),
	}
}

// OpenSession は新しいセッションハンドルを発行します。
func (ic *ImageSessionClient) OpenSession(ctx context.Context) (string, error) {
	id := uuid.NewString()

	ic.mu.Lock()
	ic.sessions[id] = &sessionAssets{}
	ic.mu.Unlock()

	slog.InfoContext(ctx, "画像セッションを開きました", "session_id", id)
	return id, nil
}

// GenerateInSession はセッションの参照画像を添付して画像を生成します。
// 生成結果は保存・アップロードされ、次回以降の参照として蓄積されます。
func (ic *ImageSessionClient) GenerateInSession(ctx context.Context, sessionID, prompt string) (*provider.Image, error) {
	ic.mu.RLock()
	sess, ok := ic.sessions[sessionID]
	var refs []string
	var turn int
	if ok {
		refs = append(refs, sess.refs...)
		turn = sess.turns
	}
	ic.mu.RUnlock()

	if !ok {
		return nil, provider.WrapError("image", "generate_in_session",
			fmt.Errorf("unknown session: %s", sessionID))
	}

	req := imagedom.ImagePageRequest{
		Prompt:         prompt,
		NegativePrompt: prompts.DefaultNegativePrompt,
		AspectRatio:    pageAspectRatio,
		ReferenceURLs:  refs,
	}

	resp, err := ic.generator.GenerateMangaPage(ctx, req)
	if err != nil {
		return nil, provider.WrapError("image", "generate_in_session", err)
	}

	img := &provider.Image{MimeType: resp.MimeType, Data: resp.Data}

	// 保存とFile APIへの登録。失敗しても生成自体は成功として扱い、
	// 以降の連続性だけが弱まる扱いにします。
	path := fmt.Sprintf("%s/%s_%03d%s", strings.TrimRight(ic.imageDir, "/"), sessionID, turn+1, extensionFor(resp.MimeType))
	ic.persist(ctx, img, path)
	if img.FileURI != "" {
		ic.appendRef(sessionID, img.FileURI)
	}

	ic.mu.Lock()
	if sess, ok := ic.sessions[sessionID]; ok {
		sess.turns++
	}
	ic.mu.Unlock()

	return img, nil
}

// Generate はセッションの文脈を使わずに1枚の画像を生成します。
// 生成結果はセッション生成と同様に保存・アップロードされ、Path と
// FileURI が呼び出し側で参照できます。
func (ic *ImageSessionClient) Generate(ctx context.Context, prompt string) (*provider.Image, error) {
	req := imagedom.ImageGenerationRequest{
		Prompt:         prompt,
		NegativePrompt: prompts.DefaultNegativePrompt,
		AspectRatio:    pageAspectRatio,
	}

	resp, err := ic.generator.GenerateMangaPanel(ctx, req)
	if err != nil {
		return nil, provider.WrapError("image", "generate", err)
	}

	img := &provider.Image{MimeType: resp.MimeType, Data: resp.Data}
	path := fmt.Sprintf("%s/single_%s%s", strings.TrimRight(ic.imageDir, "/"), uuid.NewString(), extensionFor(resp.MimeType))
	ic.persist(ctx, img, path)

	return img, nil
}

// persist は生成画像をローカルに保存し、File API に登録します。
// 成功した段階に応じて img.Path と img.FileURI を埋めます。
// いずれの失敗も警告ログに留め、生成自体の成否には影響させません。
func (ic *ImageSessionClient) persist(ctx context.Context, img *provider.Image, path string) {
	if err := ic.writer.Write(ctx, path, bytes.NewReader(img.Data), img.MimeType); err != nil {
		slog.WarnContext(ctx, "生成画像の保存に失敗しました", "path", path, "error", err)
		return
	}
	img.Path = path

	uri, err := ic.assets.UploadFile(ctx, path)
	if err != nil {
		slog.WarnContext(ctx, "File APIへのアップロードに失敗しました", "path", path, "error", err)
		return
	}
	img.FileURI = uri
}

// appendRef は参照URIをセッションに追加します。上限を超えた場合は、
// プライミング由来の先頭参照を残して古い参照から間引きます。
func (ic *ImageSessionClient) appendRef(sessionID, uri string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	sess, ok := ic.sessions[sessionID]
	if !ok {
		return
	}

	sess.refs = append(sess.refs, uri)
	if len(sess.refs) > maxSessionRefs {
		head := sess.refs[0]
		tail := sess.refs[len(sess.refs)-(maxSessionRefs-1):]
		sess.refs = append([]string{head}, tail...)
	}
}

// extensionFor はMIMEタイプから保存用の拡張子を決定します。
func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
