package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/shouni/go-storybook-kit/internal/builder"
	"github.com/shouni/go-storybook-kit/internal/config"
	"github.com/shouni/go-storybook-kit/pkg/domain"

	"github.com/spf13/cobra"
)

// storyCmd は、テーマから絵本1冊（本文・キャラクター・挿絵）を一括生成するのだ！
var storyCmd = &cobra.Command{
	Use:   "story",
	Short: "テーマから絵本を一括生成するのだ！",
	Long: `物語本文の生成、キャラクターの抽出、セッションを使った挿絵の生成までを
一気通貫で実行し、結果のJSONと画像を出力ディレクトリに保存するのだ。`,
	Example: "  storybook-go story -t 'forest adventure' -p 5 -s watercolor",
	RunE:    storyCommand,
}

// storyCommand は、story サブコマンドの実行ロジック本体なのだ。
func storyCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// 1. 必須チェック
	if opts.Theme == "" && opts.Title == "" {
		return fmt.Errorf("テーマ（--theme）またはタイトル（--title）を指定してほしいのだ")
	}

	// 2. 環境変数等から基本設定をロードするのだ
	cfg := config.LoadConfig()
	cfg.GeminiModel = opts.AIModel
	cfg.GeminiImageModel = opts.ImageModel
	cfg.ImageDir = opts.OutputImageDir
	cfg.Options = opts

	app, err := builder.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}

	slog.Info("絵本の生成を開始するのだ！",
		"theme", opts.Theme, "pages", opts.NumPages, "art_style", opts.ArtStyle)

	// 3. 物語本文の生成
	meta := domain.StoryMetadata{
		Title:               opts.Title,
		Language:            opts.Language,
		Complexity:          "simple",
		VocabularyDiversity: "moderate",
		AgeGroup:            opts.AgeGroup,
		NumPages:            opts.NumPages,
		WordsPerPage:        opts.WordsPerPage,
		Genre:               opts.Genre,
		ArtStyle:            opts.ArtStyle,
	}
	story, err := app.Stories.Generate(ctx, meta, opts.Theme)
	if err != nil {
		return fmt.Errorf("物語の生成に失敗したのだ: %w", err)
	}

	// 4. キャラクターの抽出とプロファイル構築
	profiles, err := app.Characters.Extract(ctx, story.Pages.FullText())
	if err != nil {
		return fmt.Errorf("キャラクター抽出に失敗したのだ: %w", err)
	}
	story.Characters = profiles
	slog.Info("キャラクターのプロファイルが揃ったのだ", "count", len(profiles))

	// 5. セッションを張って挿絵を生成するのだ
	if !opts.SkipImages {
		bible := domain.ArtBible{ArtStyle: opts.ArtStyle}
		illustrated, err := app.Illustrator.IllustratePages(ctx, story, bible)
		if err != nil {
			return fmt.Errorf("挿絵の生成に失敗したのだ: %w", err)
		}
		slog.Info("挿絵が完成したのだ", "illustrated", illustrated, "pages", len(story.Pages))
	}

	// 6. 結果JSONの保存
	data, err := json.MarshalIndent(story, "", "  ")
	if err != nil {
		return fmt.Errorf("結果のエンコードに失敗したのだ: %w", err)
	}
	outputPath := fmt.Sprintf("%s/%s.json", cfg.ProjectDir, story.ID)
	if err := app.Writer.Write(ctx, outputPath, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("結果の保存に失敗したのだ: %w", err)
	}

	slog.Info("絵本が完成したのだ！", "story_id", story.ID, "output", outputPath)
	return nil
}
