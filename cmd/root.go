package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-storybook-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/spf13/cobra"
)

// opts は、コマンドラインから渡される実行時パラメータの置き場なのだ。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 物語の生成条件 ---
	rootCmd.PersistentFlags().StringVarP(&opts.Theme, "theme", "t", "", "物語のテーマなのだ。(例: 'forest adventure')")
	rootCmd.PersistentFlags().StringVar(&opts.Title, "title", "", "物語のタイトルなのだ。")
	rootCmd.PersistentFlags().IntVarP(&opts.NumPages, "pages", "p", 5, "生成するページ数なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.AgeGroup, "age-group", "4-6", "対象年齢なのだ。(例: '4-6')")
	rootCmd.PersistentFlags().StringVarP(&opts.ArtStyle, "art-style", "s", "watercolor", "挿絵のアートスタイルなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.Genre, "genre", "g", "", "物語のジャンルなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.Language, "language", "English", "物語の言語なのだ。")
	rootCmd.PersistentFlags().IntVar(&opts.WordsPerPage, "words-per-page", 40, "1ページあたりの語数の目安なのだ。")

	// --- 生成結果の出力設定 ---
	rootCmd.PersistentFlags().StringVarP(&opts.OutputImageDir, "output-image-dir", "i", config.DefaultImageDir, "生成された画像を保存するディレクトリ（ローカル or gs://...）なのだ。")
	rootCmd.PersistentFlags().BoolVar(&opts.SkipImages, "skip-images", false, "挿絵の生成を飛ばして本文だけを作るのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", config.DefaultModel, "テキスト生成に使う Gemini モデル名なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", config.DefaultImageModel, "画像生成に使う Gemini モデル名なのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	return nil
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"storybook-go",
		addAppFlags,
		preRunAppE,
		storyCmd,
		serveCmd,
	)
}
