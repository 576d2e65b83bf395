package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel         = "gemini-3-flash-preview"
	DefaultImageModel    = "gemini-3-pro-image-preview"
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultRateLimit     = 2 * time.Second
	DefaultWorkers       = 4
	DefaultListenAddr    = ":8080"
	DefaultImageDir      = "output/images"      // 生成画像のデフォルト保存先なのだ
	DefaultProjectDir    = "output/projects"    // 再構築用スナップショットの保存先なのだ
	DefaultTaskRetention = time.Duration(0) // 0 は無期限保持なのだ
)

// Config はアプリケーション全体の環境設定（APIキーやモデル設定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey     string
	GeminiModel      string
	GeminiImageModel string

	ListenAddr    string
	Workers       int
	TaskRetention time.Duration
	RateLimit     time.Duration
	HTTPTimeout   time.Duration

	ImageDir   string
	ProjectDir string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	return &Config{
		GeminiAPIKey:     envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:      envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel: envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		ListenAddr:       envutil.GetEnv("LISTEN_ADDR", DefaultListenAddr),
		Workers:          getEnvInt("TASK_WORKERS", DefaultWorkers),
		TaskRetention:    getEnvDuration("TASK_RETENTION", DefaultTaskRetention),
		RateLimit:        getEnvDuration("PROVIDER_RATE_LIMIT", DefaultRateLimit),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", DefaultHTTPTimeout),
		ImageDir:         envutil.GetEnv("IMAGE_OUTPUT_DIR", DefaultImageDir),
		ProjectDir:       envutil.GetEnv("PROJECT_OUTPUT_DIR", DefaultProjectDir),
	}
}

// Validate は実行前に必須の設定が揃っているかを確認するのだ。
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("環境変数 GEMINI_API_KEY が設定されていません")
	}
	return nil
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 物語生成関連
	Theme        string // --theme
	Title        string // --title
	NumPages     int    // --pages
	AgeGroup     string // --age-group
	ArtStyle     string // --art-style
	Genre        string // --genre
	Language     string // --language
	WordsPerPage int    // --words-per-page

	// 出力関連
	OutputImageDir string // --output-image-dir
	SkipImages     bool   // --skip-images

	// AI挙動設定
	AIModel    string // --model: テキスト生成用のGeminiモデル
	ImageModel string // --image-model: 画像生成用のGeminiモデル
}

func getEnvInt(key string, def int) int {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := envutil.GetEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
