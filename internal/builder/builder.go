// Package builder は、アプリケーションを構成するクライアント群と
// サービス群の初期化（依存関係の注入）を担当するのだ。
package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	imagekit "github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-gemini-client/pkg/gemini"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-storybook-kit/internal/config"
	"github.com/shouni/go-storybook-kit/pkg/generator"
	"github.com/shouni/go-storybook-kit/pkg/projectstore"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/provider/geminikit"
	"github.com/shouni/go-storybook-kit/pkg/session"
	"github.com/shouni/go-storybook-kit/pkg/task"
)

const (
	defaultGeminiTemperature = float32(0.7)
	defaultCacheExpiration   = 5 * time.Minute
	cacheCleanupInterval     = 15 * time.Minute
	defaultTTL               = 5 * time.Minute
)

// App は、組み立て済みのサービス群を保持するアプリケーションコンテキストなのだ。
type App struct {
	Config       *config.Config
	Reader       remoteio.InputReader
	Writer       remoteio.OutputWriter
	Stories      *generator.StoryGenerator
	Characters   *generator.CharacterExtractor
	Illustrator  *generator.Illustrator
	Sessions     *session.Manager
	Projects     *projectstore.Store
	Orchestrator *task.Orchestrator
}

// NewApp は設定からアプリケーション全体を組み立てるのだ！
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	aiClient, err := initializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSクライアントファクトリの生成に失敗しました: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	httpClient := httpkit.New(cfg.HTTPTimeout)
	core, err := initializeCore(reader, httpClient, aiClient)
	if err != nil {
		return nil, fmt.Errorf("画像生成エンジンの初期化に失敗しました: %w", err)
	}
	imgGen, err := imagekit.NewGeminiGenerator(cfg.GeminiImageModel, core)
	if err != nil {
		return nil, fmt.Errorf("画像ジェネレーターの初期化に失敗しました: %w", err)
	}

	assembler := prompts.NewAssembler("")
	limiter := rate.NewLimiter(rate.Every(cfg.RateLimit), 1)

	imageClient := geminikit.NewImageSessionClient(imgGen, core, writer, cfg.ImageDir)
	textClient := geminikit.NewTextClient(aiClient, cfg.GeminiModel)

	sessions := session.NewManager(session.NewStore(), imageClient, assembler, limiter)
	illustrator := generator.NewIllustrator(sessions, imageClient, assembler, 0)

	return &App{
		Config:       cfg,
		Reader:       reader,
		Writer:       writer,
		Stories:      generator.NewStoryGenerator(textClient, assembler),
		Characters:   generator.NewCharacterExtractor(textClient, assembler),
		Illustrator:  illustrator,
		Sessions:     sessions,
		Projects:     projectstore.NewStore(reader, writer, cfg.ProjectDir),
		Orchestrator: task.NewOrchestrator(task.NewStore(cfg.TaskRetention), cfg.Workers),
	}, nil
}

// initializeAIClient は gemini クライアントを初期化します。
func initializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// initializeCore 提供された依存関係で構成された GeminiImageCore インスタンスを初期化して返します。
func initializeCore(reader remoteio.InputReader, httpClient httpkit.ClientInterface, aiClient gemini.GenerativeModel) (*imagekit.GeminiImageCore, error) {
	imgCache := cache.New(defaultCacheExpiration, cacheCleanupInterval)
	core, err := imagekit.NewGeminiImageCore(
		aiClient,
		reader,
		httpClient,
		imgCache,
		defaultTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("GeminiImageCore の初期化に失敗しました: %w", err)
	}
	return core, nil
}
