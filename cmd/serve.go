package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shouni/go-storybook-kit/internal/builder"
	"github.com/shouni/go-storybook-kit/internal/config"
	"github.com/shouni/go-storybook-kit/internal/server"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// serveCmd は、絵本生成のHTTP APIサーバーを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "絵本生成のAPIサーバーを起動するのだ。",
	Long: `タスクの投入とポーリング、セッションの照会・再構築を提供する
HTTPサーバーを起動するのだ。生成系はすべて非同期で、202で受け付けた
タスクIDをポーリングして結果を取得するのだよ。`,
	RunE: serveCommand,
}

// serveCommand は、serve サブコマンドの実行ロジック本体なのだ。
func serveCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	cfg.GeminiModel = opts.AIModel
	cfg.GeminiImageModel = opts.ImageModel
	cfg.Options = opts

	app, err := builder.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("アプリケーションの初期化に失敗したのだ: %w", err)
	}

	srv := server.New(server.Services{
		Stories:      app.Stories,
		Characters:   app.Characters,
		Illustrator:  app.Illustrator,
		Sessions:     app.Sessions,
		Projects:     app.Projects,
		Orchestrator: app.Orchestrator,
	})
	// ワーカーはシグナルでは止めないのだ。HTTPの受付を止めた後に Stop が
	// キューを閉じ、受理済みのタスクを処理し切ってから終了するのだよ。
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()
	app.Orchestrator.Start(workerCtx)
	defer app.Orchestrator.Stop()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("APIサーバーを起動するのだ！", "addr", cfg.ListenAddr, "workers", cfg.Workers)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("サーバーの起動に失敗したのだ: %w", err)
	case <-ctx.Done():
	}

	slog.Info("シャットダウンするのだ...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("シャットダウンに失敗したのだ: %w", err)
	}
	return nil
}
