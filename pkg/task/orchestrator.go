package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

const defaultWorkers = 4

// Orchestrator はタスクの投入・実行・照会を統括します。
//
// Start で固定サイズのワーカープールを起動し、Submit は検証済みのタスクを
// キューに積んで即座にIDを返します。ワーカー境界はエラーと panic の両方を
// 捕捉してタスクの error 状態に変換するため、ハンドラの失敗がプールを
// 止めることはありません。
type Orchestrator struct {
	store    *Store
	handlers map[Kind]Handler
	queue    chan string
	workers  int

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewOrchestrator は Orchestrator を生成します。
// workers に 0 以下を渡すとデフォルトのプールサイズが使われます。
func NewOrchestrator(store *Store, workers int) *Orchestrator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Orchestrator{
		store:    store,
		handlers: make(map[Kind]Handler),
		queue:    make(chan string, workers*16),
		workers:  workers,
	}
}

// Register はタスク種別にハンドラを紐付けます。Start 前に呼びます。
func (o *Orchestrator) Register(kind Kind, h Handler) {
	o.handlers[kind] = h
}

// Start はワーカープールを起動します。ctx は実行中のハンドラに渡されます。
// ワーカー自体は Stop でキューが閉じられ、積み残しを処理し切るまで動き続けます。
func (o *Orchestrator) Start(ctx context.Context) {
	for i := 0; i < o.workers; i++ {
		o.wg.Add(1)
		go o.worker(ctx, i)
	}
	slog.InfoContext(ctx, "ワーカープールを起動しました", "workers", o.workers)
}

// Stop はキューを閉じ、実行中のタスクの完了を待ちます。
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.queue) })
	o.wg.Wait()
}

// Submit はタスクを投入し、ポーリング用のIDを即座に返します。
// プロバイダ呼び出しなどの実処理が始まる前に戻ります。
func (o *Orchestrator) Submit(ctx context.Context, kind Kind, input json.RawMessage) (string, error) {
	h, ok := o.handlers[kind]
	if !ok {
		return "", fmt.Errorf("未登録のタスク種別です: %s: %w", kind, domain.ErrValidation)
	}
	if err := h.Validate(input); err != nil {
		return "", fmt.Errorf("タスク入力の検証に失敗しました (kind=%s): %w", kind, err)
	}

	t := &Task{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    StatusPending,
		Input:     input,
		CreatedAt: time.Now(),
	}
	o.store.Put(t)

	// 投入は即座に完了する契約のため、キューが満杯でもブロックしません。
	select {
	case o.queue <- t.ID:
	default:
		o.store.Delete(t.ID)
		return "", fmt.Errorf("タスクキューが満杯です (kind=%s): %w", kind, domain.ErrOverloaded)
	}

	slog.InfoContext(ctx, "タスクを受け付けました", "task_id", t.ID, "kind", kind)
	return t.ID, nil
}

// Status はタスクの現在の記録を返します。
func (o *Orchestrator) Status(id string) (*Task, error) {
	return o.store.Get(id)
}

// worker はキューが閉じられるまでタスクを処理し続けます。ctx のキャンセルは
// 実行中のハンドラに伝わり、受理済みのタスクをペンディングのまま放置しません。
func (o *Orchestrator) worker(ctx context.Context, n int) {
	defer o.wg.Done()
	for id := range o.queue {
		o.execute(ctx, id)
	}
}

// execute は1件のタスクを実行します。ハンドラの panic もここで吸収します。
func (o *Orchestrator) execute(ctx context.Context, id string) {
	t, err := o.store.Get(id)
	if err != nil {
		slog.WarnContext(ctx, "キュー上のタスクが見つかりません", "task_id", id)
		return
	}
	h, ok := o.handlers[t.Kind]
	if !ok {
		o.fail(id, fmt.Sprintf("未登録のタスク種別です: %s", t.Kind))
		return
	}

	o.store.transition(id, func(t *Task) {
		t.Status = StatusRunning
		now := time.Now()
		t.StartedAt = &now
	})

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "タスクハンドラが panic しました",
				"task_id", id, "kind", t.Kind, "panic", r, "stack", string(debug.Stack()))
			o.fail(id, fmt.Sprintf("内部エラー: %v", r))
		}
	}()

	result, err := h.Run(ctx, t.Input)
	if err != nil {
		slog.WarnContext(ctx, "タスクが失敗しました", "task_id", id, "kind", t.Kind, "error", err)
		o.fail(id, err.Error())
		return
	}

	o.store.transition(id, func(t *Task) {
		t.Status = StatusCompleted
		t.Result = result
		now := time.Now()
		t.CompletedAt = &now
	})
	slog.InfoContext(ctx, "タスクが完了しました", "task_id", id, "kind", t.Kind)
}

func (o *Orchestrator) fail(id, msg string) {
	o.store.transition(id, func(t *Task) {
		t.Status = StatusError
		t.Error = msg
		now := time.Now()
		t.CompletedAt = &now
	})
}
