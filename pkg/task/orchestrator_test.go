package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// waitTerminal はタスクが終端状態になるまでポーリングします。
func waitTerminal(t *testing.T, o *Orchestrator, id string) *Task {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := o.Status(id)
		if err != nil {
			t.Fatalf("Status が失敗したのだ: %v", err)
		}
		if got.Status.Terminal() {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("タスク %s が終端状態に達しないのだ", id)
	return nil
}

func TestSubmit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("投入は即座にIDを返し照会できるのだ", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		o := NewOrchestrator(NewStore(0), 1)
		o.Register(KindStoryGenerate, HandlerFunc(func(ctx context.Context, _ json.RawMessage) (any, error) {
			close(started)
			<-release
			return "done", nil
		}))
		o.Start(ctx)
		defer o.Stop()

		id, err := o.Submit(ctx, KindStoryGenerate, nil)
		if err != nil {
			t.Fatalf("Submit が失敗したのだ: %v", err)
		}

		// ハンドラがブロックしている間も照会は成功する。
		<-started
		got, err := o.Status(id)
		if err != nil {
			t.Fatalf("Status が失敗したのだ: %v", err)
		}
		if got.Status != StatusRunning {
			t.Errorf("実行中の状態: got %s, want %s", got.Status, StatusRunning)
		}

		close(release)
		final := waitTerminal(t, o, id)
		if final.Status != StatusCompleted {
			t.Errorf("最終状態: got %s, want %s", final.Status, StatusCompleted)
		}
		if final.Result != "done" {
			t.Errorf("結果: got %v, want done", final.Result)
		}
		if final.CompletedAt == nil {
			t.Error("完了時刻が記録されていないのだ")
		}
	})

	t.Run("未登録の種別は検証エラーなのだ", func(t *testing.T) {
		o := NewOrchestrator(NewStore(0), 1)
		_, err := o.Submit(ctx, Kind("unknown"), nil)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("ErrValidation を期待したのだ: %v", err)
		}
	})

	t.Run("Validate の失敗はキュー投入前に弾かれるのだ", func(t *testing.T) {
		o := NewOrchestrator(NewStore(0), 1)
		o.Register(KindPageImages, validateFailHandler{})
		_, err := o.Submit(ctx, KindPageImages, json.RawMessage(`{}`))
		if err == nil {
			t.Fatal("エラーが返るはずなのだ")
		}
	})
}

func TestSubmitOverload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("キューが満杯でもブロックせずにエラーを返すのだ", func(t *testing.T) {
		release := make(chan struct{})
		o := NewOrchestrator(NewStore(0), 1)
		o.Register(KindStoryGenerate, HandlerFunc(func(ctx context.Context, _ json.RawMessage) (any, error) {
			<-release
			return "done", nil
		}))
		o.Start(ctx)
		defer o.Stop()
		defer close(release)

		// ワーカーが1件を抱えて止まっている間にキュー容量を超えて投入する。
		var overloaded error
		for i := 0; i < 2+cap(o.queue); i++ {
			if _, err := o.Submit(ctx, KindStoryGenerate, nil); err != nil {
				overloaded = err
				break
			}
		}
		if !errors.Is(overloaded, domain.ErrOverloaded) {
			t.Fatalf("ErrOverloaded を期待したのだ: %v", overloaded)
		}
	})

	t.Run("弾かれた投入はタスク記録を残さないのだ", func(t *testing.T) {
		st := NewStore(0)
		st.Put(&Task{ID: "t1", Kind: KindStoryGenerate, Status: StatusPending})
		st.Delete("t1")
		if _, err := st.Get("t1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("ErrNotFound を期待したのだ: %v", err)
		}
	})
}

func TestStopDrainsQueue(t *testing.T) {
	t.Run("Stop は受理済みのタスクを処理し切ってから戻るのだ", func(t *testing.T) {
		o := NewOrchestrator(NewStore(0), 1)
		o.Register(KindStoryGenerate, HandlerFunc(func(ctx context.Context, _ json.RawMessage) (any, error) {
			time.Sleep(2 * time.Millisecond)
			return "done", nil
		}))
		o.Start(context.Background())

		ids := make([]string, 0, 5)
		for i := 0; i < 5; i++ {
			id, err := o.Submit(context.Background(), KindStoryGenerate, nil)
			if err != nil {
				t.Fatalf("Submit が失敗したのだ: %v", err)
			}
			ids = append(ids, id)
		}

		o.Stop()

		for _, id := range ids {
			got, err := o.Status(id)
			if err != nil {
				t.Fatalf("Status が失敗したのだ: %v", err)
			}
			if got.Status != StatusCompleted {
				t.Errorf("タスク %s: got %s, want %s", id, got.Status, StatusCompleted)
			}
		}
	})
}

type validateFailHandler struct{}

func (validateFailHandler) Validate(json.RawMessage) error {
	return fmt.Errorf("ページ数が不正です: %w", domain.ErrValidation)
}

func (validateFailHandler) Run(context.Context, json.RawMessage) (any, error) {
	return nil, nil
}

func TestFailureIsolation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("失敗タスクの後も後続タスクが実行されるのだ", func(t *testing.T) {
		o := NewOrchestrator(NewStore(0), 1)
		o.Register(KindStoryGenerate, HandlerFunc(func(ctx context.Context, input json.RawMessage) (any, error) {
			if string(input) == `"boom"` {
				return nil, errors.New("provider failure")
			}
			return "ok", nil
		}))
		o.Start(ctx)
		defer o.Stop()

		failID, err := o.Submit(ctx, KindStoryGenerate, json.RawMessage(`"boom"`))
		if err != nil {
			t.Fatalf("Submit が失敗したのだ: %v", err)
		}
		okID, err := o.Submit(ctx, KindStoryGenerate, json.RawMessage(`"fine"`))
		if err != nil {
			t.Fatalf("Submit が失敗したのだ: %v", err)
		}

		failed := waitTerminal(t, o, failID)
		if failed.Status != StatusError {
			t.Errorf("失敗タスクの状態: got %s, want %s", failed.Status, StatusError)
		}
		if failed.Error == "" {
			t.Error("エラーメッセージが空なのだ")
		}

		succeeded := waitTerminal(t, o, okID)
		if succeeded.Status != StatusCompleted {
			t.Errorf("後続タスクの状態: got %s, want %s", succeeded.Status, StatusCompleted)
		}
	})

	t.Run("ハンドラの panic もタスクの error に変換されるのだ", func(t *testing.T) {
		o := NewOrchestrator(NewStore(0), 1)
		o.Register(KindCharacterExtract, HandlerFunc(func(context.Context, json.RawMessage) (any, error) {
			panic("unexpected nil")
		}))
		o.Register(KindStoryGenerate, HandlerFunc(func(context.Context, json.RawMessage) (any, error) {
			return "alive", nil
		}))
		o.Start(ctx)
		defer o.Stop()

		id, err := o.Submit(ctx, KindCharacterExtract, nil)
		if err != nil {
			t.Fatalf("Submit が失敗したのだ: %v", err)
		}
		got := waitTerminal(t, o, id)
		if got.Status != StatusError {
			t.Errorf("panic 後の状態: got %s, want %s", got.Status, StatusError)
		}

		// プールは生きているのだ。
		id2, err := o.Submit(ctx, KindStoryGenerate, nil)
		if err != nil {
			t.Fatalf("Submit が失敗したのだ: %v", err)
		}
		if got := waitTerminal(t, o, id2); got.Status != StatusCompleted {
			t.Errorf("panic 後のプール: got %s, want %s", got.Status, StatusCompleted)
		}
	})
}

func TestStatusNotFound(t *testing.T) {
	o := NewOrchestrator(NewStore(0), 1)
	_, err := o.Status("no-such-task")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ErrNotFound を期待したのだ: %v", err)
	}
}

func TestTerminalImmutability(t *testing.T) {
	// 終端状態のタスクへの遷移は無視される。
	st := NewStore(0)
	now := time.Now()
	st.Put(&Task{ID: "t1", Kind: KindStoryGenerate, Status: StatusCompleted, Result: "final", CompletedAt: &now})

	st.transition("t1", func(t *Task) {
		t.Status = StatusError
		t.Error = "should not happen"
	})

	got, err := st.Get("t1")
	if err != nil {
		t.Fatalf("Get が失敗したのだ: %v", err)
	}
	if got.Status != StatusCompleted || got.Result != "final" {
		t.Errorf("終端タスクが書き換わってしまったのだ: %+v", got)
	}
}
