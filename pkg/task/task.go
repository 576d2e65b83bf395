// Package task は、長時間かかる生成処理の非同期オーケストレーションを提供します。
//
// 投入はハンドルIDを返して即座に完了し、実処理は固定サイズのワーカープールが
// 引き受けます。各タスクの成否はタスク自身に閉じ込められ、1件の失敗が
// プールや他のタスクを道連れにすることはありません。
package task

import (
	"context"
	"encoding/json"
	"time"
)

// Status はタスクのライフサイクル状態です。
// 遷移は pending → running → completed | error の一方向のみです。
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal は終端状態かどうかを返します。終端に達したタスクは不変です。
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Kind は登録済みハンドラを指すタスク種別です。
type Kind string

const (
	KindStoryGenerate      Kind = "story_generate"
	KindCharacterExtract   Kind = "character_extract"
	KindPageImages         Kind = "page_images"
	KindArtBible           Kind = "art_bible"
	KindCharacterReference Kind = "character_reference"
)

// Task は1件の非同期処理の記録です。
type Task struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Status      Status          `json:"status"`
	Input       json.RawMessage `json:"input,omitempty"`
	Result      any             `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Handler はタスク種別ごとの処理本体です。
//
// Validate は投入時に同期的に呼ばれ、不正な入力をキューに入る前に弾きます。
// Run はワーカー上で呼ばれ、戻り値がそのままタスクの Result になります。
type Handler interface {
	Validate(input json.RawMessage) error
	Run(ctx context.Context, input json.RawMessage) (any, error)
}

// HandlerFunc は関数を Handler に適合させます。Validate は常に成功します。
type HandlerFunc func(ctx context.Context, input json.RawMessage) (any, error)

func (f HandlerFunc) Validate(json.RawMessage) error { return nil }

func (f HandlerFunc) Run(ctx context.Context, input json.RawMessage) (any, error) {
	return f(ctx, input)
}
