// Package session は、物語ごとの画像生成セッション（会話）を管理します。
//
// セッションはプロバイダ側の会話ハンドルと、それを構築したときの入力
// （アートバイブル・キャラクター参照）のスナップショットの組です。
// ハンドルはプロセス寿命であり、永続化されるのは入力の側だけです。
// したがってセッションは、いつでも入力から同等のものを再構築できます。
package session

import (
	"sync"
	"time"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// State はセッションの状態の三値表現です。
type State string

const (
	// StateNone はセッションが存在しないことを表します。正常な状態です。
	StateNone State = "none"
	// StatePartial はハンドルとプライミングの整合が取れていない状態です。
	// この状態のセッションを生成に使ってはならず、Rebuild が必要です。
	StatePartial State = "partial"
	// StateActive はプライミング済みで生成に使用できる状態です。
	StateActive State = "active"
)

// Session は1物語分のセッション状態です。
type Session struct {
	StoryID            string
	SessionID          string
	ContextInitialized bool

	// ArtBible はプライミングに使用したアートバイブルのスナップショットです。
	ArtBible domain.ArtBible
	// CharacterRefs はキャラクター名から参照プロンプトへのマップです。
	CharacterRefs map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status は Manager.Status が返す、外部向けのセッション状態です。
type Status struct {
	HasSession         bool   `json:"has_session"`
	ContextInitialized bool   `json:"context_initialized"`
	State              State  `json:"state"`
	SessionID          string `json:"session_id,omitempty"`
}

// StateOf はセッションの三値状態を判定します。
// ハンドルと初期化フラグのどちらか一方だけが立っている場合は partial です。
func StateOf(s Session) State {
	switch {
	case s.SessionID != "" && s.ContextInitialized:
		return StateActive
	case s.SessionID == "" && !s.ContextInitialized:
		return StateNone
	default:
		return StatePartial
	}
}

// Store は物語IDをキーとするセッションの保管庫です。
// グローバル変数ではなく、Manager へ明示的に注入して使用します。
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewStore は空の Store を生成します。
func NewStore() *Store {
	return &Store{sessions: make(map[string]Session)}
}

// Get は指定された物語のセッションのコピーを返します。
func (st *Store) Get(storyID string) (Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[storyID]
	if !ok {
		return Session{}, false
	}
	return copySession(s), true
}

// Put はセッションを保存します。既存のエントリは置き換えられます。
func (st *Store) Put(s Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.StoryID] = copySession(s)
}

// Delete は指定された物語のセッションを破棄します。
func (st *Store) Delete(storyID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, storyID)
}

// Adopt は永続化層から復元したハンドルを取り込みます。
// プライミングの完了は確認できないため、セッションは partial として
// 保存され、使用前に Rebuild が要求されます。
func (st *Store) Adopt(storyID, sessionID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[storyID] = Session{
		StoryID:   storyID,
		SessionID: sessionID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// copySession はマップを含む防御的コピーを返します。
func copySession(s Session) Session {
	copied := s
	if s.CharacterRefs != nil {
		copied.CharacterRefs = make(map[string]string, len(s.CharacterRefs))
		for k, v := range s.CharacterRefs {
			copied.CharacterRefs[k] = v
		}
	}
	return copied
}
