package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/prompts"
	"github.com/shouni/go-storybook-kit/pkg/provider"
)

// デフォルトのプロバイダ呼び出しレート制限（対話型の生成を想定した控えめな値）。
const defaultSessionInterval = 2 * time.Second

// Manager はセッションのライフサイクル（確立・再構築・継続生成）を統括します。
//
// 確立は singleflight と物語ごとのロックで直列化され、同一物語に対する
// 並行した EnsureSession は「1回の open + 1回のプライミング」に収束します。
// プライミングが失敗した場合、ストアには一切書き込まれません。
type Manager struct {
	store     *Store
	images    provider.ImageClient
	assembler *prompts.Assembler
	limiter   *rate.Limiter

	initGroup singleflight.Group

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager は Manager を生成します。limiter に nil を渡すと
// デフォルトのレート制限が適用されます。
func NewManager(store *Store, images provider.ImageClient, assembler *prompts.Assembler, limiter *rate.Limiter) *Manager {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(defaultSessionInterval), 1)
	}
	return &Manager{
		store:     store,
		images:    images,
		assembler: assembler,
		limiter:   limiter,
		locks:     make(map[string]*sync.Mutex),
	}
}

// Status は指定された物語のセッション状態を返します。失敗しません。
func (m *Manager) Status(storyID string) Status {
	s, ok := m.store.Get(storyID)
	if !ok {
		return Status{State: StateNone}
	}
	st := StateOf(s)
	out := Status{
		HasSession:         s.SessionID != "",
		ContextInitialized: s.ContextInitialized,
		State:              st,
	}
	// 初期化済みのハンドルだけを外部へ公開する。
	if st == StateActive {
		out.SessionID = s.SessionID
	}
	return out
}

// EnsureSession はアクティブなセッションを確立し、そのIDを返します。
// 冪等であり、既にアクティブな場合はプロバイダを呼ばずに既存IDを返します。
func (m *Manager) EnsureSession(ctx context.Context, storyID string, artBible domain.ArtBible, profiles []domain.CharacterProfile) (string, error) {
	if storyID == "" {
		return "", fmt.Errorf("物語IDが空です: %w", domain.ErrValidation)
	}

	if s, ok := m.store.Get(storyID); ok && StateOf(s) == StateActive {
		return s.SessionID, nil
	}

	v, err, _ := m.initGroup.Do(storyID, func() (any, error) {
		lock := m.storyLock(storyID)
		lock.Lock()
		defer lock.Unlock()

		// ロック獲得までの間に他の呼び出しが確立を終えている場合がある。
		if s, ok := m.store.Get(storyID); ok && StateOf(s) == StateActive {
			return s.SessionID, nil
		}
		return m.initialize(ctx, storyID, artBible, profiles)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Rebuild は既存のセッションを破棄し、与えられた入力から新しいセッションを
// 構築します。partial 状態からの唯一の回復手段です。
func (m *Manager) Rebuild(ctx context.Context, storyID string, artBible domain.ArtBible, profiles []domain.CharacterProfile) (string, error) {
	if storyID == "" {
		return "", fmt.Errorf("物語IDが空です: %w", domain.ErrValidation)
	}

	lock := m.storyLock(storyID)
	lock.Lock()
	defer lock.Unlock()

	// 進行中の EnsureSession と結果を共有しないよう、共有キーを破棄する。
	m.initGroup.Forget(storyID)
	m.store.Delete(storyID)

	slog.InfoContext(ctx, "セッションを再構築します", "story_id", storyID)
	return m.initialize(ctx, storyID, artBible, profiles)
}

// ContinueGeneration はアクティブなセッション内で1枚の画像を生成します。
// セッションが未確立または partial の場合はプロバイダを呼ばずに失敗します。
func (m *Manager) ContinueGeneration(ctx context.Context, storyID, promptText string) (*provider.Image, error) {
	s, ok := m.store.Get(storyID)
	if !ok || StateOf(s) != StateActive {
		return nil, fmt.Errorf("物語 %s のセッションが確立されていません: %w", storyID, domain.ErrSessionNotReady)
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レート制限の待機に失敗しました: %w", err)
	}
	img, err := m.images.GenerateInSession(ctx, s.SessionID, promptText)
	if err != nil {
		return nil, fmt.Errorf("セッション内生成に失敗しました (story_id=%s): %w", storyID, err)
	}
	return img, nil
}

// CharacterRefs は確立済みセッションのキャラクター参照マップを返します。
// セッションが存在しない場合は nil を返します。
func (m *Manager) CharacterRefs(storyID string) map[string]string {
	s, ok := m.store.Get(storyID)
	if !ok {
		return nil
	}
	return s.CharacterRefs
}

// ArtBible は確立済みセッションのアートバイブルのスナップショットを返します。
func (m *Manager) ArtBible(storyID string) (domain.ArtBible, bool) {
	s, ok := m.store.Get(storyID)
	if !ok {
		return domain.ArtBible{}, false
	}
	return s.ArtBible, true
}

// initialize はセッション確立の本体です。呼び出し側が物語ロックを
// 保持していることを前提とします。
//
// open → プライミング → 保存、の順で進み、途中で失敗した場合は
// ストアに触れません。ハンドルだけ存在して未プライミングのセッションが
// この経路から生まれることはありません。
func (m *Manager) initialize(ctx context.Context, storyID string, artBible domain.ArtBible, profiles []domain.CharacterProfile) (string, error) {
	sessionID, err := m.images.OpenSession(ctx)
	if err != nil {
		return "", fmt.Errorf("セッションのオープンに失敗しました (story_id=%s): %w", storyID, err)
	}

	priming := m.assembler.BuildPrimingPrompt(artBible, profiles)
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("レート制限の待機に失敗しました: %w", err)
	}
	if _, err := m.images.GenerateInSession(ctx, sessionID, priming); err != nil {
		return "", fmt.Errorf("プライミングに失敗しました (story_id=%s): %w", storyID, err)
	}

	refs := make(map[string]string, len(profiles))
	for _, p := range profiles {
		ref := m.assembler.BuildCharacterReferencePrompt(p, artBible.ArtStyle, true)
		refs[p.Name] = ref.Prompt
	}

	now := time.Now()
	m.store.Put(Session{
		StoryID:            storyID,
		SessionID:          sessionID,
		ContextInitialized: true,
		ArtBible:           artBible,
		CharacterRefs:      refs,
		CreatedAt:          now,
		UpdatedAt:          now,
	})

	slog.InfoContext(ctx, "セッションを確立しました",
		"story_id", storyID,
		"session_id", sessionID,
		"characters", len(profiles),
	)
	return sessionID, nil
}

// storyLock は物語ごとのミューテックスを返します。
func (m *Manager) storyLock(storyID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[storyID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[storyID] = lock
	}
	return lock
}
