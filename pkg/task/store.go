package task

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// Store は完了済みを含むタスク記録の保管庫です。
//
// 保持期間は生成時に指定します。0 以下を渡すとタスクは無期限に保持されます
// （完了結果をポーリングで取りに来るクライアントを想定したデフォルトです）。
// 読み取り・変更・書き戻しの遷移を外側のミューテックスで直列化するため、
// 同一タスクへの並行遷移が混線することはありません。
type Store struct {
	mu    sync.Mutex
	cache *gocache.Cache
	ttl   time.Duration
}

// NewStore は保持期間付きの Store を生成します。
func NewStore(retention time.Duration) *Store {
	ttl := gocache.NoExpiration
	cleanup := time.Duration(0)
	if retention > 0 {
		ttl = retention
		cleanup = retention
	}
	return &Store{
		cache: gocache.New(ttl, cleanup),
		ttl:   ttl,
	}
}

// Put はタスクを保存します。
func (s *Store) Put(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(t.ID, cloneTask(t), s.ttl)
}

// Get はタスクのコピーを返します。見つからない場合は domain.ErrNotFound です。
func (s *Store) Get(id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("タスク %s: %w", id, domain.ErrNotFound)
	}
	return cloneTask(v.(*Task)), nil
}

// Delete はタスク記録を取り除きます。キューに載せられなかった投入の
// 後始末に使います。
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
}

// transition はタスクを読み出し、mutate を適用して書き戻します。
// 終端状態のタスクに対する遷移は黙って無視されます。
func (s *Store) transition(id string, mutate func(*Task)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.cache.Get(id)
	if !ok {
		return
	}
	t := v.(*Task)
	if t.Status.Terminal() {
		return
	}
	updated := cloneTask(t)
	mutate(updated)
	s.cache.Set(id, updated, s.ttl)
}

func cloneTask(t *Task) *Task {
	copied := *t
	return &copied
}
