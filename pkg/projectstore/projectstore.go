// Package projectstore は、セッション再構築に必要な入力（アートバイブルと
// キャラクタープロファイル）の永続化を提供します。
//
// プロバイダ側の会話ハンドルはプロセス寿命のため永続化しません。
// ここに保存されたスナップショットがあれば、プロセス再起動後でも
// 同等のセッションをいつでも組み直せます。保存先は go-remote-io が
// 解釈するパス（ローカルまたは gs://）です。
package projectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shouni/go-remote-io/pkg/remoteio"

	"github.com/shouni/go-storybook-kit/pkg/domain"
)

// Snapshot は1物語分の再構築入力です。
type Snapshot struct {
	StoryID   string                    `json:"story_id"`
	ArtStyle  string                    `json:"art_style"`
	ArtBible  domain.ArtBible           `json:"art_bible"`
	Profiles  []domain.CharacterProfile `json:"profiles"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

// Store はスナップショットの読み書きを行います。
type Store struct {
	reader  remoteio.InputReader
	writer  remoteio.OutputWriter
	baseDir string
}

// NewStore は Store を生成します。baseDir はスナップショットの置き場所です。
func NewStore(reader remoteio.InputReader, writer remoteio.OutputWriter, baseDir string) *Store {
	return &Store{
		reader:  reader,
		writer:  writer,
		baseDir: strings.TrimSuffix(baseDir, "/"),
	}
}

// Save はスナップショットを保存します。既存のものは上書きされます。
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	if err := validateStoryID(snap.StoryID); err != nil {
		return err
	}
	snap.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("スナップショットのエンコードに失敗しました: %w", err)
	}
	path := s.snapshotPath(snap.StoryID)
	if err := s.writer.Write(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return fmt.Errorf("スナップショットの保存に失敗しました (%s): %w", path, err)
	}
	return nil
}

// Load は指定された物語のスナップショットを読み込みます。
// 見つからない場合は domain.ErrNotFound を返します。
func (s *Store) Load(ctx context.Context, storyID string) (*Snapshot, error) {
	if err := validateStoryID(storyID); err != nil {
		return nil, err
	}

	path := s.snapshotPath(storyID)
	rc, err := s.reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("スナップショット %s: %w", storyID, domain.ErrNotFound)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("スナップショットの読み込みに失敗しました (%s): %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("スナップショットの解析に失敗しました (%s): %w", path, err)
	}
	return &snap, nil
}

func (s *Store) snapshotPath(storyID string) string {
	return fmt.Sprintf("%s/%s.json", s.baseDir, storyID)
}

// validateStoryID はパスとして安全なIDだけを受け付けます。
func validateStoryID(storyID string) error {
	if storyID == "" {
		return fmt.Errorf("物語IDが空です: %w", domain.ErrValidation)
	}
	if strings.ContainsAny(storyID, "/\\") || strings.Contains(storyID, "..") {
		return fmt.Errorf("物語IDにパス文字は使えません (%s): %w", storyID, domain.ErrValidation)
	}
	return nil
}
