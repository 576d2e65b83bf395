// Package server は、タスクの投入とポーリング、セッションの照会・再構築を
// 提供する HTTP サーフェスです。
//
// 生成系のエンドポイントはすべて非同期で、受け付けたタスクのIDを
// 202 Accepted で即座に返します。結果は GET /api/tasks/{taskID} で
// ポーリングして取得します。
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shouni/go-storybook-kit/pkg/domain"
	"github.com/shouni/go-storybook-kit/pkg/generator"
	"github.com/shouni/go-storybook-kit/pkg/projectstore"
	"github.com/shouni/go-storybook-kit/pkg/session"
	"github.com/shouni/go-storybook-kit/pkg/task"
)

// Services はサーバーが依存するサービス群です。
type Services struct {
	Stories      *generator.StoryGenerator
	Characters   *generator.CharacterExtractor
	Illustrator  *generator.Illustrator
	Sessions     *session.Manager
	Projects     *projectstore.Store
	Orchestrator *task.Orchestrator
}

// Server は HTTP ハンドラの集合です。
type Server struct {
	svc    Services
	router chi.Router
}

// New はルーティングを組み立て、タスクハンドラを登録した Server を返します。
func New(svc Services) *Server {
	s := &Server{svc: svc}
	registerHandlers(svc.Orchestrator, svc)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/stories", s.handleCreateStory)
		r.Post("/stories/extract-characters", s.handleExtractCharacters)
		r.Post("/images/pages", s.handlePageImages)
		r.Post("/images/art-bible", s.handleArtBible)
		r.Post("/images/character-reference", s.handleCharacterReference)
		r.Get("/tasks/{taskID}", s.handleTaskStatus)
		r.Get("/sessions/{storyID}", s.handleSessionStatus)
		r.Post("/sessions/{storyID}/rebuild", s.handleSessionRebuild)
	})

	s.router = r
	return s
}

// Router は http.Handler としてのルーターを返します。
func (s *Server) Router() http.Handler {
	return s.router
}

// submitResponse はタスク受付時の応答です。
type submitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (s *Server) handleCreateStory(w http.ResponseWriter, r *http.Request) {
	s.submitTask(w, r, task.KindStoryGenerate)
}

func (s *Server) handleExtractCharacters(w http.ResponseWriter, r *http.Request) {
	s.submitTask(w, r, task.KindCharacterExtract)
}

func (s *Server) handlePageImages(w http.ResponseWriter, r *http.Request) {
	s.submitTask(w, r, task.KindPageImages)
}

func (s *Server) handleArtBible(w http.ResponseWriter, r *http.Request) {
	s.submitTask(w, r, task.KindArtBible)
}

func (s *Server) handleCharacterReference(w http.ResponseWriter, r *http.Request) {
	s.submitTask(w, r, task.KindCharacterReference)
}

// submitTask はリクエスト本文をそのままタスク入力として投入します。
// 入力の検証はタスク種別ごとの Validate が行います。
func (s *Server) submitTask(w http.ResponseWriter, r *http.Request, kind task.Kind) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	id, err := s.svc.Orchestrator.Submit(r.Context(), kind, json.RawMessage(body))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusAccepted, submitResponse{
		TaskID: id,
		Status: string(task.StatusPending),
	})
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.Orchestrator.Status(chi.URLParam(r, "taskID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Sessions.Status(chi.URLParam(r, "storyID"))
	s.respondJSON(w, http.StatusOK, st)
}

// rebuildResponse はセッション再構築の応答です。
type rebuildResponse struct {
	StoryID   string `json:"story_id"`
	SessionID string `json:"session_id"`
}

// handleSessionRebuild は保存済みスナップショットからセッションを
// 同期的に再構築します。スナップショットが無い物語は 404 です。
func (s *Server) handleSessionRebuild(w http.ResponseWriter, r *http.Request) {
	storyID := chi.URLParam(r, "storyID")

	snap, err := s.svc.Projects.Load(r.Context(), storyID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	sessionID, err := s.svc.Sessions.Rebuild(r.Context(), storyID, snap.ArtBible, snap.Profiles)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rebuildResponse{StoryID: storyID, SessionID: sessionID})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("応答の書き込みに失敗しました", "error", err)
	}
}

// errorResponse はエラー応答の共通形式です。
type errorResponse struct {
	Error string `json:"error"`
}

// respondError はエラー種別をHTTPステータスへ対応付けます。
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrSessionNotReady):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrOverloaded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "リクエスト処理に失敗しました",
			"path", r.URL.Path, "error", err)
	}
	s.respondJSON(w, status, errorResponse{Error: err.Error()})
}
