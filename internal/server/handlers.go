package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/divetag/internal/matcher"
	"github.com/hyperjump/divetag/internal/metadata"
	"github.com/hyperjump/divetag/internal/models"
	"github.com/hyperjump/divetag/internal/storage"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// candidate is the API view of a models.Match.
type candidate struct {
	Dive       *models.Dive      `json:"dive"`
	Confidence models.Confidence `json:"confidence"`
	DeltaSecs  int64             `json:"delta_seconds"`
	Delta      string            `json:"delta"`
}

func newCandidate(m models.Match) candidate {
	return candidate{
		Dive:       m.Dive,
		Confidence: m.Confidence,
		DeltaSecs:  int64(m.Delta / time.Second),
		Delta:      matcher.FormatDelta(m.Delta),
	}
}

type matchResponse struct {
	CaptureTime time.Time   `json:"capture_time"`
	Candidates  []candidate `json:"candidates"`
	Resolved    *candidate  `json:"resolved"`
}

type sizer interface {
	SizeBytes() (int64, error)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"status": "ok",
		"dives":  s.matcher.Index().Len(),
		"ledger": s.ledger != nil,
	}
	if sz, ok := s.ledger.(sizer); ok {
		if n, err := sz.SizeBytes(); err == nil {
			out["ledger_bytes"] = n
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleDives(w http.ResponseWriter, r *http.Request) {
	index := s.matcher.Index()
	fromRaw, toRaw := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if fromRaw == "" && toRaw == "" {
		s.respondJSON(w, http.StatusOK, map[string]any{"dives": index.Dives()})
		return
	}
	from, to := time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	var err error
	if fromRaw != "" {
		if from, err = metadata.ParseTimestamp(fromRaw); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid from")
			return
		}
	}
	if toRaw != "" {
		if to, err = metadata.ParseTimestamp(toRaw); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid to")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"dives": index.Between(from, to)})
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("time")
	if raw == "" {
		s.respondError(w, http.StatusBadRequest, "time is required")
		return
	}
	t, err := metadata.ParseTimestamp(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid time")
		return
	}
	s.logger.Debug("match request", zap.Time("time", t))

	ranked := s.matcher.Rank(t)
	out := matchResponse{CaptureTime: t, Candidates: make([]candidate, 0, len(ranked))}
	for _, m := range ranked {
		out.Candidates = append(out.Candidates, newCandidate(m))
	}
	resolved, err := s.resolver.Resolve(r.Context(), "", ranked)
	if err != nil {
		s.logger.Error("match resolve failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if resolved != nil {
		c := newCandidate(*resolved)
		out.Resolved = &c
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusServiceUnavailable, "ledger not configured")
		return
	}
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxRunLimit)
	}
	runs, err := s.ledger.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleRunItems(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		s.respondError(w, http.StatusServiceUnavailable, "ledger not configured")
		return
	}
	id := chi.URLParam(r, "id")
	items, err := s.ledger.ItemsForRun(r.Context(), id)
	if errors.Is(err, storage.ErrRunNotFound) {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("run items failed", zap.String("run_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []*models.ItemResult{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"run_id": id, "items": items})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
