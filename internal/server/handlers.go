package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/opexhub/ledgerfind/internal/models"
	"github.com/opexhub/ledgerfind/internal/search"
	"github.com/opexhub/ledgerfind/internal/storage"
)

type searchRequest struct {
	models.SearchRequest
	Answer bool `json:"answer"`
}

type searchResponse struct {
	*models.SearchResponse
	Answer string `json:"answer,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Int("limit", req.Limit))
	resp, err := s.engine.Search(r.Context(), &req.SearchRequest)
	if err != nil {
		if errors.Is(err, search.ErrNotReady) {
			s.respondError(w, http.StatusServiceUnavailable, "index not ready")
			return
		}
		if errors.Is(err, models.ErrInvalidRequest) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := searchResponse{SearchResponse: resp}
	if req.Answer && s.formatter != nil {
		text, err := s.formatter.Format(r.Context(), resp)
		if err != nil {
			s.logger.Warn("answer formatting failed", zap.Error(err))
		} else {
			out.Answer = text
		}
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if user.Username == "" {
		s.respondError(w, http.StatusBadRequest, "username is required")
		return
	}
	if err := s.storage.CreateUser(r.Context(), &user); err != nil {
		s.logger.Error("creating user failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var expense models.Expense
	if err := json.NewDecoder(r.Body).Decode(&expense); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if expense.Label == "" {
		s.respondError(w, http.StatusBadRequest, "label is required")
		return
	}
	if err := s.storage.CreateExpense(r.Context(), &expense); err != nil {
		s.logger.Error("creating expense failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Indexing happens after the record write commits; a degraded embedder
	// must not fail the create.
	s.indexer.RecordCreated(r.Context(), &expense)
	s.respondJSON(w, http.StatusCreated, expense)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	var expense models.Expense
	if err := json.NewDecoder(r.Body).Decode(&expense); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	expense.ID = id
	if err := s.storage.UpdateExpense(r.Context(), &expense); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "expense not found")
			return
		}
		s.logger.Error("updating expense failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.indexer.RecordUpdated(r.Context(), &expense)
	s.respondJSON(w, http.StatusOK, expense)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	expense, err := s.storage.GetExpense(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "expense not found")
		return
	}
	s.respondJSON(w, http.StatusOK, expense)
}

func (s *Server) handleCreateClaim(w http.ResponseWriter, r *http.Request) {
	var claim models.TaxClaim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if claim.Vendor == "" {
		s.respondError(w, http.StatusBadRequest, "vendor is required")
		return
	}
	if err := s.storage.CreateTaxClaim(r.Context(), &claim); err != nil {
		s.logger.Error("creating tax claim failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.indexer.RecordCreated(r.Context(), &claim)
	s.respondJSON(w, http.StatusCreated, claim)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return
	}
	claim, err := s.storage.GetTaxClaim(r.Context(), id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "tax claim not found")
		return
	}
	s.respondJSON(w, http.StatusOK, claim)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, err := s.storage.CountRecords(ctx)
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	embeddings, err := s.storage.CountEmbeddings(ctx)
	if err != nil {
		s.logger.Error("status: count embeddings failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records":           records,
		"embeddings":        embeddings,
		"vector_index_size": s.index.Size(),
		"index_ready":       s.index.Ready(),
		"config": map[string]interface{}{
			"embedding_dimensions": s.index.Dimensions(),
		},
	})
}

// handleEvents streams index notifications as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	id, ch := s.events.Subscribe(32)
	defer s.events.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
