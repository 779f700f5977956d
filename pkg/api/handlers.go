package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/pagestore/pkg/store"
)

// Server holds the API server state
type Server struct {
	store   RecordStore
	config  ServerConfig
	metrics *Metrics
	logger  *slog.Logger
}

// NewServer creates a new API server
func NewServer(store RecordStore, config ServerConfig, metrics *Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{
		store:   store,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Report whether the store is open
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	map[string]string
//	@Failure		503	{object}	APIResponse
//	@Router			/health [get]
//	@Security		ApiKeyAuth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats()
	if err != nil {
		s.metrics.RecordHealthCheck(false)
		sendError(w, err.Error(), statusFor(err))
		return
	}
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{
		"status":   "healthy",
		"store_id": st.StoreID,
	})
}

// handleCreateRecord godoc
//
//	@Summary		Store a record
//	@Description	Store the request body as a new record and return its id
//	@Tags			records
//	@Accept			octet-stream
//	@Produce		json
//	@Param			body	body		string	true	"Payload"
//	@Success		201		{object}	RecordResponse
//	@Failure		413	{object}	APIResponse
//	@Router			/records [post]
//	@Security		ApiKeyAuth
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	id, err := s.store.PutBytes(body)
	if err != nil {
		s.fail(w, "put", err)
		return
	}
	sendSuccessStatus(w, RecordResponse{ID: id.String(), Size: len(body)}, http.StatusCreated)
}

// handlePreallocate godoc
//
//	@Summary		Preallocate a record id
//	@Description	Reserve an id holding a null record. Reading it fails until it is updated.
//	@Tags			records
//	@Produce		json
//	@Success		201	{object}	RecordResponse
//	@Failure		409	{object}	APIResponse
//	@Router			/records/preallocate [post]
//	@Security		ApiKeyAuth
func (s *Server) handlePreallocate(w http.ResponseWriter, r *http.Request) {
	id, err := s.store.Preallocate()
	if err != nil {
		s.fail(w, "preallocate", err)
		return
	}
	sendSuccessStatus(w, RecordResponse{ID: id.String()}, http.StatusCreated)
}

// handleGetRecord godoc
//
//	@Summary		Read a record
//	@Description	Return the raw payload of a record
//	@Tags			records
//	@Produce		octet-stream
//	@Param			id	path	string	true	"Record id"
//	@Success		200
//	@Failure		404	{object}	APIResponse
//	@Router			/records/{id} [get]
//	@Security		ApiKeyAuth
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	data, err := s.store.GetBytes(id)
	if err != nil {
		s.fail(w, "get", err)
		return
	}

	s.metrics.RecordPayload("out", len(data))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleUpdateRecord godoc
//
//	@Summary		Replace a record
//	@Description	Replace the payload of an existing or preallocated record
//	@Tags			records
//	@Accept			octet-stream
//	@Produce		json
//	@Param			id		path	string	true	"Record id"
//	@Param			body	body	string	true	"Payload"
//	@Success		200		{object}	RecordResponse
//	@Failure		404	{object}	APIResponse
//	@Router			/records/{id} [put]
//	@Security		ApiKeyAuth
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}
	body, ok := s.readBody(w, r)
	if !ok {
		return
	}

	if err := s.store.UpdateBytes(id, body); err != nil {
		s.fail(w, "update", err)
		return
	}
	sendSuccess(w, RecordResponse{ID: id.String(), Size: len(body)})
}

// handleDeleteRecord godoc
//
//	@Summary		Delete a record
//	@Description	Delete a record. Its space is reused after the next commit.
//	@Tags			records
//	@Produce		json
//	@Param			id	path		string	true	"Record id"
//	@Success		200	{object}	map[string]string
//	@Failure		404	{object}	APIResponse
//	@Router			/records/{id} [delete]
//	@Security		ApiKeyAuth
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	if err := s.store.Delete(id); err != nil {
		s.fail(w, "delete", err)
		return
	}
	sendSuccess(w, map[string]string{"deleted": id.String()})
}

// handleCommit godoc
//
//	@Summary		Commit pending changes
//	@Description	Flush every shard and advance the durable head. Requires the system key.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	CommitResponse
//	@Failure		401	{object}	APIResponse
//	@Failure		500	{object}	APIResponse
//	@Router			/commit [post]
//	@Security		ApiKeyAuth
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Commit(); err != nil {
		s.fail(w, "commit", err)
		return
	}
	st, err := s.store.Stats()
	if err != nil {
		s.fail(w, "stats", err)
		return
	}
	sendSuccess(w, CommitResponse{HeadVersion: st.HeadVersion})
}

// handleStats godoc
//
//	@Summary		Store statistics
//	@Description	Record, page and shard lock counters. Requires the system key.
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	store.Stats
//	@Failure		401	{object}	APIResponse
//	@Router			/stats [get]
//	@Security		ApiKeyAuth
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats()
	if err != nil {
		s.fail(w, "stats", err)
		return
	}
	sendSuccess(w, st)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	var body io.Reader = r.Body
	if s.config.MaxRecordSize > 0 {
		body = http.MaxBytesReader(w, r.Body, s.config.MaxRecordSize)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, fmt.Sprintf("record exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		sendError(w, "Failed to read request body", http.StatusBadRequest)
		return nil, false
	}
	s.metrics.RecordPayload("in", len(data))
	return data, true
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("record operation failed", "operation", op, "error", err)
	}
	sendError(w, err.Error(), status)
}

func recordID(w http.ResponseWriter, r *http.Request) (store.RecordID, bool) {
	id, err := store.ParseRecordID(chi.URLParam(r, "id"))
	if err != nil {
		sendError(w, "Invalid record id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
