package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"bookcourier/internal/model"
	"bookcourier/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the operational HTTP surface: liveness, keyspace stats and
// manual cache eviction. It is not user-facing.
type Server struct {
	store  *store.HybridStore
	logger *zap.Logger
	router *mux.Router
	server *http.Server
}

func NewServer(st *store.HybridStore, logger *zap.Logger) *Server {
	s := &Server{
		store:  st,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/stats", s.handleStats).Methods("GET")
	s.router.HandleFunc("/cache/{book_id}/{variant}", s.handleEvict).Methods("DELETE")
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start launches the HTTP server
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.logger.Info("Ops server listening", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("Health check failed", zap.Error(err))
		http.Error(w, "store unreachable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to collect stats", zap.Error(err))
		http.Error(w, "stats error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleEvict(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	bookID, err := strconv.Atoi(vars["book_id"])
	if err != nil {
		http.Error(w, "Invalid book id", http.StatusBadRequest)
		return
	}
	variant, err := model.ParseVariant(vars["variant"])
	if err != nil {
		http.Error(w, "Unknown variant", http.StatusBadRequest)
		return
	}

	if err := s.store.DeleteCachedHandle(r.Context(), bookID, variant); err != nil && !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("Failed to evict cache record", zap.Error(err))
		http.Error(w, "Eviction failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Cache record evicted",
		zap.Int("book_id", bookID),
		zap.String("variant", variant.String()))
	w.WriteHeader(http.StatusNoContent)
}
