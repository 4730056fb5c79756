package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"kenalan/internal/middleware"
	"kenalan/internal/models"
	"kenalan/internal/service"
	"kenalan/internal/transport/ws"
	"kenalan/internal/upload"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg         *models.Config
	router      *mux.Router
	logger      *logrus.Logger
	chatService *service.ChatService
	uploads     *upload.Handler
	server      *http.Server
}

func NewServer(cfg *models.Config, chatService *service.ChatService, uploads *upload.Handler, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:         cfg,
		router:      mux.NewRouter(),
		logger:      logger,
		chatService: chatService,
		uploads:     uploads,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.ObservabilityMiddleware(s.logger))

	// Health check
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	// Application metrics
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	// Websocket session endpoint
	s.router.Handle("/ws", ws.NewHandler(s.chatService, s.cfg.Server, s.logger)).Methods(http.MethodGet)

	// Upload collaborator
	s.router.HandleFunc("/upload", s.uploads.HandleUpload()).Methods(http.MethodPost)
	s.router.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", s.uploads.ServeFiles())).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			s.logger.WithError(err).Error("Failed to write health response")
		}
	}
}
