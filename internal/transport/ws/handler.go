package ws

import (
	"net/http"
	"time"

	"kenalan/internal/constants"
	"kenalan/internal/httputil"
	"kenalan/internal/metrics"
	"kenalan/internal/models"
	"kenalan/internal/privacy"
	"kenalan/internal/service"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Handler upgrades HTTP requests to websocket sessions. Each accepted
// connection gets an opaque id that lives exactly as long as the transport
// connection.
type Handler struct {
	svc            *service.ChatService
	logger         *logrus.Logger
	allowedOrigins []string
}

// NewHandler creates a websocket handler backed by the chat service.
func NewHandler(svc *service.ChatService, cfg models.ServerConfig, logger *logrus.Logger) *Handler {
	return &Handler{
		svc:            svc,
		logger:         logger,
		allowedOrigins: cfg.AllowedOrigins,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(h.allowedOrigins) > 0 {
		opts.OriginPatterns = h.allowedOrigins
	} else {
		opts.InsecureSkipVerify = true
	}

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			service.LogFieldRemoteIP: httputil.GetClientIP(r),
		}).WithError(err).Warn("Websocket accept failed")
		metrics.IncrementCounter("ws_accept_failures_total", nil, "Failed websocket upgrades")
		return
	}
	conn.SetReadLimit(constants.DefaultMaxEventSizeBytes)

	id := uuid.NewString()
	h.logger.WithFields(logrus.Fields{
		service.LogFieldConnID:   privacy.MaskConnectionID(id),
		service.LogFieldRemoteIP: httputil.GetClientIP(r),
	}).Info("Client connected")

	metrics.IncrementCounter("ws_connections_total", nil, "Accepted websocket connections")

	client := newClient(id, conn, h.svc, h.logger,
		constants.DefaultSendQueueSize,
		constants.DefaultWriteTimeoutSec*time.Second)
	client.run(r.Context())
}
