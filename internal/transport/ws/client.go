package ws

import (
	"context"
	"time"

	"kenalan/internal/models"
	"kenalan/internal/privacy"
	"kenalan/internal/service"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"
)

const pingInterval = 30 * time.Second

// Client pumps one websocket connection: a single reader dispatching inbound
// envelopes into the chat service, and a single writer draining the send
// queue. It implements service.EventSender.
type Client struct {
	id     string
	conn   *websocket.Conn
	svc    *service.ChatService
	logger *logrus.Logger

	send         chan models.OutboundEvent
	writeTimeout time.Duration

	cancel context.CancelFunc
}

func newClient(id string, conn *websocket.Conn, svc *service.ChatService, logger *logrus.Logger, queueSize int, writeTimeout time.Duration) *Client {
	return &Client{
		id:           id,
		conn:         conn,
		svc:          svc,
		logger:       logger,
		send:         make(chan models.OutboundEvent, queueSize),
		writeTimeout: writeTimeout,
	}
}

// Send queues an outbound event. It never blocks: the chat service calls it
// while holding its lock, so a slow client is dropped instead of stalling
// every other session.
func (c *Client) Send(event models.OutboundEvent) {
	select {
	case c.send <- event:
	default:
		c.logger.WithFields(logrus.Fields{
			service.LogFieldConnID: privacy.MaskConnectionID(c.id),
			service.LogFieldEvent:  event.Event,
		}).Warn("Send queue full, dropping connection")
		if c.cancel != nil {
			c.cancel()
		}
	}
}

// run services the connection until the client goes away, then runs the
// unconditional disconnect teardown exactly once.
func (c *Client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer cancel()

	go c.writeLoop(ctx)

	err := c.readLoop(ctx)

	c.svc.Disconnect(c.id)
	_ = c.conn.CloseNow()

	status := websocket.CloseStatus(err)
	if err != nil && status == -1 && ctx.Err() == nil {
		c.logger.WithFields(logrus.Fields{
			service.LogFieldConnID: privacy.MaskConnectionID(c.id),
		}).WithError(err).Debug("Read loop ended")
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		var env models.Envelope
		if err := wsjson.Read(ctx, c.conn, &env); err != nil {
			return err
		}
		c.svc.Dispatch(c.id, c, env)
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := wsjson.Write(writeCtx, c.conn, event)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, c.writeTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.cancel()
				return
			}
		}
	}
}
