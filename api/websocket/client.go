package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/models"
	"github.com/OldStager01/press-downtime/pkg/validation"
)

// Client is one dashboard connection. filter is guarded by the hub lock.
type Client struct {
	id       string
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	settings *Settings
	filter   filter
}

func newClient(hub *Hub, conn *websocket.Conn, f filter) *Client {
	return &Client{
		id:       models.NewUUID(),
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, hub.settings.ClientBuffer),
		settings: hub.settings,
		filter:   f,
	}
}

// readLoop handles control frames until the peer goes away, then
// unregisters the client.
func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.settings.MaxMessageSize)
	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	}
	_ = extend("")
	c.conn.SetPongHandler(extend)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.WithField("client_id", c.id).Warnf("WebSocket read failed: %v", err)
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply(&OutgoingMessage{Type: MessageTypeError, Message: "malformed control message"})
			continue
		}
		c.control(&msg)
	}
}

// writeLoop sends one frame per message and pings on PingPeriod. It exits
// when the hub closes the send queue or a write fails.
func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.settings.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.settings.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) control(msg *IncomingMessage) {
	switch msg.Type {
	case "subscribe":
		f, err := newFilter(msg.MachineID, msg.Channels)
		if err != nil {
			c.reply(&OutgoingMessage{Type: MessageTypeError, Message: err.Error()})
			return
		}
		if c.hub.refilter(c, f) {
			c.reply(newSubscriptionUpdate("subscribed", f))
		}
	case "unsubscribe":
		if c.hub.refilter(c, filter{}) {
			c.reply(newSubscriptionUpdate("unsubscribed", filter{}))
		}
	case "ping":
		c.reply(&OutgoingMessage{Type: MessageTypePong})
	default:
		c.reply(&OutgoingMessage{Type: MessageTypeError, Message: "unknown control message " + msg.Type})
	}
}

func (c *Client) reply(msg *OutgoingMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if data := msg.JSON(); data != nil && !c.hub.direct(c, data) {
		logger.WithField("client_id", c.id).Debug("Reply dropped")
	}
}

// ServeWebSocket upgrades the request. Optional machine_id and channels
// query parameters set the initial filter.
func ServeWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  hub.settings.ReadBufferSize,
		WriteBufferSize: hub.settings.WriteBufferSize,
		CheckOrigin:     hub.settings.checkOrigin,
	}

	return func(c *gin.Context) {
		machineID, err := validation.ParseMachineID(c.Query("machine_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		f, err := newFilter(machineID, parseChannels(c.Query("channels")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.WithTrace(c.Request.Context()).Warnf("WebSocket upgrade failed: %v", err)
			return
		}

		client := newClient(hub, conn, f)
		hub.Register(client)

		go client.writeLoop()
		go client.readLoop()
	}
}
