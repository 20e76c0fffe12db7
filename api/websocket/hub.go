package websocket

import (
	"sync"

	"github.com/OldStager01/press-downtime/internal/logger"
	"github.com/OldStager01/press-downtime/pkg/config"
)

type frame struct {
	machineID *int64
	channel   MessageType
	data      []byte
}

// Hub fans encoded frames out to connected clients. Clients are indexed by
// machine filter so a machine-scoped frame only visits the clients watching
// that machine plus the unfiltered ones.
type Hub struct {
	settings *Settings
	queue    chan frame
	done     chan struct{}
	stopOnce sync.Once

	mu        sync.RWMutex
	closed    bool
	anyMach   map[*Client]struct{}
	byMachine map[int64]map[*Client]struct{}
	clients   int
}

func NewHub(cfg *config.WebSocketConfig) *Hub {
	settings := NewSettings(cfg)
	return &Hub{
		settings:  settings,
		queue:     make(chan frame, settings.QueueSize),
		done:      make(chan struct{}),
		anyMach:   make(map[*Client]struct{}),
		byMachine: make(map[int64]map[*Client]struct{}),
	}
}

// Run delivers queued frames until Stop, then disconnects every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.disconnectAll()
			return
		case f := <-h.queue:
			h.deliver(f)
		}
	}
}

// Send encodes msg and queues it without blocking. A full queue drops the
// frame.
func (h *Hub) Send(msg *OutgoingMessage) {
	data := msg.JSON()
	if data == nil {
		return
	}
	select {
	case h.queue <- frame{machineID: msg.MachineID, channel: msg.Type, data: data}:
	default:
		logger.Warnf("WebSocket queue full, dropping %s frame", msg.Type)
	}
}

func (h *Hub) deliver(f frame) {
	var slow []*Client

	h.mu.RLock()
	visit := func(set map[*Client]struct{}) {
		for c := range set {
			if !c.filter.wants(f.channel) {
				continue
			}
			select {
			case c.send <- f.data:
			default:
				slow = append(slow, c)
			}
		}
	}
	visit(h.anyMach)
	if f.machineID != nil {
		visit(h.byMachine[*f.machineID])
	} else {
		for _, set := range h.byMachine {
			visit(set)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		if h.Unregister(c) {
			logger.WithField("client_id", c.id).Warn("Disconnected slow WebSocket client")
		}
	}
}

// direct queues data for c alone. The read lock keeps Unregister from
// closing the queue mid-send.
func (h *Hub) direct(c *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.registered(c) {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) registered(c *Client) bool {
	if c.filter.machineID == nil {
		_, ok := h.anyMach[c]
		return ok
	}
	_, ok := h.byMachine[*c.filter.machineID][c]
	return ok
}

// Register adds c to the index under its current filter. Registering after
// Stop closes the client immediately.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(c.send)
		return
	}
	h.index(c)
	h.clients++
	logger.WithField("client_id", c.id).Infof("WebSocket client connected (total: %d)", h.clients)
}

// Unregister removes c and closes its send queue. It reports whether c was
// still registered.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.unindex(c) {
		return false
	}
	h.clients--
	close(c.send)
	logger.WithField("client_id", c.id).Infof("WebSocket client disconnected (total: %d)", h.clients)
	return true
}

// refilter swaps c's filter and moves it to the matching index bucket.
func (h *Hub) refilter(c *Client, f filter) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.unindex(c) {
		return false
	}
	c.filter = f
	h.index(c)
	return true
}

func (h *Hub) index(c *Client) {
	if c.filter.machineID == nil {
		h.anyMach[c] = struct{}{}
		return
	}
	id := *c.filter.machineID
	set := h.byMachine[id]
	if set == nil {
		set = make(map[*Client]struct{})
		h.byMachine[id] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unindex(c *Client) bool {
	if !h.registered(c) {
		return false
	}
	if c.filter.machineID == nil {
		delete(h.anyMach, c)
		return true
	}
	id := *c.filter.machineID
	delete(h.byMachine[id], c)
	if len(h.byMachine[id]) == 0 {
		delete(h.byMachine, id)
	}
	return true
}

func (h *Hub) disconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.anyMach {
		close(c.send)
	}
	for _, set := range h.byMachine {
		for c := range set {
			close(c.send)
		}
	}
	h.anyMach = make(map[*Client]struct{})
	h.byMachine = make(map[int64]map[*Client]struct{})
	h.clients = 0
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients
}

// Stop ends Run, which disconnects all clients.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}
