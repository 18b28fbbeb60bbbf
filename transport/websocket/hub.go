package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bartgame/multiplayer-server/game/identity"
	"github.com/bartgame/multiplayer-server/game/service"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Game clients connect from arbitrary origins (itch.io embeds,
		// local builds), so origin checks stay open.
		return true
	},
}

// Client represents one WebSocket connection. Its player id is assigned at
// connect time and never changes; its room key is a routing cache owned by
// the hub goroutine, set on join and cleared on leave.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	roomKey  string
}

// inboundFrame pairs a raw frame with the connection it arrived on.
type inboundFrame struct {
	client *Client
	data   []byte
}

// closing asks the hub to deliver a terminal notice. An empty key targets
// every attached connection (process shutdown); otherwise only members of
// that room are notified.
type closing struct {
	key string
}

// Hub maintains the set of active connections, routes inbound messages to the
// relay service, and fans snapshots and directory updates back out.
type Hub struct {
	service service.RelayService
	ids     *identity.Allocator

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	closings   chan closing
}

// NewHub creates a hub for one relay service.
func NewHub(relay service.RelayService) *Hub {
	return &Hub{
		service:    relay,
		ids:        identity.NewAllocator(),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		closings:   make(chan closing),
	}
}

// Run starts the hub's event loop. Each event is handled to completion
// before the next one is taken, so message handlers never interleave.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case frame := <-h.inbound:
			h.route(frame.client, frame.data)

		case cl := <-h.closings:
			h.handleClosing(cl)
		}
	}
}

// ServeWS handles a WebSocket upgrade request. The player id is allocated
// here, before any message from the connection is processed.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 256),
		playerID: h.ids.Allocate(),
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// AnnounceClosing delivers a terminal server_closing notice to every member
// of the room and detaches them, ahead of the room being released.
func (h *Hub) AnnounceClosing(key string) {
	h.closings <- closing{key: key}
}

// AnnounceShutdown delivers the terminal notice to every attached connection.
// Called before process exit so clients are not left hanging on a connection
// the server intends to end.
func (h *Hub) AnnounceShutdown() {
	h.closings <- closing{}
}

// registerClient adds a new connection. In discovery deployments the current
// room directory is sent immediately so the client can browse before joining.
func (h *Hub) registerClient(client *Client) {
	h.clients[client] = true
	log.Printf("Player %s connected (total connections: %d)", client.playerID, len(h.clients))

	if h.service.Deployment().Discovery {
		if list, err := h.service.Directory(context.Background()); err == nil {
			h.sendTo(client, NewServerList(list))
		}
	}
}

// unregisterClient runs the leave path for a closed connection and releases
// every reference to it.
func (h *Hub) unregisterClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	log.Printf("Player %s disconnected (remaining connections: %d)", client.playerID, len(h.clients))

	h.handleLeave(client)
}

// route decodes one inbound frame and dispatches it. Malformed frames are
// logged and dropped without closing the connection.
func (h *Hub) route(client *Client, data []byte) {
	// The client may have been dropped for backpressure while this frame was
	// queued; its send channel is closed, so nothing may be processed or
	// delivered for it anymore.
	if !h.clients[client] {
		return
	}

	msg, err := DecodeInbound(data)
	if err != nil {
		log.Printf("Dropping message from %s: %v", client.playerID, err)
		return
	}

	switch msg.Type {
	case TypeCreateServer:
		h.handleCreate(client, msg)
	case TypeJoinServer:
		h.handleJoin(client, msg)
	case TypeUpdatePlayer:
		h.handleUpdate(client, msg)
	case TypeLeaveServer:
		h.handleLeave(client)
	}
}

// handleCreate processes create_server: mint a room and attach the creator.
func (h *Hub) handleCreate(client *Client, msg *InboundMessage) {
	result, err := h.service.CreateRoom(context.Background(), client.playerID, msg.Name)
	if err != nil {
		h.rejectJoin(client, err)
		return
	}
	h.completeJoin(client, result)
}

// handleJoin processes join_server for both key policies.
func (h *Hub) handleJoin(client *Client, msg *InboundMessage) {
	result, err := h.service.JoinRoom(context.Background(), client.playerID, msg.ServerCode, msg.Name)
	if err != nil {
		h.rejectJoin(client, err)
		return
	}
	h.completeJoin(client, result)
}

// completeJoin confirms the join to its originator and broadcasts the new
// room state (and directory, when discovery is on).
func (h *Hub) completeJoin(client *Client, result *service.JoinResult) {
	client.roomKey = result.Key
	h.sendTo(client, NewJoinedServer(result))
	h.broadcastToRoom(result.Key, NewServerState(result.Snapshot))
	if result.Directory != nil {
		h.broadcastToAll(NewServerList(result.Directory))
	}
}

// rejectJoin reports a typed failure back to the originating connection only.
func (h *Hub) rejectJoin(client *Client, err error) {
	reason := service.FailureReason(err)
	if reason == "" {
		log.Printf("Join by %s failed: %v", client.playerID, err)
		return
	}
	h.sendTo(client, JoinFailedMessage{Type: TypeJoinFailed, Reason: reason})
}

// handleUpdate merges a partial player-state patch and broadcasts the result.
func (h *Hub) handleUpdate(client *Client, msg *InboundMessage) {
	patch, err := msg.PlayerPatch()
	if err != nil {
		log.Printf("Dropping update from %s: %v", client.playerID, err)
		return
	}

	snapshot, err := h.service.UpdatePlayer(context.Background(), client.playerID, patch)
	if err != nil {
		// A late update racing a leave is expected; drop it silently.
		if !errors.Is(err, service.ErrNotInRoom) {
			log.Printf("Update by %s failed: %v", client.playerID, err)
		}
		return
	}

	// Target the room the service resolved, not the client's routing cache:
	// a closing notice may have cleared the cache already, and an empty key
	// must never select the unattached connections.
	h.broadcastToRoom(snapshot.Key, NewServerState(snapshot))
}

// handleLeave detaches the client from its room, whether the leave was
// explicit or caused by a disconnect. Leaving while unattached is a no-op.
func (h *Hub) handleLeave(client *Client) {
	result, err := h.service.LeaveRoom(context.Background(), client.playerID)
	if err != nil {
		return
	}

	client.roomKey = ""
	if result.Snapshot != nil {
		h.broadcastToRoom(result.Key, NewServerState(result.Snapshot))
	}
	if result.Directory != nil {
		h.broadcastToAll(NewServerList(result.Directory))
	}
}

// handleClosing sends the terminal notice to the targeted connections and
// clears their room attachment.
func (h *Hub) handleClosing(cl closing) {
	for client := range h.clients {
		if client.roomKey == "" {
			continue
		}
		if cl.key != "" && client.roomKey != cl.key {
			continue
		}
		h.sendTo(client, ServerClosingMessage{Type: TypeServerClosing, ServerKey: client.roomKey})
		client.roomKey = ""
	}
}

// sendTo delivers a payload to one connection.
func (h *Hub) sendTo(client *Client, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}
	h.deliver(client, data)
}

// broadcastToRoom delivers a payload to every connection attached to the
// room, and only those connections.
func (h *Hub) broadcastToRoom(key string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	for client := range h.clients {
		if client.roomKey == key {
			h.deliver(client, data)
		}
	}
}

// broadcastToAll delivers a payload to every open connection, attached or
// not. Used for the discovery directory.
func (h *Hub) broadcastToAll(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Failed to marshal broadcast message: %v", err)
		return
	}

	for client := range h.clients {
		h.deliver(client, data)
	}
}

// deliver queues data on the client's send buffer. A client that cannot keep
// up is dropped rather than allowed to stall the hub.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.unregisterClient(client)
	}
}

// readPump pumps frames from the WebSocket connection into the hub loop.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		c.hub.inbound <- inboundFrame{client: c, data: message}
	}
}

// writePump pumps queued messages from the hub to the WebSocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current WebSocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
