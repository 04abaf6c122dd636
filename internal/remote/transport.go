package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"toolrt/internal/tools"
)

// protocolVersion is the device handshake's wire version (§6 "a device
// identity handshake").
const protocolVersion = 1

type helloMessage struct {
	Type         string   `json:"type"`
	DeviceID     string   `json:"device_id"`
	DeviceName   string   `json:"device_name"`
	Protocol     int      `json:"protocol_version"`
	Capabilities []string `json:"capabilities"`
}

type welcomeMessage struct {
	Type     string `json:"type"`
	Protocol int    `json:"protocol_version"`
}

// wireRequest is what the router sends to a device: a tool call plus the
// correlation identifier the response must echo back.
type wireRequest struct {
	CorrelationID string         `json:"correlation_id"`
	Name          string         `json:"name"`
	Arguments     map[string]any `json:"arguments"`
}

type wireResponse struct {
	CorrelationID string `json:"correlation_id"`
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	Data          any    `json:"data"`
}

func newCorrelationID() string { return uuid.New().String() }

// wsTransport is a Transport backed by one gorilla/websocket connection.
// Writes are serialized by writeMu; inbound responses are dispatched to
// whichever Send call is waiting on their correlation ID.
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan wireResponse

	closeOnce sync.Once
	closed    chan struct{}
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	t := &wsTransport{
		conn:    conn,
		pending: map[string]chan wireResponse{},
		closed:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *wsTransport) readLoop() {
	for {
		var resp wireResponse
		if err := t.conn.ReadJSON(&resp); err != nil {
			t.failAllPending(err)
			return
		}
		t.pendingMu.Lock()
		ch, ok := t.pending[resp.CorrelationID]
		delete(t.pending, resp.CorrelationID)
		t.pendingMu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (t *wsTransport) failAllPending(err error) {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	for id, ch := range t.pending {
		ch <- wireResponse{CorrelationID: id, Success: false, Message: fmt.Sprintf("connection closed: %v", err)}
		delete(t.pending, id)
	}
}

// Send writes call to the device and blocks until a matching response
// arrives, the context is cancelled, or the connection drops.
func (t *wsTransport) Send(ctx context.Context, correlationID string, call tools.ToolCall) (tools.ToolResult, error) {
	ch := make(chan wireResponse, 1)
	t.pendingMu.Lock()
	t.pending[correlationID] = ch
	t.pendingMu.Unlock()

	req := wireRequest{CorrelationID: correlationID, Name: call.Name, Arguments: call.Arguments}

	t.writeMu.Lock()
	err := t.conn.WriteJSON(req)
	t.writeMu.Unlock()
	if err != nil {
		t.pendingMu.Lock()
		delete(t.pending, correlationID)
		t.pendingMu.Unlock()
		return tools.ToolResult{}, fmt.Errorf("remote: write request: %w", err)
	}

	select {
	case resp := <-ch:
		return tools.ToolResult{Success: resp.Success, Message: resp.Message, Data: resp.Data}, nil
	case <-ctx.Done():
		t.pendingMu.Lock()
		delete(t.pending, correlationID)
		t.pendingMu.Unlock()
		return tools.ToolResult{}, ctx.Err()
	case <-t.closed:
		return tools.ToolResult{}, fmt.Errorf("remote: transport closed")
	}
}

func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return t.conn.Close()
}

// upgrader is shared across all inbound device connections.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Listener accepts inbound device connections over HTTP upgraded to
// websocket, performs the handshake, and attaches each device to a
// Registry.
type Listener struct {
	registry *Registry
	server   *http.Server
}

// NewListener builds a listener that serves ws upgrades at addr and
// registers connecting devices into registry.
func NewListener(addr string, registry *Registry) *Listener {
	l := &Listener{registry: registry}
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", l.handleUpgrade)
	l.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return l
}

// Serve blocks, accepting device connections until the listener is
// closed.
func (l *Listener) Serve() error {
	return l.server.ListenAndServe()
}

// Close shuts the listener down.
func (l *Listener) Close() error {
	return l.server.Close()
}

func (l *Listener) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	var hello helloMessage
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != "hello" || hello.DeviceID == "" {
		_ = conn.WriteJSON(map[string]string{"type": "error", "message": "invalid handshake"})
		_ = conn.Close()
		return
	}

	if err := conn.WriteJSON(welcomeMessage{Type: "welcome", Protocol: protocolVersion}); err != nil {
		_ = conn.Close()
		return
	}

	caps := map[string]bool{}
	for _, c := range hello.Capabilities {
		caps[c] = true
	}

	transport := newWSTransport(conn)
	l.registry.Attach(&Device{
		ID:           hello.DeviceID,
		Name:         hello.DeviceName,
		Capabilities: caps,
		Transport:    transport,
	})
}
