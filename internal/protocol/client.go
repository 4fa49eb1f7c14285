package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxMessageBytes is the negotiated frame/message ceiling (§4.1: "≥ 64 MiB").
const MaxMessageBytes = 64 * 1024 * 1024

const (
	heartbeatInterval = 10 * time.Second
	baseRetryDelay    = 500 * time.Millisecond
	maxRetries        = 8
)

// Errors returned by Client methods.
var (
	ErrNotConnected     = errors.New("protocol: not connected")
	ErrSendBeforeAuth   = errors.New("protocol: send attempted before authentication")
	ErrConnectionFailed = errors.New("protocol: connection failed")
)

// Event is a decoded inbound message paired with its type tag, handed to
// orchestrator consumers through Client.Events().
type Event struct {
	Type    string
	Payload []byte
}

// outMsg is queued onto the single writer task; Close is a sentinel.
type outMsg struct {
	data  []byte
	ping  bool
	close bool
}

// Client is a duplex framed-JSON connection to the remote model service. One
// writer goroutine owns the socket's writable end; one reader goroutine owns
// the readable end, matching the teacher's internal/lsp one-reader/one-writer
// idiom and the original's blade_ws_client.rs split.
type Client struct {
	url    string
	apiKey string
	log    zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	sessionID string
	send      chan outMsg
	events    chan Event
	closed    atomic.Bool
}

// New creates a client bound to a websocket URL (ws:// or wss://) and an API
// key used for the authenticate handshake.
func New(url, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		log:    log.With().Str("component", "protocol").Logger(),
		events: make(chan Event, 256),
	}
}

// Events returns the channel of decoded inbound events. It is closed when
// the connection terminates (graceful close, unrecoverable error, or ctx
// cancellation).
func (c *Client) Events() <-chan Event { return c.events }

// Connect dials the remote service with exponential backoff (500ms, doubling,
// capped at 8 attempts: seven waits of 0.5s to 32s, ≈ 64s of backoff in
// total) and starts the writer, reader, and
// heartbeat tasks.
func (c *Client) Connect(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, _, err := websocket.Dial(ctx, c.url, nil)
		if err == nil {
			conn.SetReadLimit(MaxMessageBytes)
			c.mu.Lock()
			c.conn = conn
			c.mu.Unlock()
			c.send = make(chan outMsg, 64)

			go c.writeLoop()
			go c.heartbeatLoop()
			go c.readLoop()

			if err := c.authenticate(); err != nil {
				return err
			}
			return nil
		}
		lastErr = err
		if attempt == maxRetries {
			break
		}
		delay := baseRetryDelay * time.Duration(1<<(attempt-1))
		c.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("connect failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%w: %v", ErrConnectionFailed, lastErr)
}

func (c *Client) authenticate() error {
	payload, err := json.Marshal(AuthenticatePayload{
		APIKey:        c.apiKey,
		ClientName:    "agentcore",
		ClientVersion: "0.1.0",
		Environment:   "",
	})
	if err != nil {
		return err
	}
	return c.enqueue(TypeAuthenticate, payload)
}

// enqueue frames a payload into an Envelope and pushes it onto the writer
// queue. Every send performs both the framed write and an explicit flush;
// buffering alone is not sufficient (§4.1).
func (c *Client) enqueue(typ string, payload []byte) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	env := Envelope{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: now(),
		Payload:   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case c.send <- outMsg{data: data}:
		return nil
	default:
		// Block rather than drop: with the 64-slot queue full, the caller
		// waits until the writer takes the message. There is no timeout.
		c.send <- outMsg{data: data}
		return nil
	}
}

// SendChatRequest sends an outbound chat_request frame.
func (c *Client) SendChatRequest(p ChatRequestPayload) error {
	if c.sessionIDUnset() && p.SessionID == "" {
		// first turn: no session yet, acceptable.
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.enqueue(TypeChatRequest, data)
}

// SendToolResult sends one outbound tool_result frame for a completed call.
func (c *Client) SendToolResult(p ToolResultPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.enqueue(TypeToolResult, data)
}

// SendConversationContext answers a server-initiated get_conversation_context
// request.
func (c *Client) SendConversationContext(p ConversationContextPayload) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.enqueue(TypeConversationContext, data)
}

func (c *Client) sessionIDUnset() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID == ""
}

// SessionID returns the last session id observed from session_created, or
// empty if none has arrived yet.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Close shuts the connection down: requests a graceful close frame, then
// tears down the socket. Safe to call multiple times.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	select {
	case c.send <- outMsg{close: true}:
	default:
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client closing")
	}
	return nil
}

func (c *Client) writeLoop() {
	for m := range c.send {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		var err error
		switch {
		case m.close:
			cancel()
			return
		case m.ping:
			err = conn.Ping(ctx)
		default:
			err = conn.Write(ctx, websocket.MessageText, m.data)
		}
		cancel()
		if err != nil {
			c.log.Error().Err(err).Msg("write failed")
			return
		}
	}
}

func (c *Client) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for range ticker.C {
		if c.closed.Load() {
			return
		}
		select {
		case c.send <- outMsg{ping: true}:
		default:
		}
	}
}

func (c *Client) readLoop() {
	defer close(c.events)
	ctx := context.Background()
	for {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			return
		}
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.classifyReadError(err)
			return
		}
		c.dispatch(data)
	}
}

// classifyReadError maps transport-level failures onto the error taxonomy of
// §4.1/§7: connection reset -> Disconnected, size-limit exceeded ->
// message_too_large (recoverable), everything else -> generic read-error
// (recoverable=true).
func (c *Client) classifyReadError(err error) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "reset by peer") || websocket.CloseStatus(err) != -1:
		c.emitSynthetic(Event{Type: "disconnected"})
	case strings.Contains(msg, "too large") || strings.Contains(msg, "space limit") || strings.Contains(msg, "message too long"):
		c.emitSynthetic(errorEvent(ErrorMsg{
			Type:        "message_too_large",
			Code:        "size_limit_exceeded",
			Message:     "The response was too large to process. Please break your response into smaller parts or use more concise output.",
			Recoverable: boolPtr(true),
			RecoveryHint: "Retry with a more concise approach: smaller code blocks, smaller diffs, multiple smaller tool calls.",
		}))
	default:
		c.emitSynthetic(errorEvent(ErrorMsg{
			Type:        "unknown_error",
			Code:        "read_error",
			Message:     fmt.Sprintf("read error: %v", err),
			Recoverable: boolPtr(true),
		}))
	}
}

func errorEvent(e ErrorMsg) Event {
	data, _ := json.Marshal(e)
	return Event{Type: TypeError, Payload: data}
}

func boolPtr(b bool) *bool { return &b }

func (c *Client) emitSynthetic(e Event) {
	select {
	case c.events <- e:
	default:
	}
}

func (c *Client) dispatch(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn().Err(err).Msg("malformed inbound frame")
		return
	}
	if env.Type == TypeSessionCreated {
		var sc SessionCreated
		if err := json.Unmarshal(env.Payload, &sc); err == nil {
			c.mu.Lock()
			c.sessionID = sc.SessionID
			c.mu.Unlock()
		}
	}
	select {
	case c.events <- Event{Type: env.Type, Payload: env.Payload}:
	default:
		// Consumer is behind; drop rather than block the reader forever.
		// The drain loop in internal/orchestrator is expected to pull at
		// >= 10Hz even when idle (§4.3), so this should not happen in
		// practice; logged for visibility.
		c.log.Warn().Str("type", env.Type).Msg("event channel full, dropping")
	}
}

// DecodeContextRequest accepts both encodings the server may use for a
// get_conversation_context payload: a direct JSON object, or a
// base64-encoded JSON string (§4.1).
func DecodeContextRequest(payload []byte) (GetConversationContext, error) {
	var direct GetConversationContext
	if err := json.Unmarshal(payload, &direct); err == nil && direct.SessionID != "" {
		return direct, nil
	}
	var encoded string
	if err := json.Unmarshal(payload, &encoded); err == nil {
		raw, err := base64Decode(encoded)
		if err == nil {
			var fromB64 GetConversationContext
			if err := json.Unmarshal(raw, &fromB64); err == nil {
				return fromB64, nil
			}
		}
	}
	return GetConversationContext{}, fmt.Errorf("protocol: cannot decode get_conversation_context payload")
}
