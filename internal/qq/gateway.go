package qq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edgard/cozerelay/internal/relay"
)

// Gateway opcodes.
const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
	opHeartbeatAck   = 11
)

// Dispatch event types handled by the gateway.
const (
	EventReady          = "READY"
	EventGroupAtMessage = "GROUP_AT_MESSAGE_CREATE"
	EventC2CMessage     = "C2C_MESSAGE_CREATE"
)

const defaultHeartbeatInterval = 30 * time.Second

var (
	errReconnect      = errors.New("gateway requested reconnect")
	errInvalidSession = errors.New("gateway reported invalid session")
)

// fatalCloseCodes are websocket close codes after which reconnecting with
// the same credentials cannot succeed.
var fatalCloseCodes = []int{4004, 4010, 4011, 4012, 4013, 4014, 4914, 4915}

type wsPayload struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
	S  int64           `json:"s,omitempty"`
	T  string          `json:"t,omitempty"`
	ID string          `json:"id,omitempty"`
}

type wsOutgoing struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type helloData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type identifyData struct {
	Token      string            `json:"token"`
	Intents    int               `json:"intents"`
	Shard      [2]int            `json:"shard"`
	Properties map[string]string `json:"properties"`
}

type readyData struct {
	SessionID string `json:"session_id"`
	User      struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

type groupAtMessage struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	GroupOpenID string `json:"group_openid"`
	Author      struct {
		MemberOpenID string `json:"member_openid"`
	} `json:"author"`
}

type c2cMessage struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Author  struct {
		UserOpenID string `json:"user_openid"`
	} `json:"author"`
}

// Gateway is a relay.EventSource reading group @-messages and C2C messages
// from the QQ websocket gateway. A dropped session is re-established from
// scratch after ReconnectDelay; sessions are not resumed.
type Gateway struct {
	client         *Client
	intents        int
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	log            *slog.Logger
}

// NewGateway creates a gateway event source.
func NewGateway(client *Client, intents int, reconnectDelay time.Duration, log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	dialer := *websocket.DefaultDialer
	return &Gateway{
		client:         client,
		intents:        intents,
		reconnectDelay: reconnectDelay,
		dialer:         &dialer,
		log:            log.With("component", "qq_gateway"),
	}
}

// Listen implements relay.EventSource.
func (g *Gateway) Listen(ctx context.Context, out chan<- relay.InboundMessage) error {
	for {
		err := g.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if isFatal(err) {
			g.log.ErrorContext(ctx, "Gateway session ended permanently", "error", err)
			return err
		}

		g.log.WarnContext(ctx, "Gateway session ended, reconnecting", "error", err, "delay", g.reconnectDelay)
		if err := sleepWithContext(ctx, g.reconnectDelay); err != nil {
			return err
		}
	}
}

func (g *Gateway) session(ctx context.Context, out chan<- relay.InboundMessage) error {
	wsURL, err := g.client.GatewayURL(ctx)
	if err != nil {
		return err
	}
	auth, err := g.client.AuthHeader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	conn, _, err := g.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	var hello wsPayload
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if hello.Op != opHello {
		return fmt.Errorf("expected hello, got op %d", hello.Op)
	}
	var hd helloData
	if err := json.Unmarshal(hello.D, &hd); err != nil {
		return fmt.Errorf("failed to decode hello: %w", err)
	}
	interval := time.Duration(hd.HeartbeatInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}

	var writeMu sync.Mutex
	write := func(p wsOutgoing) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(p)
	}

	if err := write(wsOutgoing{Op: opIdentify, D: identifyData{
		Token:      auth,
		Intents:    g.intents,
		Shard:      [2]int{0, 1},
		Properties: map[string]string{},
	}}); err != nil {
		return fmt.Errorf("failed to send identify: %w", err)
	}

	var seq atomic.Int64
	go g.heartbeat(ctx, stop, conn, interval, &seq, write)

	for {
		var p wsPayload
		if err := conn.ReadJSON(&p); err != nil {
			return fmt.Errorf("gateway read failed: %w", err)
		}
		if p.S > 0 {
			seq.Store(p.S)
		}

		switch p.Op {
		case opDispatch:
			if err := g.dispatch(ctx, p, out); err != nil {
				return err
			}
		case opHeartbeatAck:
			g.log.DebugContext(ctx, "Heartbeat acknowledged")
		case opReconnect:
			return errReconnect
		case opInvalidSession:
			return errInvalidSession
		default:
			g.log.DebugContext(ctx, "Ignoring gateway payload", "op", p.Op)
		}
	}
}

func (g *Gateway) heartbeat(ctx context.Context, stop <-chan struct{}, conn *websocket.Conn, interval time.Duration, seq *atomic.Int64, write func(wsOutgoing) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			var d any
			if s := seq.Load(); s > 0 {
				d = s
			}
			if err := write(wsOutgoing{Op: opHeartbeat, D: d}); err != nil {
				g.log.WarnContext(ctx, "Heartbeat failed, closing connection", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, p wsPayload, out chan<- relay.InboundMessage) error {
	if p.T == EventReady {
		var rd readyData
		if err := json.Unmarshal(p.D, &rd); err != nil {
			g.log.WarnContext(ctx, "Failed to decode READY event", "error", err)
			return nil
		}
		g.log.InfoContext(ctx, "Bot is ready", "bot_name", rd.User.Username, "session_id", rd.SessionID)
		return nil
	}

	msg, ok, err := ParseDispatch(p.T, p.D)
	if err != nil {
		g.log.WarnContext(ctx, "Failed to decode message event", "event", p.T, "error", err)
		return nil
	}
	if !ok {
		g.log.DebugContext(ctx, "Ignoring dispatch event", "event", p.T)
		return nil
	}

	select {
	case out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ParseDispatch converts a message dispatch event into an inbound message.
// ok is false for event types the relay does not handle.
func ParseDispatch(eventType string, data json.RawMessage) (msg relay.InboundMessage, ok bool, err error) {
	switch eventType {
	case EventGroupAtMessage:
		var m groupAtMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return relay.InboundMessage{}, false, err
		}
		return relay.InboundMessage{
			Kind:        relay.ChannelGroup,
			RecipientID: m.GroupOpenID,
			MessageID:   m.ID,
			Text:        m.Content,
		}, true, nil

	case EventC2CMessage:
		var m c2cMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return relay.InboundMessage{}, false, err
		}
		return relay.InboundMessage{
			Kind:        relay.ChannelDirect,
			RecipientID: m.Author.UserOpenID,
			MessageID:   m.ID,
			Text:        m.Content,
		}, true, nil
	}

	return relay.InboundMessage{}, false, nil
}

func isFatal(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		for _, code := range fatalCloseCodes {
			if closeErr.Code == code {
				return true
			}
		}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403) {
		return true
	}
	return errors.Is(err, ErrNoAccessToken)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
