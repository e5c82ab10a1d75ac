package connections

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/multisession/internal/auth"
	"github.com/wolfeidau/multisession/internal/ident"
)

const (
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxMessage   = 64 * 1024
	accountParam = "account"
)

type clientMessage struct {
	Type string `json:"type"`
}

type serverMessage struct {
	Type    string       `json:"type"`
	Account *accountInfo `json:"account,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type accountInfo struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Handler serves the websocket endpoint. Browsers cannot set headers on a
// websocket handshake, so the active account travels in the account query
// parameter.
type Handler struct {
	resolver *auth.Resolver
	registry *Registry
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket handler. Cross origin handshakes are only
// accepted from allowedOrigins.
func NewHandler(resolver *auth.Resolver, registry *Registry, allowedOrigins []string) *Handler {
	return &Handler{
		resolver: resolver,
		registry: registry,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if u.Host == r.Host {
			return true
		}
		return slices.Contains(allowed, origin)
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	headers := r.Header.Clone()
	if account := r.URL.Query().Get(accountParam); account != "" {
		headers.Set(auth.HeaderActiveAccount, account)
	}

	ac, err := h.resolver.Resolve(ctx, headers)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resolve websocket session")
		auth.WriteUnavailable(w)
		return
	}
	if u, ok := ac.(auth.Unauthenticated); ok {
		auth.WriteUnauthorized(w, u.Reason)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already written the error response
		logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	// the request context ends with the handshake for hijacked connections
	connCtx := context.WithoutCancel(ctx)

	conn, err := h.registry.Register(connCtx, ac)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to register connection")
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "registry unavailable"),
			time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	connLogger := logger.With().Str("connection_id", conn.ConnectionID.String()).Logger()
	connCtx = connLogger.WithContext(connCtx)

	defer func() {
		if err := h.registry.Unregister(connCtx, conn.ConnectionID); err != nil {
			connLogger.Warn().Err(err).Msg("Failed to unregister connection")
		}
		_ = ws.Close()
	}()

	h.serve(connCtx, ws, conn.ConnectionID)
}

func (h *Handler) serve(ctx context.Context, ws *websocket.Conn, connectionID uuid.UUID) {
	logger := zerolog.Ctx(ctx)

	// gorilla connections support one concurrent writer
	var writeMu sync.Mutex
	write := func(msg serverMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(msg)
	}

	// control frames keep the connection open, so they keep the record too
	touch := func() {
		if _, err := h.registry.Touch(ctx, connectionID); err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh connection")
		}
	}

	ws.SetReadLimit(maxMessage)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		touch()
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	ws.SetPingHandler(func(appData string) error {
		touch()
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		writeMu.Lock()
		err := ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		writeMu.Unlock()

		var netErr net.Error
		if errors.Is(err, websocket.ErrCloseSent) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil
		}
		return err
	})

	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pongWait * 9 / 10)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				writeMu.Unlock()
				if err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("Websocket closed")
			}
			return
		}

		touch()

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		var reply serverMessage
		switch msg.Type {
		case "ping":
			reply = serverMessage{Type: "pong"}
		case "whoami":
			reply = h.whoami(ctx, connectionID)
		default:
			continue
		}

		if err := write(reply); err != nil {
			return
		}
	}
}

func (h *Handler) whoami(ctx context.Context, connectionID uuid.UUID) serverMessage {
	ac, err := h.registry.Lookup(ctx, connectionID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to look up connection")
		return serverMessage{Type: "error", Error: "connection not found"}
	}

	a, ok := ac.(auth.Authenticated)
	if !ok {
		return serverMessage{Type: "error", Error: "not authorized"}
	}

	return serverMessage{
		Type: "whoami",
		Account: &accountInfo{
			ID:    ident.ToWire(a.Account.AccountID),
			Email: a.Account.Email,
			Name:  a.Account.Name,
		},
	}
}
