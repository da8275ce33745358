package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medilink/telehealth/internal/domain/consultation"
	"github.com/medilink/telehealth/internal/domain/identity"
	"github.com/medilink/telehealth/internal/domain/messaging"
	"github.com/medilink/telehealth/internal/platform/apperr"
	"github.com/medilink/telehealth/internal/platform/auth"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 64 * 1024
	sendBuffer     = 256
	sendMsgTimeout = 10 * time.Second
)

// Accounts resolves the account behind a handshake token.
type Accounts interface {
	Get(ctx context.Context, id string) (*identity.Account, error)
}

// Consultations resolves the consultation behind a room.
type Consultations interface {
	Find(ctx context.Context, id string) (*consultation.Consultation, error)
}

// Messages persists chat messages sent over the socket.
type Messages interface {
	Send(ctx context.Context, in messaging.SendInput) (*messaging.Message, error)
}

// Server upgrades authenticated requests to websockets and dispatches the
// events clients send.
type Server struct {
	hub           *Hub
	tokens        *auth.TokenManager
	accounts      Accounts
	consultations Consultations
	messages      Messages
	logger        zerolog.Logger
	upgrader      gorillawebsocket.Upgrader
}

func NewServer(hub *Hub, tokens *auth.TokenManager, accounts Accounts, consultations Consultations,
	messages Messages, logger zerolog.Logger, allowedOrigins []string) *Server {
	return &Server{
		hub:           hub,
		tokens:        tokens,
		accounts:      accounts,
		consultations: consultations,
		messages:      messages,
		logger:        logger,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

// originChecker allows requests without an Origin header (non-browser
// clients) and browsers on an allowed origin. "*" allows every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(strings.TrimSpace(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}

func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleConnect)
}

// HandleConnect authenticates the bearer token before upgrading. A missing
// or invalid token, or one whose account no longer exists, is rejected with
// 401 and no upgrade happens.
func (s *Server) HandleConnect(c echo.Context) error {
	r := c.Request()
	token, err := auth.TokenFromRequest(r)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication token required")
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	}
	account, err := s.accounts.Get(r.Context(), claims.Subject)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return echo.NewHTTPError(http.StatusUnauthorized, "account not found")
		}
		return err
	}

	ws, err := s.upgrader.Upgrade(c.Response(), r, nil)
	if err != nil {
		// The upgrader has already written the error response.
		s.logger.Debug().Err(err).Msg("relay: upgrade failed")
		return nil
	}

	client := NewClient(uuid.NewString(), account.ID, account.Role, account.Name, sendBuffer)
	s.hub.Register(client)
	s.logger.Debug().Str("client_id", client.ID).Str("user_id", client.AccountID).Msg("relay: client connected")

	go s.writePump(client, ws)
	go s.readPump(client, ws)
	return nil
}

func (s *Server) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		s.hub.Unregister(client)
		ws.Close()
		s.logger.Debug().Str("client_id", client.ID).Str("user_id", client.AccountID).Msg("relay: client disconnected")
	}()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
			s.logger.Debug().Str("client_id", client.ID).Msg("relay: malformed frame dropped")
			continue
		}
		s.Dispatch(client, env)
	}
}

func (s *Server) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
