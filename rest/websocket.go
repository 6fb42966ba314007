package rest

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/net/websocket"

	"feed-hub/auth"
	"feed-hub/domain"
)

// wsConn adapts a websocket connection to the broadcaster. Writes are
// serialized: the hub and the heartbeat loop both write to the socket.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *wsConn) SendJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.ws, v)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// clientMessage is what clients may send upstream. Only heartbeats are
// recognized; everything else is ignored.
type clientMessage struct {
	Type string `json:"type"`
}

// Notifications upgrades the request to a websocket after authenticating
// the presented token. Authentication failures never register any state.
func (h *Handler) Notifications(c echo.Context) error {
	userID, err := h.verifier.VerifyToken(bearerToken(c))
	if err != nil {
		if errors.Is(err, auth.ErrMissingToken) {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	websocket.Handler(func(ws *websocket.Conn) {
		h.serveConnection(c, ws, userID)
	}).ServeHTTP(c.Response(), c.Request())
	return nil
}

// bearerToken pulls the token from the Authorization header, falling back
// to the token query parameter browsers are stuck with for websockets.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return c.QueryParam("token")
}

func (h *Handler) serveConnection(c echo.Context, ws *websocket.Conn, userID int64) {
	ctx := c.Request().Context()
	conn := &wsConn{ws: ws}

	connID := h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID, connID)

	if err := conn.SendJSON(domain.NewConnectionEstablished()); err != nil {
		h.logger.WarnContext(ctx, "greeting failed, dropping connection",
			"user_id", userID, "conn_id", connID, "error", err)
		return
	}

	for {
		var msg clientMessage
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			if err != io.EOF {
				h.logger.InfoContext(ctx, "live connection read ended",
					"user_id", userID, "conn_id", connID, "error", err)
			}
			return
		}

		if msg.Type == "ping" {
			if err := conn.SendJSON(domain.NewPong()); err != nil {
				return
			}
		}
	}
}
