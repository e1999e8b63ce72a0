package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/devaloi/socialchat/internal/auth"
	"github.com/devaloi/socialchat/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and hands the connection to a new session.
// The credential is checked by the session so that failures are reported
// over the socket as an error event.
func ServeWS(deps *session.Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			deps.Log.Warn("ws upgrade error", zap.Error(err))
			return
		}
		_ = session.New(conn, deps).Start(auth.TokenFromRequest(c.Request))
	}
}
