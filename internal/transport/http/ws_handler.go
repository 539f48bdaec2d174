package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/siro844/excalidraw/internal/relay"
)

// TokenVerifier validates a credential and returns the user it belongs to.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// WSHandler upgrades HTTP connections and bridges them to the relay.
// The credential is taken from the "token" request header and verified before
// the upgrade completes; a rejected client never exchanges an envelope.
type WSHandler struct {
	router   *relay.Router
	verifier TokenVerifier
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(router *relay.Router, verifier TokenVerifier, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{router: router, verifier: verifier, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	userID, err := h.verifier.VerifyToken(r.Header.Get("token"))
	if err != nil {
		h.log.Warn().Err(err).Msg("rejecting ws handshake")
		stdhttp.Error(w, "forbidden", stdhttp.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client := relay.NewConn(userID)
	h.router.Connect(client)
	defer h.router.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

// readLoop feeds raw inbound frames to the router. Malformed frames are the
// router's problem (it drops them); only transport-level read errors end the
// connection.
func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *relay.Conn) error {
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		h.router.HandleFrame(ctx, client, raw)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *relay.Conn) error {
	for {
		select {
		case out := <-client.Outbound():
			if err := wsjson.Write(ctx, conn, out); err != nil {
				h.log.Warn().Err(err).Str("conn_id", client.ID).Msg("write ws envelope")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
