package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/etensports/chat-server/internal/auth"
	"github.com/etensports/chat-server/internal/config"
	"github.com/etensports/chat-server/internal/core"
	"github.com/etensports/chat-server/internal/metrics"
	"github.com/etensports/chat-server/internal/proto"
	"github.com/etensports/chat-server/internal/realtime"
)

const helloTimeout = 10 * time.Second

var errLoggedOut = errors.New("logged out")

// WSHandler upgrades HTTP connections and bridges them to a core.Session.
type WSHandler struct {
	hub     *realtime.Hub
	convs   *core.Conversations
	auth    *auth.Service
	metrics *metrics.Metrics
	cfg     *config.Config
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(deps Deps, cfg *config.Config, logger *zerolog.Logger) http.Handler {
	return &WSHandler{
		hub:     deps.Hub,
		convs:   deps.Conversations,
		auth:    deps.Auth,
		metrics: deps.Metrics,
		cfg:     cfg,
		log:     logger,
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestToken := tokenFromRequest(r)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	identity, hello, err := h.handshake(ctx, conn, requestToken)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws handshake failed")
		conn.Close(websocket.StatusPolicyViolation, "handshake failed")
		return
	}

	session, rtConn, err := h.openSession(ctx, identity, hello.Conversation)
	if err != nil {
		h.log.Warn().Err(err).Str("uid", identity.UID).Msg("failed to open chat session")
		_ = wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoError(err)})
		conn.Close(websocket.StatusPolicyViolation, "session rejected")
		return
	}
	defer func() {
		session.Close()
		if rtConn != nil {
			if err := rtConn.Disconnect(context.Background()); err != nil {
				h.log.Warn().Err(err).Msg("failed to disconnect realtime connection")
			}
		}
	}()

	logger := h.log.With().Str("uid", identity.UID).Bool("admin", identity.Admin).Logger()
	logger.Info().Msg("ws session started")

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session, identity, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session, rtConn, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, errLoggedOut) {
		err = nil
		reason = "logged out"
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	logger.Info().Msg("ws session ended")
	conn.Close(status, reason)
}

// handshake waits for hello and authenticates it, using the upgrade request's
// token when hello carries none.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn, requestToken string) (auth.Identity, proto.HelloData, error) {
	helloCtx, cancel := context.WithTimeout(ctx, helloTimeout)
	defer cancel()

	var inbound proto.Inbound
	if err := wsjson.Read(helloCtx, conn, &inbound); err != nil {
		return auth.Identity{}, proto.HelloData{}, err
	}
	if inbound.Type != proto.InboundTypeHello {
		_ = wsjson.Write(ctx, conn, errorOutbound(core.ErrCodeBadRequest, "hello required"))
		return auth.Identity{}, proto.HelloData{}, errors.New("first message was not hello")
	}

	var hello proto.HelloData
	if len(inbound.Data) > 0 {
		if err := json.Unmarshal(inbound.Data, &hello); err != nil {
			_ = wsjson.Write(ctx, conn, errorOutbound(core.ErrCodeBadRequest, "invalid hello"))
			return auth.Identity{}, proto.HelloData{}, err
		}
	}
	if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
		_ = wsjson.Write(ctx, conn, errorOutbound(core.ErrCodeUnsupported, "unsupported protocol version"))
		return auth.Identity{}, proto.HelloData{}, errors.New("unsupported protocol version")
	}

	token := hello.Token
	if token == "" {
		token = requestToken
	}
	if token == "" {
		_ = wsjson.Write(ctx, conn, errorOutbound(core.ErrCodeUnauthorized, "missing session token"))
		return auth.Identity{}, proto.HelloData{}, errors.New("missing session token")
	}
	identity, err := h.auth.ValidateToken(token)
	if err != nil {
		_ = wsjson.Write(ctx, conn, errorOutbound(core.ErrCodeUnauthorized, "invalid token"))
		return auth.Identity{}, proto.HelloData{}, err
	}
	return identity, hello, nil
}

// openSession starts the chat session. Admin sessions get a realtime
// connection whose disconnect hook takes presence offline.
func (h *WSHandler) openSession(ctx context.Context, identity auth.Identity, conversation string) (*core.Session, *realtime.Conn, error) {
	if conversation != "" && !canAccessConversation(identity, conversation) {
		return nil, nil, forbidden(errForbiddenConversation)
	}

	deps := core.SessionDeps{
		Conversations: h.convs,
		Store:         h.hub,
		Logger:        h.log,
		Metrics:       h.metrics,
	}
	var rtConn *realtime.Conn
	if identity.Admin {
		c, err := h.hub.Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		rtConn = c
		deps.Presence = core.NewPresenceTracker(rtConn, h.hub, h.log, h.metrics)
	}

	session := core.NewSession(actorFromIdentity(identity), deps)
	if err := session.Open(ctx, conversation); err != nil {
		session.Close()
		if rtConn != nil {
			_ = rtConn.Disconnect(context.Background())
		}
		return nil, nil, err
	}
	return session, rtConn, nil
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, identity auth.Identity, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.MessagesPerSecond, h.cfg.MessageBurst)

	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			logger.Debug().Err(err).Msg("read ws inbound")
			return err
		}

		out, err := h.dispatch(ctx, session, identity, limiter, inbound)
		if err != nil && !errors.Is(err, errLoggedOut) {
			logger.Debug().Err(err).Str("type", inbound.Type).Msg("ws command rejected")
			out = &proto.Outbound{Type: proto.OutboundTypeError, Error: protoError(err)}
		}
		if out != nil {
			if writeErr := wsjson.Write(ctx, conn, out); writeErr != nil {
				return writeErr
			}
		}
		if errors.Is(err, errLoggedOut) {
			return err
		}
	}
}

func (h *WSHandler) dispatch(ctx context.Context, session *core.Session, identity auth.Identity, limiter *rateLimiter, inbound proto.Inbound) (*proto.Outbound, error) {
	switch inbound.Type {
	case proto.InboundTypeSelect:
		var data proto.SelectData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		if !canAccessConversation(identity, data.Conversation) {
			return nil, forbidden(errForbiddenConversation)
		}
		return nil, session.Select(ctx, data.Conversation)
	case proto.InboundTypeDeselect:
		return nil, session.Deselect()
	case proto.InboundTypeDraft:
		var data proto.TextData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		return nil, session.SetDraft(data.Text)
	case proto.InboundTypeSend:
		var data proto.TextData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		if !limiter.allow() {
			return nil, &core.CoreError{Code: core.ErrCodeRateLimited, Message: "too many messages"}
		}
		id, err := session.Send(ctx, data.Text)
		if err != nil {
			return nil, err
		}
		return &proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventSent, Data: proto.EventSentData{ID: id}}, nil
	case proto.InboundTypeDeleteMessage:
		var data proto.DeleteMessageData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		if !canDelete(identity) {
			return nil, core.ErrForbidden
		}
		return nil, session.DeleteMessage(ctx, data.Conversation, data.ID)
	case proto.InboundTypeDeleteConversation:
		var data proto.DeleteConversationData
		if err := decodeData(inbound, &data); err != nil {
			return nil, err
		}
		if !canDelete(identity) {
			return nil, core.ErrForbidden
		}
		return nil, session.DeleteConversation(ctx, data.Conversation)
	case proto.InboundTypeLogout:
		if err := session.Logout(ctx); err != nil {
			return nil, err
		}
		return &proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventLogout}, errLoggedOut
	case proto.InboundTypeHello:
		return nil, &core.CoreError{Code: core.ErrCodeBadRequest, Message: "already introduced"}
	default:
		return nil, &core.CoreError{Code: core.ErrCodeBadRequest, Message: "unknown message type"}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session, rtConn *realtime.Conn, logger *zerolog.Logger) error {
	var ping <-chan time.Time
	if h.cfg.WSPingInterval > 0 {
		ticker := time.NewTicker(h.cfg.WSPingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	views := session.Views()
	for {
		select {
		case view, ok := <-views:
			if !ok {
				// Session ended by logout; readLoop finishes the connection.
				views = nil
				continue
			}
			if err := wsjson.Write(ctx, conn, outboundFromView(view)); err != nil {
				logger.Debug().Err(err).Msg("write ws view")
				return err
			}
		case <-ping:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.WSPingInterval)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
			if rtConn != nil {
				if err := rtConn.Touch(ctx); err != nil {
					logger.Warn().Err(err).Msg("presence lease lost")
					return err
				}
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func decodeData(inbound proto.Inbound, v any) error {
	if len(inbound.Data) == 0 {
		return &core.CoreError{Code: core.ErrCodeBadRequest, Message: inbound.Type + ": missing data"}
	}
	if err := json.Unmarshal(inbound.Data, v); err != nil {
		return &core.CoreError{Code: core.ErrCodeBadRequest, Message: inbound.Type + ": invalid data"}
	}
	return nil
}
