package signaling

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/verification-service/internal/config"
	"github.com/spec-kit/verification-service/internal/domain"
	"github.com/spec-kit/verification-service/internal/events"
	"github.com/spec-kit/verification-service/internal/observability"
	"github.com/spec-kit/verification-service/internal/service"
	apperrors "github.com/spec-kit/verification-service/pkg/util"
)

// Handler owns the websocket side of a session: join authorization, roster
// notifications, signal relay and the abandoned-session expiry on empty rooms.
type Handler struct {
	hub        *Hub
	sessions   *service.SessionService
	lifecycle  *service.LifecycleService
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	cfg        config.SignalingConfig
	logger     *zap.Logger
}

// HandlerDependencies bundles requirements.
type HandlerDependencies struct {
	Hub        *Hub
	Sessions   *service.SessionService
	Lifecycle  *service.LifecycleService
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewHandler creates the handler.
func NewHandler(cfg config.SignalingConfig, deps HandlerDependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:        deps.Hub,
		sessions:   deps.Sessions,
		lifecycle:  deps.Lifecycle,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// Serve runs one connection for its lifetime. The session is re-read from the
// store here, after the page-load lookup, because it can close in between.
func (h *Handler) Serve(conn *websocket.Conn) {
	token := conn.Params("token")
	role := Role(conn.Query("role", string(RoleRequester)))
	if !role.Valid() {
		h.reject(conn, TypeError, "unknown role")
		h.metrics.RecordJoinRejected("bad_role")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.JoinAuthTimeout())
	session, err := h.sessions.AuthorizeJoin(ctx, token)
	cancel()
	if err != nil {
		switch {
		case apperrors.IsCode(err, apperrors.CodeSessionClosed):
			h.reject(conn, TypeSessionClosed, "session has expired or been closed")
			h.metrics.RecordJoinRejected("closed")
		case apperrors.IsCode(err, apperrors.CodeNotFound):
			h.reject(conn, TypeSessionClosed, "session not found")
			h.metrics.RecordJoinRejected("not_found")
		default:
			h.logger.Error("join authorization failed", zap.String("token", token), zap.Error(err))
			h.reject(conn, TypeError, "join failed")
			h.metrics.RecordJoinRejected("error")
		}
		return
	}

	cl := newClient(uuid.NewString(), role, conn, h.cfg)
	go cl.writePump()

	existing := h.hub.Join(token, cl)
	h.logger.Info("peer joined room",
		zap.String("token", token),
		zap.String("connection_id", cl.ID()),
		zap.String("role", string(role)),
		zap.Int("peers_present", len(existing)))

	h.sendRoster(cl, existing)
	h.notifyJoined(cl, existing)

	if session.Status == domain.SessionStatusNotStarted {
		joinCtx, joinCancel := context.WithTimeout(context.Background(), h.cfg.JoinAuthTimeout())
		h.lifecycle.MarkFirstJoin(joinCtx, token)
		joinCancel()
	}

	h.readLoop(token, cl)
	h.teardown(token, cl)
}

// sendRoster acks the join with the current roster. For each pairing the side
// with the lower connection ID creates the offer, so both peers agree on the
// initiator without negotiating.
func (h *Handler) sendRoster(cl *client, existing []Peer) {
	members := make([]MemberInfo, 0, len(existing))
	for _, peer := range existing {
		members = append(members, MemberInfo{
			ConnectionID: peer.ID(),
			Role:         peer.Role(),
			Initiate:     initiates(peer.ID(), cl.ID()),
		})
	}
	cl.Send(Envelope{
		Type:    TypeJoined,
		Payload: mustJSON(JoinedPayload{ConnectionID: cl.ID(), Members: members}),
	})
}

// notifyJoined tells each existing peer about the new arrival, with the
// initiate flag computed per pairing.
func (h *Handler) notifyJoined(cl *client, existing []Peer) {
	for _, peer := range existing {
		peer.Send(Envelope{
			Type: TypeMemberJoined,
			Payload: mustJSON(MemberEventPayload{Member: MemberInfo{
				ConnectionID: cl.ID(),
				Role:         cl.Role(),
				Initiate:     initiates(cl.ID(), peer.ID()),
			}}),
		})
	}
}

func (h *Handler) readLoop(token string, cl *client) {
	conn := cl.conn
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongTimeout()))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			cl.Send(Envelope{Type: TypeError, Error: "malformed frame"})
			continue
		}

		switch env.Type {
		case TypeOffer, TypeAnswer, TypeICECandidate:
			h.relay(token, cl, env)
		case TypeLeave:
			return
		default:
			cl.Send(Envelope{Type: TypeError, Error: "unknown message type"})
		}
	}
}

// relay stamps the sender and forwards the frame. SDP and ICE payloads pass
// through opaque.
func (h *Handler) relay(token string, cl *client, env Envelope) {
	var payload SignalPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		cl.Send(Envelope{Type: TypeError, Error: "malformed signal payload"})
		return
	}
	payload.From = cl.ID()
	h.hub.Forward(token, cl.ID(), Envelope{Type: env.Type, Payload: mustJSON(payload)}, payload.Target)
}

// teardown removes the peer, informs the remaining party and, when the room
// emptied, retires the session. Expiry is idempotent, so a duplicate
// disconnect cannot close a session twice or clobber a later state.
func (h *Handler) teardown(token string, cl *client) {
	cl.close()

	emptied, found := h.hub.Leave(token, cl.ID())
	if !found {
		return
	}
	h.logger.Info("peer left room",
		zap.String("token", token),
		zap.String("connection_id", cl.ID()),
		zap.Bool("room_emptied", emptied))

	if !emptied {
		h.hub.Broadcast(token, cl.ID(), Envelope{
			Type: TypeMemberLeft,
			Payload: mustJSON(MemberEventPayload{Member: MemberInfo{
				ConnectionID: cl.ID(),
				Role:         cl.Role(),
			}}),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.JoinAuthTimeout())
	defer cancel()
	expired, err := h.lifecycle.ExpireAbandoned(ctx, token)
	if err != nil {
		h.logger.Error("abandoned session expiry failed", zap.String("token", token), zap.Error(err))
		return
	}
	if h.dispatcher != nil {
		_ = h.dispatcher.Publish(ctx, events.Event{
			ID:           uuid.NewString(),
			Type:         events.EventRoomEmptied,
			SessionToken: token,
			Timestamp:    time.Now(),
			Payload:      events.RoomEmptiedPayload{Expired: expired},
		})
	}
}

// reject sends one explanatory frame and closes the connection without ever
// entering a room.
func (h *Handler) reject(conn *websocket.Conn, msgType, reason string) {
	env := Envelope{Type: msgType, Payload: mustJSON(SessionClosedPayload{Reason: reason})}
	if msgType == TypeError {
		env = Envelope{Type: TypeError, Error: reason}
	}
	raw, err := json.Marshal(env)
	if err == nil {
		conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
		_ = conn.WriteMessage(websocket.TextMessage, raw)
	}
	conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout()))
	_ = conn.WriteMessage(websocket.CloseMessage, nil)
	conn.Close()
}
