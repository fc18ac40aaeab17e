package core

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/proto"
)

// Router dispatches inbound frames from live connections to their
// side effects. Frames from anonymous connections are dropped; unknown frame
// types are ignored rather than rejected so older servers tolerate newer
// clients.
type Router struct {
	reg *Registry
	bc  *Broadcaster
	log *zerolog.Logger
}

// NewRouter builds a router over the registry and broadcaster.
func NewRouter(reg *Registry, bc *Broadcaster, logger *zerolog.Logger) *Router {
	return &Router{reg: reg, bc: bc, log: logger}
}

// HandleInbound processes one frame from the given connection.
func (r *Router) HandleInbound(connID int64, frame proto.Inbound) {
	ident := r.reg.IdentityOf(connID)
	if ident == nil {
		// Anonymous connections are receive-only.
		return
	}

	switch frame.Type {
	case proto.InboundTypeTyping:
		var data proto.TypingInbound
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			r.log.Debug().Err(err).Int64("conn_id", connID).Msg("malformed typing frame")
			return
		}
		chatType := data.ChatType
		if chatType == "" {
			chatType = "general"
		}
		r.bc.BroadcastEvent(proto.EventTyping, proto.TypingData{
			Nickname:   ident.Nickname,
			IsTyping:   data.IsTyping,
			ChatType:   chatType,
			TargetUser: data.TargetUser,
		}, ident.ID)

	case proto.InboundTypeStatusUpdate:
		var data proto.StatusUpdateInbound
		if err := json.Unmarshal(frame.Data, &data); err != nil {
			r.log.Debug().Err(err).Int64("conn_id", connID).Msg("malformed status frame")
			return
		}
		// Transient signal only. The durable status column is written by the
		// REST layer, not here.
		r.bc.BroadcastEvent(proto.EventUserStatus, proto.UserStatusData{
			Nickname: ident.Nickname,
			Status:   data.Status,
			LastSeen: data.LastSeen,
		}, ident.ID)

	default:
		r.log.Debug().Str("type", frame.Type).Int64("conn_id", connID).Msg("ignoring unknown frame type")
	}
}
