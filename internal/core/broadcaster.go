package core

import (
	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/proto"
)

// Broadcaster fans event payloads out to connections tracked by the registry.
// Delivery is best effort: a failed send never reaches the caller, it tears
// down the failing connection instead.
type Broadcaster struct {
	reg *Registry
	log *zerolog.Logger
}

// NewBroadcaster builds a broadcaster over the given registry.
func NewBroadcaster(reg *Registry, logger *zerolog.Logger) *Broadcaster {
	return &Broadcaster{reg: reg, log: logger}
}

// SendToConn delivers a payload to one connection. A transport failure is
// treated as an implicit disconnect.
func (b *Broadcaster) SendToConn(connID int64, payload []byte) {
	conn, ok := b.reg.connOf(connID)
	if !ok {
		return
	}
	if err := conn.Send(payload); err != nil {
		b.log.Warn().Err(err).Int64("conn_id", connID).Msg("send failed, dropping connection")
		b.Disconnect(connID)
	}
}

// Broadcast delivers a payload to every bound connection, excluding all
// connections owned by excludeIdentity (0 = no exclusion). The target list is
// snapshotted under the registry lock; sends happen outside it so one stalled
// peer cannot block the rest.
func (b *Broadcaster) Broadcast(payload []byte, excludeIdentity int64) {
	b.deliver(b.reg.snapshotAll(excludeIdentity), payload)
}

// SendToIdentity delivers a payload to every connection of one identity.
func (b *Broadcaster) SendToIdentity(identityID int64, payload []byte) {
	b.deliver(b.reg.snapshotIdentity(identityID), payload)
}

// BroadcastEvent marshals an event envelope and broadcasts it.
func (b *Broadcaster) BroadcastEvent(eventType string, data any, excludeIdentity int64) {
	payload, err := proto.Marshal(eventType, data)
	if err != nil {
		b.log.Error().Err(err).Str("event", eventType).Msg("marshal event")
		return
	}
	b.Broadcast(payload, excludeIdentity)
}

// Disconnect unbinds a connection and, when it was the identity's last one,
// broadcasts the departure. A departed identity can no longer be a broadcast
// target, so this cannot recurse past one level per identity.
func (b *Broadcaster) Disconnect(connID int64) {
	ident, last := b.reg.Unbind(connID)
	if ident == nil || !last {
		return
	}
	b.BroadcastEvent(proto.EventUserLeft, proto.UserLeftData{Nickname: ident.Nickname}, ident.ID)
}

func (b *Broadcaster) deliver(targets []target, payload []byte) {
	var failed []int64
	for _, t := range targets {
		if err := t.conn.Send(payload); err != nil {
			b.log.Warn().Err(err).Int64("conn_id", t.connID).Msg("broadcast send failed")
			failed = append(failed, t.connID)
		}
	}

	// Reconcile failures after the send pass, back under the registry lock.
	for _, id := range failed {
		b.Disconnect(id)
	}
}
