package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Conn is the transport handle the registry holds for one live connection.
// Send must deliver the payload in call order for a given connection and
// return an error only when the connection is unusable.
type Conn interface {
	Send(payload []byte) error
}

type connEntry struct {
	conn      Conn
	createdAt time.Time
	identity  *Identity // nil while anonymous
}

// Registry owns the two presence maps: connection id -> entry and
// identity id -> set of connection ids. It is the only place that mutates
// them; Broadcaster and Router go through it.
type Registry struct {
	auth Authenticator
	log  *zerolog.Logger

	mu         sync.Mutex
	nextConnID int64
	conns      map[int64]*connEntry
	byIdentity map[int64]map[int64]struct{}
}

// NewRegistry constructs an empty registry. One instance is created per
// process and injected into the transport layer.
func NewRegistry(auth Authenticator, logger *zerolog.Logger) *Registry {
	return &Registry{
		auth:       auth,
		log:        logger,
		conns:      make(map[int64]*connEntry),
		byIdentity: make(map[int64]map[int64]struct{}),
	}
}

// Register adds a transport connection and returns its registry-issued id.
// The connection starts anonymous.
func (r *Registry) Register(conn Conn) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextConnID++
	id := r.nextConnID
	r.conns[id] = &connEntry{conn: conn, createdAt: time.Now()}

	r.log.Debug().Int64("conn_id", id).Msg("connection registered")
	return id
}

// Bind authenticates the credential and, on success, records the connection
// under the returned identity in both maps. On failure the connection stays
// anonymous and remains open; the caller sees nil.
func (r *Registry) Bind(ctx context.Context, connID int64, token string) *Identity {
	if token == "" {
		return nil
	}

	ident := r.auth.IdentityFromToken(ctx, token)
	if ident == nil {
		r.log.Debug().Int64("conn_id", connID).Msg("bind rejected, connection stays anonymous")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		// Transport closed the connection while the credential was being verified.
		return nil
	}

	entry.identity = ident
	set, ok := r.byIdentity[ident.ID]
	if !ok {
		set = make(map[int64]struct{})
		r.byIdentity[ident.ID] = set
	}
	set[connID] = struct{}{}

	r.log.Info().Int64("conn_id", connID).Int64("user_id", ident.ID).Str("nickname", ident.Nickname).Msg("connection bound")
	return ident
}

// Unbind removes the connection from both maps. It reports the identity the
// connection was bound to, and whether this was the identity's last
// connection (the "user left" transition). Calling it again, or on a
// connection that was never bound, is a no-op.
func (r *Registry) Unbind(connID int64) (*Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	delete(r.conns, connID)

	ident := entry.identity
	if ident == nil {
		return nil, false
	}

	set := r.byIdentity[ident.ID]
	delete(set, connID)
	if len(set) > 0 {
		return ident, false
	}

	// The set emptied: delete the key atomically with the removal. This
	// deletion, not socket closure, is the signal that the user left.
	delete(r.byIdentity, ident.ID)
	r.log.Info().Int64("user_id", ident.ID).Str("nickname", ident.Nickname).Msg("last connection closed")
	return ident, true
}

// IdentityOf returns the identity bound to a connection, or nil.
func (r *Registry) IdentityOf(connID int64) *Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.conns[connID]; ok {
		return entry.identity
	}
	return nil
}

// OnlineIdentities returns a deduplicated snapshot of identities holding at
// least one live connection. Ephemeral; never a substitute for the durable
// is_active record.
func (r *Registry) OnlineIdentities() []Identity {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[int64]struct{}, len(r.byIdentity))
	out := make([]Identity, 0, len(r.byIdentity))
	for _, entry := range r.conns {
		if entry.identity == nil {
			continue
		}
		if _, dup := seen[entry.identity.ID]; dup {
			continue
		}
		seen[entry.identity.ID] = struct{}{}
		out = append(out, *entry.identity)
	}
	return out
}

// target pairs a connection id with its transport handle for delivery
// outside the registry lock.
type target struct {
	connID int64
	conn   Conn
}

// snapshotAll copies the current bound-connection list, skipping every
// connection owned by excludeIdentity (0 = no exclusion). Anonymous
// connections are not broadcast targets.
func (r *Registry) snapshotAll(excludeIdentity int64) []target {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]target, 0, len(r.conns))
	for id, entry := range r.conns {
		if entry.identity == nil {
			continue
		}
		if excludeIdentity != 0 && entry.identity.ID == excludeIdentity {
			continue
		}
		out = append(out, target{connID: id, conn: entry.conn})
	}
	return out
}

// snapshotIdentity copies the connection list for one identity.
func (r *Registry) snapshotIdentity(identityID int64) []target {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.byIdentity[identityID]
	out := make([]target, 0, len(set))
	for id := range set {
		if entry, ok := r.conns[id]; ok {
			out = append(out, target{connID: id, conn: entry.conn})
		}
	}
	return out
}

// connOf returns the transport handle for one connection id.
func (r *Registry) connOf(connID int64) (Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return entry.conn, true
}
