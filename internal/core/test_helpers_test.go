package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/blacksmithop/chatconnect-server/internal/proto"
)

// staticAuth resolves tokens from a fixed map; unknown tokens fail.
type staticAuth struct {
	identities map[string]*Identity
}

func (a *staticAuth) IdentityFromToken(_ context.Context, token string) *Identity {
	return a.identities[token]
}

// fakeConn records sent payloads and can be told to fail.
type fakeConn struct {
	mu   sync.Mutex
	sent [][]byte
	fail bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("send failed")
	}
	c.sent = append(c.sent, payload)
	return nil
}

// eventTypes decodes every payload the connection received and returns the
// envelope types in delivery order.
func (c *fakeConn) eventTypes(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]string, 0, len(c.sent))
	for _, payload := range c.sent {
		var env proto.Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			t.Fatalf("bad envelope %q: %v", payload, err)
		}
		types = append(types, env.Type)
	}
	return types
}

func (c *fakeConn) countOf(t *testing.T, eventType string) int {
	t.Helper()
	n := 0
	for _, typ := range c.eventTypes(t) {
		if typ == eventType {
			n++
		}
	}
	return n
}

func testIdentity(id int64, nickname string) *Identity {
	return &Identity{
		ID:       id,
		Nickname: nickname,
		AgeGroup: "18-25",
		Roles:    []string{"Member"},
		Status:   "online",
	}
}

// newTestCore builds a registry, broadcaster, and router over a static
// authenticator mapping token "tok:<nickname>" to the given identities.
func newTestCore(identities ...*Identity) (*Registry, *Broadcaster, *Router) {
	auth := &staticAuth{identities: make(map[string]*Identity)}
	for _, ident := range identities {
		auth.identities["tok:"+ident.Nickname] = ident
	}

	logger := zerolog.Nop()
	reg := NewRegistry(auth, &logger)
	bc := NewBroadcaster(reg, &logger)
	return reg, bc, NewRouter(reg, bc, &logger)
}
