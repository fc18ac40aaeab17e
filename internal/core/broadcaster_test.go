package core

import (
	"context"
	"testing"

	"github.com/blacksmithop/chatconnect-server/internal/proto"
)

func TestBroadcastExcludesIdentity(t *testing.T) {
	alice := testIdentity(1, "alice")
	bob := testIdentity(2, "bob")
	reg, bc, _ := newTestCore(alice, bob)
	ctx := context.Background()

	aliceConn1 := &fakeConn{}
	aliceConn2 := &fakeConn{}
	bobConn := &fakeConn{}
	reg.Bind(ctx, reg.Register(aliceConn1), "tok:alice")
	reg.Bind(ctx, reg.Register(aliceConn2), "tok:alice")
	reg.Bind(ctx, reg.Register(bobConn), "tok:bob")

	bc.BroadcastEvent(proto.EventTyping, proto.TypingData{Nickname: "alice", IsTyping: true, ChatType: "general"}, alice.ID)

	if got := len(aliceConn1.eventTypes(t)) + len(aliceConn2.eventTypes(t)); got != 0 {
		t.Fatalf("excluded identity received %d events", got)
	}
	if types := bobConn.eventTypes(t); len(types) != 1 || types[0] != proto.EventTyping {
		t.Fatalf("unexpected events for bob: %v", types)
	}
}

func TestBroadcastSkipsAnonymousConnections(t *testing.T) {
	alice := testIdentity(1, "alice")
	reg, bc, _ := newTestCore(alice)
	ctx := context.Background()

	bound := &fakeConn{}
	anon := &fakeConn{}
	reg.Bind(ctx, reg.Register(bound), "tok:alice")
	reg.Register(anon)

	bc.BroadcastEvent(proto.EventMessage, proto.MessageData{Body: "hi"}, 0)

	if len(bound.eventTypes(t)) != 1 {
		t.Fatalf("bound connection should receive the event")
	}
	if len(anon.eventTypes(t)) != 0 {
		t.Fatalf("anonymous connection must not be a broadcast target")
	}
}

func TestBroadcastPartialFailure(t *testing.T) {
	alice := testIdentity(1, "alice")
	bob := testIdentity(2, "bob")
	carol := testIdentity(3, "carol")
	reg, bc, _ := newTestCore(alice, bob, carol)
	ctx := context.Background()

	aliceConn := &fakeConn{}
	bobConn := &fakeConn{fail: true}
	carolConn := &fakeConn{}
	reg.Bind(ctx, reg.Register(aliceConn), "tok:alice")
	reg.Bind(ctx, reg.Register(bobConn), "tok:bob")
	reg.Bind(ctx, reg.Register(carolConn), "tok:carol")

	bc.BroadcastEvent(proto.EventMessage, proto.MessageData{Body: "hi"}, 0)

	// Delivery to the healthy connections is isolated from bob's failure.
	if n := aliceConn.countOf(t, proto.EventMessage); n != 1 {
		t.Fatalf("alice received %d message events", n)
	}
	if n := carolConn.countOf(t, proto.EventMessage); n != 1 {
		t.Fatalf("carol received %d message events", n)
	}

	// Bob's failed connection was his last, so he departed.
	for _, ident := range reg.OnlineIdentities() {
		if ident.ID == bob.ID {
			t.Fatalf("bob should have been removed from the registry")
		}
	}
	if n := aliceConn.countOf(t, proto.EventUserLeft); n != 1 {
		t.Fatalf("alice saw %d user_left events, want 1", n)
	}
	if n := carolConn.countOf(t, proto.EventUserLeft); n != 1 {
		t.Fatalf("carol saw %d user_left events, want 1", n)
	}
}

func TestDisconnectBroadcastsSingleDeparture(t *testing.T) {
	alice := testIdentity(1, "alice")
	bob := testIdentity(2, "bob")
	reg, bc, _ := newTestCore(alice, bob)
	ctx := context.Background()

	observer := &fakeConn{}
	reg.Bind(ctx, reg.Register(observer), "tok:bob")

	connA := reg.Register(&fakeConn{})
	connB := reg.Register(&fakeConn{})
	reg.Bind(ctx, connA, "tok:alice")
	reg.Bind(ctx, connB, "tok:alice")

	bc.Disconnect(connA)
	if n := observer.countOf(t, proto.EventUserLeft); n != 0 {
		t.Fatalf("user_left fired before last connection closed")
	}

	bc.Disconnect(connB)
	if n := observer.countOf(t, proto.EventUserLeft); n != 1 {
		t.Fatalf("expected exactly one user_left, got %d", n)
	}

	// Disconnecting again changes nothing.
	bc.Disconnect(connB)
	if n := observer.countOf(t, proto.EventUserLeft); n != 1 {
		t.Fatalf("duplicate disconnect produced another user_left")
	}
}

func TestSendToIdentityReachesAllConnections(t *testing.T) {
	alice := testIdentity(1, "alice")
	bob := testIdentity(2, "bob")
	reg, bc, _ := newTestCore(alice, bob)
	ctx := context.Background()

	aliceConn1 := &fakeConn{}
	aliceConn2 := &fakeConn{}
	bobConn := &fakeConn{}
	reg.Bind(ctx, reg.Register(aliceConn1), "tok:alice")
	reg.Bind(ctx, reg.Register(aliceConn2), "tok:alice")
	reg.Bind(ctx, reg.Register(bobConn), "tok:bob")

	payload, err := proto.Marshal(proto.EventMessage, proto.MessageData{Body: "direct"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	bc.SendToIdentity(alice.ID, payload)

	if len(aliceConn1.eventTypes(t)) != 1 || len(aliceConn2.eventTypes(t)) != 1 {
		t.Fatalf("both of alice's connections should receive the payload")
	}
	if len(bobConn.eventTypes(t)) != 0 {
		t.Fatalf("bob must not receive an identity-scoped send")
	}
}

func TestSendToConnFailureDropsConnection(t *testing.T) {
	alice := testIdentity(1, "alice")
	bob := testIdentity(2, "bob")
	reg, bc, _ := newTestCore(alice, bob)
	ctx := context.Background()

	observer := &fakeConn{}
	reg.Bind(ctx, reg.Register(observer), "tok:bob")

	failing := &fakeConn{fail: true}
	connID := reg.Register(failing)
	reg.Bind(ctx, connID, "tok:alice")

	payload, _ := proto.Marshal(proto.EventMessage, proto.MessageData{Body: "hi"})
	bc.SendToConn(connID, payload)

	if got := reg.IdentityOf(connID); got != nil {
		t.Fatalf("failed connection should be unbound, got %+v", got)
	}
	if n := observer.countOf(t, proto.EventUserLeft); n != 1 {
		t.Fatalf("expected departure after failed send, got %d user_left events", n)
	}
}

func TestPerConnectionDeliveryOrder(t *testing.T) {
	alice := testIdentity(1, "alice")
	bob := testIdentity(2, "bob")
	reg, bc, _ := newTestCore(alice, bob)
	ctx := context.Background()

	conn := &fakeConn{}
	reg.Bind(ctx, reg.Register(conn), "tok:bob")

	bc.BroadcastEvent(proto.EventUserJoined, proto.UserJoinedData{Nickname: "alice"}, alice.ID)
	bc.BroadcastEvent(proto.EventMessage, proto.MessageData{Body: "hi"}, alice.ID)
	bc.BroadcastEvent(proto.EventUserStatus, proto.UserStatusData{Nickname: "alice", Status: "idle"}, alice.ID)

	want := []string{proto.EventUserJoined, proto.EventMessage, proto.EventUserStatus}
	got := conn.eventTypes(t)
	if len(got) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("delivery order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}
