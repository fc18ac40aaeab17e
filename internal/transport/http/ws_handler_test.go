package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/blacksmithop/chatconnect-server/internal/proto"
)

type outboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, ctx context.Context, baseURL, token string) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/ws"
	if token != "" {
		wsURL += "?token=" + token
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// readEvent reads outbound frames until one of the wanted type arrives.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, eventType string) outboundFrame {
	t.Helper()

	for {
		var frame outboundFrame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read outbound while waiting for %s: %v", eventType, err)
		}
		if frame.Type == eventType {
			return frame
		}
	}
}

// waitOnline polls the presence endpoint until the nickname shows up, which
// pins down when an async handshake has finished binding.
func waitOnline(t *testing.T, ts *httptest.Server, nickname string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := ts.Client().Get(ts.URL + "/api/users/online")
		if err != nil {
			t.Fatalf("online request failed: %v", err)
		}

		var online []OnlineUserResponse
		if err := json.NewDecoder(resp.Body).Decode(&online); err != nil {
			resp.Body.Close()
			t.Fatalf("decode online response: %v", err)
		}
		resp.Body.Close()

		for _, u := range online {
			if u.Nickname == nickname {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("%s never appeared online", nickname)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestWebSocketPresenceFlow(t *testing.T) {
	ts, authService, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bobToken := registerTestUser(t, authService, "bob")
	aliceToken := registerTestUser(t, authService, "alice")

	bobConn := dialWS(t, ctx, ts.URL, bobToken)
	waitOnline(t, ts, "bob")

	// Alice connecting announces her to bob.
	aliceConn := dialWS(t, ctx, ts.URL, aliceToken)
	joined := readEvent(t, ctx, bobConn, proto.EventUserJoined)

	var joinedData proto.UserJoinedData
	if err := json.Unmarshal(joined.Data, &joinedData); err != nil {
		t.Fatalf("unmarshal user_joined: %v", err)
	}
	if joinedData.Nickname != "alice" {
		t.Fatalf("unexpected user_joined payload: %+v", joinedData)
	}

	// Typing indicator fans out to bob, not back to alice.
	typingPayload, _ := json.Marshal(proto.TypingInbound{IsTyping: true, ChatType: "general"})
	if err := wsjson.Write(ctx, aliceConn, proto.Inbound{Type: proto.InboundTypeTyping, Data: typingPayload}); err != nil {
		t.Fatalf("write typing frame: %v", err)
	}

	typing := readEvent(t, ctx, bobConn, proto.EventTyping)
	var typingData proto.TypingData
	if err := json.Unmarshal(typing.Data, &typingData); err != nil {
		t.Fatalf("unmarshal typing: %v", err)
	}
	if typingData.Nickname != "alice" || !typingData.IsTyping {
		t.Fatalf("unexpected typing payload: %+v", typingData)
	}

	// Closing alice's only connection fires her departure.
	aliceConn.Close(websocket.StatusNormalClosure, "bye")
	left := readEvent(t, ctx, bobConn, proto.EventUserLeft)

	var leftData proto.UserLeftData
	if err := json.Unmarshal(left.Data, &leftData); err != nil {
		t.Fatalf("unmarshal user_left: %v", err)
	}
	if leftData.Nickname != "alice" {
		t.Fatalf("unexpected user_left payload: %+v", leftData)
	}
}

func TestWebSocketAnonymousIsReceiveOnly(t *testing.T) {
	ts, authService, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bobToken := registerTestUser(t, authService, "bob")
	bobConn := dialWS(t, ctx, ts.URL, bobToken)
	waitOnline(t, ts, "bob")

	// Invalid token: the connection stays open, anonymous.
	anonConn := dialWS(t, ctx, ts.URL, "not-a-valid-token")

	typingPayload, _ := json.Marshal(proto.TypingInbound{IsTyping: true})
	if err := wsjson.Write(ctx, anonConn, proto.Inbound{Type: proto.InboundTypeTyping, Data: typingPayload}); err != nil {
		t.Fatalf("write anonymous frame: %v", err)
	}

	// Bob must not hear anything from the anonymous connection.
	readCtx, readCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer readCancel()

	var frame outboundFrame
	if err := wsjson.Read(readCtx, bobConn, &frame); err == nil {
		t.Fatalf("anonymous frame produced event: %+v", frame)
	}
}

func TestOnlineUsersEndpoint(t *testing.T) {
	ts, authService, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	aliceToken := registerTestUser(t, authService, "alice")
	dialWS(t, ctx, ts.URL, aliceToken)

	waitOnline(t, ts, "alice")
}

func TestHealthEndpoint(t *testing.T) {
	ts, _, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if resp.Header.Get("X-RateLimit-Limit") != "" {
		t.Fatalf("health endpoint must bypass the limiter")
	}
}
