package websocket

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/mindmates/backend/apperrors"
	"github.com/mindmates/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn feeds a scripted sequence of inbound frames and records
// everything written back.
type fakeConn struct {
	mu      sync.Mutex
	inbound [][]byte
	next    int
	written [][]byte
	closes  []int
	reasons []string
	closed  bool
}

func newFakeConn(frames ...interface{}) *fakeConn {
	c := &fakeConn{}
	for _, f := range frames {
		data, err := json.Marshal(f)
		if err != nil {
			panic(err)
		}
		c.inbound = append(c.inbound, data)
	}
	return c
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.next >= len(c.inbound) {
		return 0, nil, io.EOF
	}
	data := c.inbound[c.next]
	c.next++
	return websocket.TextMessage, data, nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.TextMessage {
		c.written = append(c.written, data)
	}
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.closes = append(c.closes, int(binary.BigEndian.Uint16(data[:2])))
		c.reasons = append(c.reasons, string(data[2:]))
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(limit int64)           {}
func (c *fakeConn) SetPongHandler(h func(string) error) {}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) closeCodes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.closes...)
}

func (c *fakeConn) closeReasons() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.reasons...)
}

func (c *fakeConn) writtenEvents(t *testing.T) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var events []map[string]interface{}
	for _, data := range c.written {
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &event))
		events = append(events, event)
	}
	return events
}

type fakeTokens struct {
	users map[string]uint
}

func (f *fakeTokens) Validate(ctx context.Context, token string) (uint, error) {
	id, ok := f.users[token]
	if !ok {
		return 0, apperrors.Unauthorized("invalid token")
	}
	return id, nil
}

type fakeFiles struct {
	uploads int
}

func (f *fakeFiles) Upload(ctx context.Context, data []byte, filename string) (string, error) {
	f.uploads++
	return "https://files.example/" + filename, nil
}

type fakeChatStore struct {
	mu           sync.Mutex
	users        map[uint]*models.User
	conversation *models.Conversation
	created      []*models.Message
	editErr      error
	markedRead   []uint
	likeAction   string
	likeCount    int
}

func (f *fakeChatStore) GetUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeChatStore) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	if f.conversation == nil || f.conversation.ID != id {
		return nil, apperrors.NotFound("conversation not found")
	}
	return f.conversation, nil
}

func (f *fakeChatStore) CreateMessage(ctx context.Context, message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	message.ID = uint(len(f.created) + 1)
	message.CreatedAt = time.Now()
	f.created = append(f.created, message)
	return nil
}

func (f *fakeChatStore) MarkRead(ctx context.Context, messageID, conversationID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedRead = append(f.markedRead, messageID)
	return true, nil
}

func (f *fakeChatStore) EditMessage(ctx context.Context, messageID, conversationID, senderID uint, newContent string) (*models.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	return &models.Message{ID: messageID, ConversationID: conversationID, SenderID: senderID, Content: newContent, IsEdited: true}, nil
}

func (f *fakeChatStore) SoftDeleteMessage(ctx context.Context, messageID, conversationID, senderID uint) error {
	return nil
}

func (f *fakeChatStore) ToggleLike(ctx context.Context, messageID, conversationID, userID uint) (string, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likeAction == "liked" {
		f.likeAction = "unliked"
		f.likeCount--
	} else {
		f.likeAction = "liked"
		f.likeCount++
	}
	return f.likeAction, f.likeCount, nil
}

type fakeGroupStore struct {
	members map[uint]bool
}

func (f *fakeGroupStore) IsMember(ctx context.Context, communityID, userID uint) (bool, error) {
	return f.members[userID], nil
}

func (f *fakeGroupStore) CreateCommunityMessage(ctx context.Context, message *models.CommunityMessage) error {
	message.ID = 1
	message.CreatedAt = time.Now()
	return nil
}

func (f *fakeGroupStore) EditCommunityMessage(ctx context.Context, messageID, communityID, senderID uint, newContent string) (*models.CommunityMessage, error) {
	return &models.CommunityMessage{ID: messageID}, nil
}

func (f *fakeGroupStore) SoftDeleteCommunityMessage(ctx context.Context, messageID, communityID, senderID uint) error {
	return nil
}

func (f *fakeGroupStore) ToggleCommunityLike(ctx context.Context, messageID, communityID, userID uint) (string, int, error) {
	return "liked", 1, nil
}

func testGateway(cfg Config) (*Gateway, *Hub, *fakeChatStore, *fakeGroupStore, *fakeFiles) {
	hub := NewHub()
	chat := &fakeChatStore{
		users: map[uint]*models.User{
			1: {ID: 1, Username: "alice"},
			2: {ID: 2, Username: "bob"},
		},
		conversation: &models.Conversation{
			ID:          42,
			InitiatorID: 1,
			ReceiverID:  2,
			Initiator:   models.User{ID: 1, Username: "alice"},
			Receiver:    models.User{ID: 2, Username: "bob"},
		},
	}
	group := &fakeGroupStore{members: map[uint]bool{1: true}}
	files := &fakeFiles{}
	tokens := &fakeTokens{users: map[string]uint{"alice-token": 1, "bob-token": 2}}
	g := NewGateway(hub, tokens, files, chat, group, cfg)
	return g, hub, chat, group, files
}

func authFrame(token string) Frame {
	return Frame{Type: FrameAuth, Token: token}
}

func TestGatewayRejectsNonAuthFirstFrame(t *testing.T) {
	g, hub, _, _, _ := testGateway(Config{})
	conn := newFakeConn(Frame{Type: FrameChatMessage, Message: "hi"})

	g.HandleConversation(conn, 42)

	assert.Contains(t, conn.closeCodes(), CloseBadFrame)
	assert.True(t, conn.isClosed())
	assert.Equal(t, 0, hub.RoomSize(RoomKeyConversation(42)))
}

func TestGatewayClosesWhenNoAuthFrameArrives(t *testing.T) {
	g, hub, _, _, _ := testGateway(Config{})
	// No scripted frames: the read fails immediately, standing in for a
	// deadline expiry or an early disconnect.
	conn := newFakeConn()

	g.HandleConversation(conn, 42)

	require.Equal(t, []int{CloseAuthFailed}, conn.closeCodes())
	assert.Equal(t, "auth frame not received", conn.closeReasons()[0])
	assert.Equal(t, 0, hub.RoomSize(RoomKeyConversation(42)))
}

func TestGatewayRejectsMalformedFirstFrame(t *testing.T) {
	g, _, _, _, _ := testGateway(Config{})
	conn := &fakeConn{inbound: [][]byte{[]byte("{not json")}}

	g.HandleConversation(conn, 42)

	assert.Contains(t, conn.closeCodes(), CloseBadFrame)
}

func TestGatewayRejectsInvalidToken(t *testing.T) {
	g, hub, _, _, _ := testGateway(Config{})
	conn := newFakeConn(authFrame("bogus"))

	g.HandleConversation(conn, 42)

	assert.Contains(t, conn.closeCodes(), CloseAuthFailed)
	assert.Equal(t, 0, hub.RoomSize(RoomKeyConversation(42)))
}

func TestGatewayRejectsNonParticipant(t *testing.T) {
	g, hub, chat, _, _ := testGateway(Config{})
	chat.users[3] = &models.User{ID: 3, Username: "mallory"}
	tokens := g.tokens.(*fakeTokens)
	tokens.users["mallory-token"] = 3

	conn := newFakeConn(authFrame("mallory-token"))
	g.HandleConversation(conn, 42)

	assert.Contains(t, conn.closeCodes(), CloseForbidden)
	assert.Equal(t, 0, hub.RoomSize(RoomKeyConversation(42)))
}

func TestGatewayRejectsNonMemberCommunity(t *testing.T) {
	g, hub, _, _, _ := testGateway(Config{})
	conn := newFakeConn(authFrame("bob-token"))

	g.HandleCommunity(conn, 9)

	assert.Contains(t, conn.closeCodes(), CloseForbidden)
	assert.Equal(t, 0, hub.RoomSize(RoomKeyCommunity(9)))
}

// run drives a full session and waits for the write pump to finish so the
// fake conn's written slice is stable.
func run(t *testing.T, g *Gateway, conn *fakeConn, conversationID uint) {
	t.Helper()
	g.HandleConversation(conn, conversationID)
	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)
}

func TestGatewayBroadcastsChatMessageToRoom(t *testing.T) {
	g, hub, chat, _, _ := testGateway(Config{})

	listener := NewClient(nil, 2, "bob")
	hub.Join(RoomKeyConversation(42), listener)

	conn := newFakeConn(authFrame("alice-token"), Frame{Type: FrameChatMessage, Message: "  hello  "})
	run(t, g, conn, 42)

	require.Len(t, chat.created, 1)
	assert.Equal(t, "hello", chat.created[0].Content)
	assert.Equal(t, uint(1), chat.created[0].SenderID)
	assert.Equal(t, uint(42), chat.created[0].ConversationID)

	// The sender hears its own message through the room broadcast.
	events := conn.writtenEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventChatMessage, events[0]["type"])
	assert.Equal(t, "hello", events[0]["content"])

	select {
	case data := <-listener.Send:
		var event map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, EventChatMessage, event["type"])
	default:
		t.Fatal("listener received no broadcast")
	}
}

func TestGatewayEmptyMessageReported(t *testing.T) {
	g, _, chat, _, _ := testGateway(Config{})

	conn := newFakeConn(authFrame("alice-token"), Frame{Type: FrameChatMessage, Message: "   "})
	run(t, g, conn, 42)

	assert.Empty(t, chat.created)
	events := conn.writtenEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0]["type"])
	assert.Equal(t, float64(400), events[0]["status"])
}

func TestGatewayEditByNonSenderNoBroadcast(t *testing.T) {
	g, hub, chat, _, _ := testGateway(Config{})
	chat.editErr = apperrors.Forbidden("only the sender can edit a message")

	listener := NewClient(nil, 2, "bob")
	hub.Join(RoomKeyConversation(42), listener)

	conn := newFakeConn(authFrame("alice-token"), Frame{Type: FrameEditMessage, MessageID: 5, NewContent: "changed"})
	run(t, g, conn, 42)

	events := conn.writtenEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0]["type"])
	assert.Equal(t, float64(403), events[0]["status"])

	select {
	case <-listener.Send:
		t.Fatal("room must not hear about a rejected edit")
	default:
	}
}

func TestGatewayLikeToggleInvolution(t *testing.T) {
	g, _, _, _, _ := testGateway(Config{})

	conn := newFakeConn(
		authFrame("alice-token"),
		Frame{Type: FrameLikeMessage, MessageID: 5},
		Frame{Type: FrameLikeMessage, MessageID: 5},
	)
	run(t, g, conn, 42)

	events := conn.writtenEvents(t)
	require.Len(t, events, 2)
	assert.Equal(t, "liked", events[0]["action"])
	assert.Equal(t, float64(1), events[0]["like_count"])
	assert.Equal(t, "unliked", events[1]["action"])
	assert.Equal(t, float64(0), events[1]["like_count"])
}

func TestGatewayMarkReadSilentByDefault(t *testing.T) {
	g, _, chat, _, _ := testGateway(Config{})

	conn := newFakeConn(authFrame("alice-token"), Frame{Type: FrameMarkRead, MessageID: 5})
	run(t, g, conn, 42)

	assert.Equal(t, []uint{5}, chat.markedRead)
	assert.Empty(t, conn.writtenEvents(t))
}

func TestGatewayMarkReadBroadcastWhenEnabled(t *testing.T) {
	g, _, _, _, _ := testGateway(Config{BroadcastReadReceipts: true})

	conn := newFakeConn(authFrame("alice-token"), Frame{Type: FrameMarkRead, MessageID: 5})
	run(t, g, conn, 42)

	events := conn.writtenEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventMessageRead, events[0]["type"])
}

func TestGatewayUnknownFrameReported(t *testing.T) {
	g, _, _, _, _ := testGateway(Config{})

	conn := newFakeConn(
		authFrame("alice-token"),
		Frame{Type: "typing_indicator"},
		Frame{Type: FrameDeleteMessage, MessageID: 3},
	)
	run(t, g, conn, 42)

	// The bad frame is reported, the connection survives and the next
	// frame still goes through.
	events := conn.writtenEvents(t)
	require.Len(t, events, 2)
	assert.Equal(t, EventError, events[0]["type"])
	assert.Equal(t, EventMessageDeleted, events[1]["type"])
}

func TestGatewayFileUploadRejectsDisallowedExtension(t *testing.T) {
	g, _, chat, _, files := testGateway(Config{})

	payload := base64.StdEncoding.EncodeToString([]byte("#!/bin/sh"))
	conn := newFakeConn(
		authFrame("alice-token"),
		Frame{Type: FrameFileUpload, FileData: payload, FileName: "script.sh"},
	)
	run(t, g, conn, 42)

	assert.Zero(t, files.uploads)
	assert.Empty(t, chat.created)
	events := conn.writtenEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventError, events[0]["type"])
	assert.Equal(t, float64(415), events[0]["status"])
}

func TestGatewayFileUploadPersistsAndBroadcasts(t *testing.T) {
	g, _, chat, _, files := testGateway(Config{})

	payload := base64.StdEncoding.EncodeToString([]byte("report body"))
	conn := newFakeConn(
		authFrame("alice-token"),
		Frame{Type: FrameFileUpload, FileData: payload, FileName: "report.pdf", Content: "see attached"},
	)
	run(t, g, conn, 42)

	assert.Equal(t, 1, files.uploads)
	require.Len(t, chat.created, 1)
	require.NotNil(t, chat.created[0].FileURL)
	assert.Equal(t, "https://files.example/report.pdf", *chat.created[0].FileURL)

	events := conn.writtenEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventChatMessage, events[0]["type"])
	assert.Equal(t, "see attached", events[0]["content"])
	assert.Equal(t, "https://files.example/report.pdf", events[0]["file_url"])
}

func TestGatewayLeavesRoomOnDisconnect(t *testing.T) {
	g, hub, _, _, _ := testGateway(Config{})

	conn := newFakeConn(authFrame("alice-token"), Frame{Type: FrameChatMessage, Message: "hi"})
	run(t, g, conn, 42)

	assert.Equal(t, 0, hub.RoomSize(RoomKeyConversation(42)))
	assert.Empty(t, hub.OnlineUsers(RoomKeyConversation(42)))
}

func TestGatewayCommunityMessageOmitsReceiver(t *testing.T) {
	g, _, _, _, _ := testGateway(Config{})

	conn := newFakeConn(authFrame("alice-token"), Frame{Type: FrameChatMessage, Message: "hello room"})
	g.HandleCommunity(conn, 9)
	require.Eventually(t, conn.isClosed, time.Second, 5*time.Millisecond)

	events := conn.writtenEvents(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventChatMessage, events[0]["type"])
	_, hasReceiver := events[0]["receiver"]
	assert.False(t, hasReceiver)
}
