package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/mindmates/backend/apperrors"
	"github.com/mindmates/backend/models"
	"github.com/mindmates/backend/services"
)

// defaultAuthTimeout bounds how long an unauthenticated socket may sit idle
// before the server closes it.
const defaultAuthTimeout = 30 * time.Second

// TokenValidator checks a bearer token and yields the user id it belongs to.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (uint, error)
}

// FileStore uploads attachment bytes and returns a public URL.
type FileStore interface {
	Upload(ctx context.Context, data []byte, filename string) (string, error)
}

// ChatStore is the slice of the message store the gateway drives for direct
// conversations.
type ChatStore interface {
	GetUser(ctx context.Context, id uint) (*models.User, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	CreateMessage(ctx context.Context, message *models.Message) error
	MarkRead(ctx context.Context, messageID, conversationID uint) (bool, error)
	EditMessage(ctx context.Context, messageID, conversationID, senderID uint, newContent string) (*models.Message, error)
	SoftDeleteMessage(ctx context.Context, messageID, conversationID, senderID uint) error
	ToggleLike(ctx context.Context, messageID, conversationID, userID uint) (string, int, error)
}

// GroupStore is the slice of the community store the gateway drives for
// community rooms.
type GroupStore interface {
	IsMember(ctx context.Context, communityID, userID uint) (bool, error)
	CreateCommunityMessage(ctx context.Context, message *models.CommunityMessage) error
	EditCommunityMessage(ctx context.Context, messageID, communityID, senderID uint, newContent string) (*models.CommunityMessage, error)
	SoftDeleteCommunityMessage(ctx context.Context, messageID, communityID, senderID uint) error
	ToggleCommunityLike(ctx context.Context, messageID, communityID, userID uint) (string, int, error)
}

// Config tunes gateway behavior.
type Config struct {
	// AuthTimeout is how long a fresh connection has to present its auth
	// frame. Zero means defaultAuthTimeout.
	AuthTimeout time.Duration

	// BroadcastReadReceipts makes mark_read emit a message_read event to
	// the room instead of updating silently.
	BroadcastReadReceipts bool
}

// Gateway owns the websocket lifecycle: auth handshake, membership check,
// room registration and the per-frame dispatch loop.
type Gateway struct {
	hub         *Hub
	tokens      TokenValidator
	files       FileStore
	messages    ChatStore
	communities GroupStore
	cfg         Config
}

func NewGateway(hub *Hub, tokens TokenValidator, files FileStore, messages ChatStore, communities GroupStore, cfg Config) *Gateway {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	return &Gateway{
		hub:         hub,
		tokens:      tokens,
		files:       files,
		messages:    messages,
		communities: communities,
		cfg:         cfg,
	}
}

// HandleConversation runs one direct-conversation connection to completion.
// It returns when the socket closes.
func (g *Gateway) HandleConversation(conn Conn, conversationID uint) {
	client, ok := g.authenticate(conn)
	if !ok {
		return
	}

	ctx := context.Background()
	conversation, err := g.messages.GetConversation(ctx, conversationID)
	if err != nil || !conversation.HasParticipant(client.UserID) {
		closeConn(conn, CloseForbidden, "not a participant of this conversation")
		return
	}

	s := &session{
		gateway:        g,
		client:         client,
		roomKey:        RoomKeyConversation(conversationID),
		conversationID: conversationID,
		conversation:   conversation,
	}
	g.serve(s)
}

// HandleCommunity runs one community-room connection to completion.
func (g *Gateway) HandleCommunity(conn Conn, communityID uint) {
	client, ok := g.authenticate(conn)
	if !ok {
		return
	}

	ctx := context.Background()
	member, err := g.communities.IsMember(ctx, communityID, client.UserID)
	if err != nil || !member {
		closeConn(conn, CloseForbidden, "not a member of this community")
		return
	}

	s := &session{
		gateway:     g,
		client:      client,
		roomKey:     RoomKeyCommunity(communityID),
		communityID: communityID,
	}
	g.serve(s)
}

// authenticate runs the first-frame handshake. Until it succeeds the
// connection belongs to no room and receives no events.
func (g *Gateway) authenticate(conn Conn) (*Client, bool) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(g.cfg.AuthTimeout))

	// Covers the deadline expiring as well as an early disconnect or a
	// tripped read limit.
	_, raw, err := conn.ReadMessage()
	if err != nil {
		closeConn(conn, CloseAuthFailed, "auth frame not received")
		return nil, false
	}

	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		closeConn(conn, CloseBadFrame, "malformed frame")
		return nil, false
	}
	if frame.Type != FrameAuth || frame.Token == "" {
		closeConn(conn, CloseBadFrame, "first frame must be auth")
		return nil, false
	}

	ctx := context.Background()
	userID, err := g.tokens.Validate(ctx, frame.Token)
	if err != nil {
		closeConn(conn, CloseAuthFailed, "invalid token")
		return nil, false
	}

	user, err := g.messages.GetUser(ctx, userID)
	if err != nil {
		closeConn(conn, CloseAuthFailed, "unknown user")
		return nil, false
	}

	return NewClient(conn, user.ID, user.Username), true
}

// session is one authenticated connection bound to a room. Exactly one of
// conversationID/communityID is set.
type session struct {
	gateway        *Gateway
	client         *Client
	roomKey        string
	conversationID uint
	communityID    uint
	conversation   *models.Conversation
}

func (s *session) direct() bool { return s.conversationID != 0 }

// serve registers the client and pumps frames until the socket dies. Frame
// handler failures are reported on the socket and the loop continues; only a
// failed message persistence tears the connection down.
func (g *Gateway) serve(s *session) {
	client := s.client
	conn := client.Conn

	g.hub.Join(s.roomKey, client)
	go client.WritePump()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("🔥 Panic in websocket session for user %d: %v", client.UserID, r)
			closeConn(conn, CloseServerError, "internal error")
		}
		g.hub.Leave(s.roomKey, client)
		close(client.Send)
	}()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			client.SendError(apperrors.New(apperrors.CodeBadFrame, "malformed frame"))
			continue
		}

		if err := s.dispatch(frame); err != nil {
			var fatal fatalError
			if errors.As(err, &fatal) {
				closeConn(conn, CloseCodeFor(apperrors.CodeOf(fatal.err)), fatal.err.Error())
				return
			}
			client.SendError(err)
		}
	}
}

// fatalError marks a handler failure that must terminate the connection.
type fatalError struct{ err error }

func (e fatalError) Error() string { return e.err.Error() }
func (e fatalError) Unwrap() error { return e.err }

func (s *session) dispatch(frame Frame) error {
	ctx := context.Background()

	switch frame.Type {
	case FrameChatMessage:
		return s.handleChatMessage(ctx, frame)
	case FrameMarkRead:
		return s.handleMarkRead(ctx, frame)
	case FrameEditMessage:
		return s.handleEdit(ctx, frame)
	case FrameDeleteMessage:
		return s.handleDelete(ctx, frame)
	case FrameFileUpload:
		return s.handleFileUpload(ctx, frame)
	case FrameLikeMessage:
		return s.handleLike(ctx, frame)
	case FrameAuth:
		// Already authenticated; a repeat auth frame is harmless.
		return nil
	default:
		return apperrors.New(apperrors.CodeBadFrame, "unknown frame type: "+frame.Type)
	}
}

// handleChatMessage persists the message and broadcasts it to the room,
// sender included. A persistence failure is fatal to the connection.
func (s *session) handleChatMessage(ctx context.Context, frame Frame) error {
	content := strings.TrimSpace(frame.Message)
	if content == "" && frame.FileURL == "" {
		return apperrors.InvalidArg("message cannot be empty")
	}

	var fileURL, fileName *string
	if frame.FileURL != "" {
		fileURL = &frame.FileURL
	}
	if frame.FileName != "" {
		fileName = &frame.FileName
	}

	g := s.gateway
	sender := &models.User{ID: s.client.UserID, Username: s.client.Username}

	if s.direct() {
		message := &models.Message{
			ConversationID: s.conversationID,
			SenderID:       s.client.UserID,
			Content:        content,
			FileURL:        fileURL,
			FileName:       fileName,
		}
		if err := g.messages.CreateMessage(ctx, message); err != nil {
			log.Printf("Failed to persist message for conversation %d: %v", s.conversationID, err)
			return fatalError{err: err}
		}
		receiver := s.conversation.OtherParticipant(s.client.UserID)
		g.hub.Broadcast(s.roomKey, NewDirectMessageEvent(message, sender, receiver))
		return nil
	}

	message := &models.CommunityMessage{
		CommunityID: s.communityID,
		SenderID:    s.client.UserID,
		Content:     content,
		FileURL:     fileURL,
		FileName:    fileName,
	}
	if err := g.communities.CreateCommunityMessage(ctx, message); err != nil {
		log.Printf("Failed to persist message for community %d: %v", s.communityID, err)
		return fatalError{err: err}
	}
	g.hub.Broadcast(s.roomKey, NewCommunityMessageEvent(message, sender))
	return nil
}

// handleMarkRead updates the read flag. By default this is silent; the
// room only hears about it when read receipts are enabled.
func (s *session) handleMarkRead(ctx context.Context, frame Frame) error {
	if !s.direct() {
		return apperrors.InvalidArg("mark_read is only valid in a conversation")
	}
	if frame.MessageID == 0 {
		return apperrors.InvalidArg("message_id is required")
	}

	changed, err := s.gateway.messages.MarkRead(ctx, frame.MessageID, s.conversationID)
	if err != nil {
		return err
	}
	if changed && s.gateway.cfg.BroadcastReadReceipts {
		s.gateway.hub.Broadcast(s.roomKey, NewMessageReadEvent(frame.MessageID))
	}
	return nil
}

func (s *session) handleEdit(ctx context.Context, frame Frame) error {
	if frame.MessageID == 0 {
		return apperrors.InvalidArg("message_id is required")
	}
	newContent := strings.TrimSpace(frame.NewContent)
	if newContent == "" {
		return apperrors.InvalidArg("new_content cannot be empty")
	}

	g := s.gateway
	if s.direct() {
		if _, err := g.messages.EditMessage(ctx, frame.MessageID, s.conversationID, s.client.UserID, newContent); err != nil {
			return err
		}
	} else {
		if _, err := g.communities.EditCommunityMessage(ctx, frame.MessageID, s.communityID, s.client.UserID, newContent); err != nil {
			return err
		}
	}

	g.hub.Broadcast(s.roomKey, NewMessageEditedEvent(frame.MessageID, newContent, time.Now()))
	return nil
}

func (s *session) handleDelete(ctx context.Context, frame Frame) error {
	if frame.MessageID == 0 {
		return apperrors.InvalidArg("message_id is required")
	}

	g := s.gateway
	var err error
	if s.direct() {
		err = g.messages.SoftDeleteMessage(ctx, frame.MessageID, s.conversationID, s.client.UserID)
	} else {
		err = g.communities.SoftDeleteCommunityMessage(ctx, frame.MessageID, s.communityID, s.client.UserID)
	}
	if err != nil {
		return err
	}

	g.hub.Broadcast(s.roomKey, NewMessageDeletedEvent(frame.MessageID))
	return nil
}

// handleFileUpload validates the attachment, pushes inline payloads to
// storage and persists a message carrying the resulting URL. A remote
// file_url skips the upload but still passes the extension check.
func (s *session) handleFileUpload(ctx context.Context, frame Frame) error {
	if frame.FileName == "" || (frame.FileData == "" && frame.FileURL == "") {
		return apperrors.InvalidArg("file_name and one of file_data or file_url are required")
	}

	filename := services.SanitizeFilename(frame.FileName)
	fileURL := frame.FileURL

	if frame.FileData != "" {
		// Data-URL prefixes ("data:image/png;base64,...") are tolerated.
		payload := frame.FileData
		if idx := strings.Index(payload, ","); idx != -1 && strings.HasPrefix(payload, "data:") {
			payload = payload[idx+1:]
		}

		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return apperrors.InvalidArg("file_data is not valid base64")
		}
		if err := services.ValidateFile(filename, len(data)); err != nil {
			return err
		}

		fileURL, err = s.gateway.files.Upload(ctx, data, filename)
		if err != nil {
			log.Printf("File upload failed for user %d: %v", s.client.UserID, err)
			return apperrors.Wrap(apperrors.CodeInternal, "file upload failed", err)
		}
	} else {
		if err := services.ValidateFile(filename, 0); err != nil {
			return err
		}
	}

	caption := strings.TrimSpace(frame.Content)
	if caption == "" {
		caption = filename
	}

	persistFrame := Frame{
		Type:     FrameChatMessage,
		Message:  caption,
		FileURL:  fileURL,
		FileName: filename,
	}
	return s.handleChatMessage(ctx, persistFrame)
}

func (s *session) handleLike(ctx context.Context, frame Frame) error {
	if frame.MessageID == 0 {
		return apperrors.InvalidArg("message_id is required")
	}

	g := s.gateway
	var action string
	var likeCount int
	var err error
	if s.direct() {
		action, likeCount, err = g.messages.ToggleLike(ctx, frame.MessageID, s.conversationID, s.client.UserID)
	} else {
		action, likeCount, err = g.communities.ToggleCommunityLike(ctx, frame.MessageID, s.communityID, s.client.UserID)
	}
	if err != nil {
		return err
	}

	g.hub.Broadcast(s.roomKey, NewMessageLikedEvent(frame.MessageID, s.client.UserID, action, likeCount))
	return nil
}
