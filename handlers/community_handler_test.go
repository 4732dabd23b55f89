package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/mindmates/backend/store"
	"github.com/mindmates/backend/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newCommunityTestApp wires the community handlers against a sqlmock-backed
// store and a locals-injecting stand-in for the JWT middleware.
func newCommunityTestApp(t *testing.T, userID uint) (*fiber.App, sqlmock.Sqlmock, *websocket.Hub) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	h := websocket.NewHub()
	Setup(h, nil, nil, nil, store.NewMessageStore(gdb), store.NewCommunityStore(gdb))

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id":  float64(userID),
			"username": "mallory",
		})
		c.Locals("user", token)
		return c.Next()
	})
	app.Get("/api/v1/communities/:id/messages", GetCommunityMessages)
	app.Post("/api/v1/communities/:id/messages", PostCommunityMessage)
	app.Post("/api/v1/communities/:id/messages/:messageId/like", LikeCommunityMessage)

	return app, mock, h
}

func expectMembership(mock sqlmock.Sqlmock, communityID, userID uint, count int) {
	mock.ExpectQuery(`SELECT count\(\*\) FROM "community_members" WHERE community_id = \$1 AND user_id = \$2`).
		WithArgs(communityID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))
}

func TestPostCommunityMessageRejectsNonMember(t *testing.T) {
	app, mock, h := newCommunityTestApp(t, 3)
	expectMembership(mock, 7, 3, 0)

	listener := websocket.NewClient(nil, 2, "bob")
	h.Join(websocket.RoomKeyCommunity(7), listener)

	req := httptest.NewRequest("POST", "/api/v1/communities/7/messages",
		strings.NewReader(`{"content":"i am not a member"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	// No INSERT was expected: persisting anything would have failed the
	// mock, and the room must not hear from an outsider.
	assert.NoError(t, mock.ExpectationsWereMet())
	select {
	case <-listener.Send:
		t.Fatal("room received a broadcast from a non-member")
	default:
	}
}

func TestGetCommunityMessagesRejectsNonMember(t *testing.T) {
	app, mock, _ := newCommunityTestApp(t, 3)
	expectMembership(mock, 7, 3, 0)

	req := httptest.NewRequest("GET", "/api/v1/communities/7/messages", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeCommunityMessageRejectsNonMember(t *testing.T) {
	app, mock, _ := newCommunityTestApp(t, 3)
	expectMembership(mock, 7, 3, 0)

	req := httptest.NewRequest("POST", "/api/v1/communities/7/messages/5/like", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostCommunityMessagePersistsAndBroadcastsForMember(t *testing.T) {
	app, mock, h := newCommunityTestApp(t, 3)
	expectMembership(mock, 7, 3, 1)
	mock.ExpectQuery(`INSERT INTO "community_messages"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT (.+) FROM "users" WHERE id = \$1`).
		WithArgs(uint(3), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username"}).AddRow(3, "mallory"))

	listener := websocket.NewClient(nil, 2, "bob")
	h.Join(websocket.RoomKeyCommunity(7), listener)

	req := httptest.NewRequest("POST", "/api/v1/communities/7/messages",
		strings.NewReader(`{"content":"hello room"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.NoError(t, mock.ExpectationsWereMet())

	select {
	case data := <-listener.Send:
		assert.Contains(t, string(data), `"chat_message"`)
		assert.Contains(t, string(data), "hello room")
	default:
		t.Fatal("room did not receive the member's message")
	}
}
