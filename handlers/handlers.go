package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/mindmates/backend/services"
	"github.com/mindmates/backend/store"
	"github.com/mindmates/backend/websocket"
)

var validate = validator.New()

// Package-level collaborators, wired once from main before routes are
// registered.
var (
	hub         *websocket.Hub
	gateway     *websocket.Gateway
	tokens      *services.TokenService
	files       *services.FileService
	messages    *store.MessageStore
	communities *store.CommunityStore
)

// Setup injects the shared collaborators used by the handler functions.
func Setup(h *websocket.Hub, g *websocket.Gateway, t *services.TokenService, f *services.FileService, m *store.MessageStore, c *store.CommunityStore) {
	hub = h
	gateway = g
	tokens = t
	files = f
	messages = m
	communities = c
}
