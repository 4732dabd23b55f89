package websocket

import (
	"github.com/mindmates/backend/apperrors"
)

// Close codes sent when a connection is terminated by the server. The 4xxx
// range mirrors the HTTP status taxonomy (4013 ↔ 413, 4015 ↔ 415).
const (
	CloseServerError      = 4000
	CloseAuthFailed       = 4001
	CloseBadFrame         = 4002
	CloseForbidden        = 4003
	ClosePayloadTooLarge  = 4013
	CloseUnsupportedMedia = 4015
)

func CloseCodeFor(code apperrors.Code) int {
	switch code {
	case apperrors.CodeUnauthenticated:
		return CloseAuthFailed
	case apperrors.CodePermissionDenied:
		return CloseForbidden
	case apperrors.CodeBadFrame, apperrors.CodeInvalidArgument:
		return CloseBadFrame
	case apperrors.CodePayloadTooLarge:
		return ClosePayloadTooLarge
	case apperrors.CodeUnsupportedMedia:
		return CloseUnsupportedMedia
	default:
		return CloseServerError
	}
}
