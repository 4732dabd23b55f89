package apperrors

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCodeOfSurvivesWrapping(t *testing.T) {
	err := NotFound("message not found")
	wrapped := errors.Wrap(err, "store.GetMessage")

	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidArgument:  400,
		CodeBadFrame:         400,
		CodeUnauthenticated:  401,
		CodePermissionDenied: 403,
		CodeNotFound:         404,
		CodeAlreadyExists:    409,
		CodePayloadTooLarge:  413,
		CodeUnsupportedMedia: 415,
		CodeInternal:         500,
		CodeUnknown:          500,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), "code %s", code)
	}
}
