package pipeline

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := E(KindDecode, "images.decode", errors.New("kaputt"))
	assert.Equal(t, KindDecode, KindOf(base))

	// Die Klasse bleibt über weiteres Wrapping erhalten.
	wrapped := fmt.Errorf("artikel 123: %w", base)
	assert.Equal(t, KindDecode, KindOf(wrapped))

	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("ursache")
	err := E(KindTransient, "pubmed.search", cause)
	assert.ErrorIs(t, err, cause)
}

func TestKindFromStatus(t *testing.T) {
	assert.Equal(t, KindTransient, KindFromStatus(http.StatusInternalServerError))
	assert.Equal(t, KindTransient, KindFromStatus(http.StatusBadGateway))
	assert.Equal(t, KindTransient, KindFromStatus(http.StatusTooManyRequests))
	assert.Equal(t, KindNotFound, KindFromStatus(http.StatusNotFound))
	assert.Equal(t, KindNotFound, KindFromStatus(http.StatusForbidden))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "transient", KindTransient.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "decode", KindDecode.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
