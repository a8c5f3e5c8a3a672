package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessageIncludesWrappedCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("upsert", cause)
	assert.Contains(t, err.Error(), "STORAGE")
	assert.Contains(t, err.Error(), "disk full")
}

func TestUnwrapReturnsWrappedError(t *testing.T) {
	cause := errors.New("timeout dialing")
	err := TransientGateway("fetch", cause)
	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestWithDetailAndWithError(t *testing.T) {
	err := InvalidInput("subject", "must not be empty").WithDetail("extra", 42)
	assert.Equal(t, "subject", err.Details["field"])
	assert.Equal(t, 42, err.Details["extra"])

	cause := errors.New("boom")
	err.WithError(cause)
	assert.Equal(t, cause, err.Err)
}

func TestIsFatalGatewayDistinguishesKinds(t *testing.T) {
	fatal := apperrFatalForTest()
	transient := TransientGateway("list", errors.New("retry me"))

	assert.True(t, IsFatalGateway(fatal))
	assert.False(t, IsFatalGateway(transient))
	assert.False(t, IsFatalGateway(errors.New("plain error")))
}

func apperrFatalForTest() error {
	return FatalGateway("auth", errors.New("bad credentials"))
}

func TestNotFoundHTTPStatus(t *testing.T) {
	err := NotFound("message")
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	assert.Equal(t, "message not found", err.Message)
}

func TestAsAppErrorWrapsPlainErrors(t *testing.T) {
	plain := errors.New("unexpected")
	wrapped := AsAppError(plain)
	assert.Equal(t, CodeInternalError, wrapped.Code)
	assert.Equal(t, plain, wrapped.Err)

	appErr := BadRequest("bad input")
	assert.Same(t, appErr, AsAppError(appErr))
}

func TestGetHTTPStatusFallsBackToInternalServerError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("plain")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(AlreadyExists("message")))
}

func TestIsAppError(t *testing.T) {
	assert.True(t, IsAppError(BadRequest("x")))
	assert.False(t, IsAppError(errors.New("plain")))
}
