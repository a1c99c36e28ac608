package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClaims struct{ id uuid.UUID }

func (c *fakeClaims) GetUserID() uuid.UUID { return c.id }

type fakeValidator struct {
	userID uuid.UUID
	err    error
	token  string
}

func (v *fakeValidator) ValidateToken(tokenString string) (UserIDGetter, error) {
	v.token = tokenString
	if v.err != nil {
		return nil, v.err
	}
	return &fakeClaims{id: v.userID}, nil
}

func newAuthedRequest(header string) (*httptest.ResponseRecorder, *http.Request) {
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	return httptest.NewRecorder(), req
}

func TestAuthStoresUserID(t *testing.T) {
	userID := uuid.New()
	validator := &fakeValidator{userID: userID}

	var got uuid.UUID
	handler := Auth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := GetUserID(r)
		require.NoError(t, err)
		got = id
	}))

	rec, req := newAuthedRequest("Bearer some-token")
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, got)
	assert.Equal(t, "some-token", validator.token)
}

func TestAuthRejectsBadHeaders(t *testing.T) {
	validator := &fakeValidator{userID: uuid.New()}
	handler := Auth(validator)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer  ", "token-without-scheme"} {
		rec, req := newAuthedRequest(header)
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	validator := &fakeValidator{err: errors.New("expired")}
	handler := Auth(validator)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec, req := newAuthedRequest("Bearer expired-token")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthAcceptsLowercaseScheme(t *testing.T) {
	validator := &fakeValidator{userID: uuid.New()}
	handler := Auth(validator)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	rec, req := newAuthedRequest("bearer some-token")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetUserIDMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := GetUserID(req)
	assert.Error(t, err)
}
