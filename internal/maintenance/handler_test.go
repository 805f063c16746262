package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CherryKingOne/WeiMeng/internal/auth"
	"github.com/CherryKingOne/WeiMeng/internal/observability"
)

type stubActivator struct {
	accounts map[string]*auth.Account
	err      error
	calls    int
}

func (s *stubActivator) SetActive(_ context.Context, accountID string, active bool) (*auth.Account, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, auth.ErrAccountNotFound
	}
	account.SetActive(active, time.Now())
	return account, nil
}

func newTestServer(t *testing.T, activator AccountActivator, secret string) *http.ServeMux {
	t.Helper()
	h := NewAccountStatusHandler(activator, observability.NewLoggerTo(&bytes.Buffer{}), secret)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /internal/accounts/{id}/activate", h.Activate)
	mux.HandleFunc("POST /internal/accounts/{id}/deactivate", h.Deactivate)
	return mux
}

func call(mux http.Handler, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAccountStatusHandler(t *testing.T) {
	account, err := auth.NewAccount("alice@example.com", nil, "digest", time.Now())
	require.NoError(t, err)
	activator := &stubActivator{accounts: map[string]*auth.Account{account.ID: account}}
	mux := newTestServer(t, activator, "admin-secret")

	rec := call(mux, "/internal/accounts/"+account.ID+"/deactivate", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(mux, "/internal/accounts/"+account.ID+"/deactivate", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, activator.calls)

	rec = call(mux, "/internal/accounts/"+account.ID+"/deactivate", "admin-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["is_active"])
	assert.False(t, account.IsActive)

	rec = call(mux, "/internal/accounts/"+account.ID+"/activate", "admin-secret")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, account.IsActive)

	rec = call(mux, "/internal/accounts/missing/activate", "admin-secret")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountStatusHandlerDisabledWithoutSecret(t *testing.T) {
	activator := &stubActivator{}
	mux := newTestServer(t, activator, "  ")

	rec := call(mux, "/internal/accounts/any/activate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, activator.calls)
}

func TestAccountStatusHandlerStoreFailure(t *testing.T) {
	activator := &stubActivator{err: errors.New("db down")}
	mux := newTestServer(t, activator, "admin-secret")

	rec := call(mux, "/internal/accounts/any/activate", "admin-secret")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
