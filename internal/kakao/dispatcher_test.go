package kakao_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"academy-go/internal/kakao"
	"academy-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTokenStore struct {
	mu            sync.Mutex
	updated       int
	cleared       int
	lastAccess    string
	lastRefresh   string
	lastClearedID int
}

func (s *fakeTokenStore) UpdateTokens(ctx context.Context, userID int, accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated++
	s.lastAccess = accessToken
	s.lastRefresh = refreshToken
	return nil
}

func (s *fakeTokenStore) ClearTokens(ctx context.Context, userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	s.lastClearedID = userID
	return nil
}

// kakaoStub fakes the token and message endpoints behind one server.
type kakaoStub struct {
	mu           sync.Mutex
	sendCalls    int
	refreshCalls int

	sendHandler    func(call int, w http.ResponseWriter)
	refreshHandler func(call int, w http.ResponseWriter)
}

func (k *kakaoStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		k.mu.Lock()
		k.refreshCalls++
		call := k.refreshCalls
		k.mu.Unlock()
		if k.refreshHandler != nil {
			k.refreshHandler(call, w)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
		})
	})
	mux.HandleFunc("/send", func(w http.ResponseWriter, r *http.Request) {
		k.mu.Lock()
		k.sendCalls++
		call := k.sendCalls
		k.mu.Unlock()
		if k.sendHandler != nil {
			k.sendHandler(call, w)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestDispatcher(t *testing.T, stub *kakaoStub, store *fakeTokenStore) *kakao.Dispatcher {
	t.Helper()
	srv := stub.server(t)
	client := kakao.NewClient("client-id", "client-secret")
	client.TokenURL = srv.URL + "/oauth/token"
	client.SendURL = srv.URL + "/send"

	d := kakao.NewDispatcher(client, store, "admin-key", false, true, zap.NewNop())
	d.SetRetryPolicy(3, 0)
	return d
}

func linkedUser() models.User {
	return models.User{
		ID:                7,
		Name:              "Kim Teacher",
		IsKakaoLinked:     true,
		KakaoAccessToken:  sql.NullString{String: "stored-access", Valid: true},
		KakaoRefreshToken: sql.NullString{String: "stored-refresh", Valid: true},
	}
}

func TestSendDelivers(t *testing.T) {
	stub := &kakaoStub{}
	d := newTestDispatcher(t, stub, &fakeTokenStore{})

	ok := d.Send(linkedUser(), "tpl-1", map[string]string{"task_title": "grade exams"})

	assert.True(t, ok)
	assert.Equal(t, 1, stub.sendCalls)
	assert.Equal(t, 0, stub.refreshCalls)
}

func TestSendSkipsWithoutTemplateID(t *testing.T) {
	stub := &kakaoStub{}
	d := newTestDispatcher(t, stub, &fakeTokenStore{})

	ok := d.Send(linkedUser(), "", nil)

	assert.False(t, ok)
	assert.Equal(t, 0, stub.sendCalls)
}

func TestSendSkipsUnlinkedUser(t *testing.T) {
	stub := &kakaoStub{}
	d := newTestDispatcher(t, stub, &fakeTokenStore{})

	user := linkedUser()
	user.IsKakaoLinked = false
	ok := d.Send(user, "tpl-1", nil)

	assert.False(t, ok)
	assert.Equal(t, 0, stub.sendCalls)
	assert.Equal(t, 0, stub.refreshCalls)
}

func TestSendTestModeSimulates(t *testing.T) {
	stub := &kakaoStub{}
	srv := stub.server(t)
	client := kakao.NewClient("client-id", "client-secret")
	client.TokenURL = srv.URL + "/oauth/token"
	client.SendURL = srv.URL + "/send"

	d := kakao.NewDispatcher(client, &fakeTokenStore{}, "admin-key", true, false, zap.NewNop())

	ok := d.Send(linkedUser(), "tpl-1", map[string]string{"k": "v"})

	assert.True(t, ok)
	assert.Equal(t, 0, stub.sendCalls)
}

func TestSendRequiresAdminKey(t *testing.T) {
	stub := &kakaoStub{}
	srv := stub.server(t)
	client := kakao.NewClient("client-id", "client-secret")
	client.SendURL = srv.URL + "/send"

	d := kakao.NewDispatcher(client, &fakeTokenStore{}, "", false, true, zap.NewNop())

	ok := d.Send(linkedUser(), "tpl-1", nil)

	assert.False(t, ok)
	assert.Equal(t, 0, stub.sendCalls)
}

func TestSendRetriesTransientFailures(t *testing.T) {
	stub := &kakaoStub{
		sendHandler: func(call int, w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(map[string]interface{}{"code": -1, "msg": "internal"})
		},
	}
	d := newTestDispatcher(t, stub, &fakeTokenStore{})

	ok := d.Send(linkedUser(), "tpl-1", nil)

	assert.False(t, ok)
	// initial attempt plus the three-retry budget
	assert.Equal(t, 4, stub.sendCalls)
	assert.Equal(t, 0, stub.refreshCalls)
}

func TestSendRecoversAfterTransientFailure(t *testing.T) {
	stub := &kakaoStub{
		sendHandler: func(call int, w http.ResponseWriter) {
			if call < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	}
	d := newTestDispatcher(t, stub, &fakeTokenStore{})

	ok := d.Send(linkedUser(), "tpl-1", nil)

	assert.True(t, ok)
	assert.Equal(t, 3, stub.sendCalls)
}

func TestSendRefreshesExpiredAccessToken(t *testing.T) {
	stub := &kakaoStub{
		sendHandler: func(call int, w http.ResponseWriter) {
			if call == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
		},
	}
	store := &fakeTokenStore{}
	d := newTestDispatcher(t, stub, store)

	ok := d.Send(linkedUser(), "tpl-1", nil)

	require.True(t, ok)
	assert.Equal(t, 2, stub.sendCalls)
	assert.Equal(t, 1, stub.refreshCalls)
	assert.Equal(t, 1, store.updated)
	assert.Equal(t, "fresh-access", store.lastAccess)
	assert.Equal(t, "fresh-refresh", store.lastRefresh)
}

func TestSendRefreshesMissingAccessToken(t *testing.T) {
	stub := &kakaoStub{}
	store := &fakeTokenStore{}
	d := newTestDispatcher(t, stub, store)

	user := linkedUser()
	user.KakaoAccessToken = sql.NullString{}
	ok := d.Send(user, "tpl-1", nil)

	require.True(t, ok)
	assert.Equal(t, 1, stub.refreshCalls)
	assert.Equal(t, 1, stub.sendCalls)
	assert.Equal(t, 1, store.updated)
}

func TestSendSingleAuthCycle(t *testing.T) {
	// The message API keeps rejecting even the refreshed token. One refresh
	// cycle only, then the normal retry budget runs out.
	stub := &kakaoStub{
		sendHandler: func(call int, w http.ResponseWriter) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	}
	store := &fakeTokenStore{}
	d := newTestDispatcher(t, stub, store)

	ok := d.Send(linkedUser(), "tpl-1", nil)

	assert.False(t, ok)
	assert.Equal(t, 1, stub.refreshCalls)
	assert.Equal(t, 1, store.updated)
}

func TestSendClearsTokensOnInvalidGrant(t *testing.T) {
	stub := &kakaoStub{
		refreshHandler: func(call int, w http.ResponseWriter) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error":      "invalid_grant",
				"error_code": "KOE319",
			})
		},
	}
	store := &fakeTokenStore{}
	d := newTestDispatcher(t, stub, store)

	user := linkedUser()
	user.KakaoAccessToken = sql.NullString{}
	ok := d.Send(user, "tpl-1", nil)

	assert.False(t, ok)
	assert.Equal(t, 1, stub.refreshCalls)
	assert.Equal(t, 1, store.cleared)
	assert.Equal(t, user.ID, store.lastClearedID)
	assert.Equal(t, 0, store.updated)
	assert.Equal(t, 0, stub.sendCalls)
}

func TestSendNoRefreshTokenStored(t *testing.T) {
	stub := &kakaoStub{}
	store := &fakeTokenStore{}
	d := newTestDispatcher(t, stub, store)

	user := linkedUser()
	user.KakaoAccessToken = sql.NullString{}
	user.KakaoRefreshToken = sql.NullString{}
	ok := d.Send(user, "tpl-1", nil)

	assert.False(t, ok)
	assert.Equal(t, 0, stub.refreshCalls)
	assert.Equal(t, 0, store.cleared)
}
