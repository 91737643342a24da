package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	appAuth "github.com/netgate/netgate/internal/application/auth"
	"github.com/netgate/netgate/internal/domain/attempt"
	attemptMocks "github.com/netgate/netgate/internal/domain/attempt/mocks"
	"github.com/netgate/netgate/internal/domain/session"
	sessionMocks "github.com/netgate/netgate/internal/domain/session/mocks"
)

type testAPI struct {
	router   http.Handler
	sessions *sessionMocks.MockRepository
	attempts *attemptMocks.MockRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)

	authSvc, err := appAuth.NewService(sessions, attempts, appAuth.Config{
		Username:        "addyya",
		Password:        "sf123123",
		SessionTTL:      time.Hour,
		MaxAttempts:     5,
		AttemptWindow:   time.Hour,
		LockoutDuration: 5 * time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)

	srv := NewServer(authSvc, sessions, attempts, time.Hour, zerolog.Nop())
	return &testAPI{router: srv.Router(), sessions: sessions, attempts: attempts}
}

func (a *testAPI) do(t *testing.T, method, path, remoteAddr, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestLoginEndpointSuccess(t *testing.T) {
	api := newTestAPI(t)
	api.attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	api.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)
	api.sessions.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)

	rec := api.do(t, http.MethodPost, "/api/auth/login", "10.0.0.5:52000",
		`{"username":"addyya","password":"sf123123"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.NotEmpty(t, data["session_token"])
	assert.Equal(t, float64(3600), data["expires_in"])
	assert.Equal(t, "addyya", data["username"])
	assert.Equal(t, "10.0.0.5", data["client_ip"])
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	api.attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	api.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)
	api.attempts.On("CountRecentFailures", mock.Anything, "10.0.0.5", time.Hour).Return(1, nil)

	rec := api.do(t, http.MethodPost, "/api/auth/login", "10.0.0.5:52000",
		`{"username":"addyya","password":"nope"}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func TestLoginEndpointLocked(t *testing.T) {
	api := newTestAPI(t)
	until := time.Now().UTC().Add(4 * time.Minute)
	api.attempts.On("GetLock", mock.Anything, "10.0.0.5").
		Return(&attempt.Lockout{Address: "10.0.0.5", LockedUntil: until, Failures: 5}, nil)

	rec := api.do(t, http.MethodPost, "/api/auth/login", "10.0.0.5:52000",
		`{"username":"addyya","password":"sf123123"}`)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeResponse(t, rec)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["locked_until"])
	assert.Greater(t, body["remaining_seconds"].(float64), float64(0))
}

func TestLoginEndpointMissingFields(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/auth/login", "10.0.0.5:52000",
		`{"username":"addyya"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginEndpointUsesForwardedAddress(t *testing.T) {
	api := newTestAPI(t)
	api.attempts.On("GetLock", mock.Anything, "10.0.0.9").Return(nil, nil)
	api.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)
	api.sessions.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"username":"addyya","password":"sf123123"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "10.0.0.9")
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "10.0.0.9", data["client_ip"])
}

func TestVerifyEndpointRoundTrip(t *testing.T) {
	api := newTestAPI(t)
	api.attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	api.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)

	var stored *session.Session
	api.sessions.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, s *session.Session) error {
			stored = s
			return nil
		})

	rec := api.do(t, http.MethodPost, "/api/auth/login", "10.0.0.5:52000",
		`{"username":"addyya","password":"sf123123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token := decodeResponse(t, rec)["data"].(map[string]interface{})["session_token"].(string)

	api.sessions.EXPECT().Get(gomock.Any(), "10.0.0.5").DoAndReturn(
		func(_ any, _ string) (*session.Session, error) { return stored, nil })
	api.sessions.EXPECT().Touch(gomock.Any(), "10.0.0.5").Return(nil)

	rec = api.do(t, http.MethodPost, "/api/auth/verify", "10.0.0.5:52000",
		`{"session_token":"`+token+`"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, true, data["session_valid"])
}

func TestVerifyEndpointRejectsUnknownToken(t *testing.T) {
	api := newTestAPI(t)
	api.sessions.EXPECT().Get(gomock.Any(), "10.0.0.5").Return(nil, nil)

	rec := api.do(t, http.MethodPost, "/api/auth/verify", "10.0.0.5:52000",
		`{"session_token":"bogus"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.sessions.EXPECT().Remove(gomock.Any(), "10.0.0.7").Return(nil)

	rec := api.do(t, http.MethodPost, "/api/auth/logout", "10.0.0.5:52000",
		`{"client_ip":"10.0.0.7"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeResponse(t, rec)["success"])
}

func TestAdminSessions(t *testing.T) {
	api := newTestAPI(t)
	api.sessions.EXPECT().List(gomock.Any(), 100).Return([]*session.Session{
		session.New("10.0.0.5", "h1", time.Hour, nil),
		session.New("10.0.0.6", "h2", time.Hour, nil),
	}, nil)

	rec := api.do(t, http.MethodGet, "/api/admin/sessions", "127.0.0.1:52000", "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
}

func TestAdminLogs(t *testing.T) {
	api := newTestAPI(t)
	api.attempts.On("ListAttempts", mock.Anything, 10, 5).Return([]*attempt.Attempt{
		{Address: "10.0.0.5", Username: "addyya", Success: false, CreatedAt: time.Now().UTC()},
	}, nil)

	rec := api.do(t, http.MethodGet, "/api/admin/logs?limit=10&offset=5", "127.0.0.1:52000", "")

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeResponse(t, rec)["data"].(map[string]interface{})
	assert.Len(t, data["logs"], 1)
	assert.Equal(t, float64(10), data["limit"])
	assert.Equal(t, float64(5), data["offset"])
}

func TestHealthEndpoint(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/health", "127.0.0.1:52000", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeResponse(t, rec)["status"])
}

func TestFallbackFormRendersClientIP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/auth/fallback?client_ip=10.0.0.5", "127.0.0.1:52000", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="client_ip" value="10.0.0.5"`)
	assert.Contains(t, rec.Body.String(), "<form")
}

func TestFallbackSubmitSuccess(t *testing.T) {
	api := newTestAPI(t)
	api.attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	api.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)
	api.sessions.EXPECT().Put(gomock.Any(), gomock.Any()).Return(nil)

	form := "client_ip=10.0.0.5&username=addyya&password=sf123123"
	req := httptest.NewRequest(http.MethodPost, "/api/auth/fallback", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "You are connected")
}

func TestFallbackSubmitBadPassword(t *testing.T) {
	api := newTestAPI(t)
	api.attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	api.attempts.On("Record", mock.Anything, mock.Anything).Return(nil)
	api.attempts.On("CountRecentFailures", mock.Anything, "10.0.0.5", time.Hour).Return(1, nil)

	form := "client_ip=10.0.0.5&username=addyya&password=wrong"
	req := httptest.NewRequest(http.MethodPost, "/api/auth/fallback", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:40000"
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid username or password")
}
