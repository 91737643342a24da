package auth

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/netgate/netgate/internal/domain/attempt"
	attemptMocks "github.com/netgate/netgate/internal/domain/attempt/mocks"
	"github.com/netgate/netgate/internal/domain/session"
	sessionMocks "github.com/netgate/netgate/internal/domain/session/mocks"
)

func testService(t *testing.T, sessions session.Repository, attempts *attemptMocks.MockRepository) *Service {
	t.Helper()
	svc, err := NewService(sessions, attempts, Config{
		Username:        "addyya",
		Password:        "sf123123",
		SessionTTL:      time.Hour,
		MaxAttempts:     5,
		AttemptWindow:   time.Hour,
		LockoutDuration: 5 * time.Minute,
	}, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func TestLoginSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)
	svc := testService(t, sessions, attempts)

	attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	attempts.On("Record", mock.Anything, mock.Anything).Return(nil)

	var stored *session.Session
	sessions.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, s *session.Session) error {
			stored = s
			return nil
		})

	res, err := svc.Login(context.Background(), "10.0.0.5", "addyya", "sf123123", nil)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Token)

	require.NotNil(t, stored)
	assert.Equal(t, "10.0.0.5", stored.Address)
	assert.Equal(t, hashToken(res.Token), stored.TokenHash)
	assert.True(t, stored.ExpiresAt.After(stored.CreatedAt))
}

func TestLoginWrongPasswordDoesNotTouchSessions(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)
	svc := testService(t, sessions, attempts)

	attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	attempts.On("Record", mock.Anything, mock.Anything).Return(nil)
	attempts.On("CountRecentFailures", mock.Anything, "10.0.0.5", time.Hour).Return(1, nil)

	// no EXPECT on sessions: a failed login must not mutate the store
	_, err := svc.Login(context.Background(), "10.0.0.5", "addyya", "wrong", nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	attempts.AssertCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestLoginLockedAddress(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)
	svc := testService(t, sessions, attempts)

	until := time.Now().UTC().Add(3 * time.Minute)
	attempts.On("GetLock", mock.Anything, "10.0.0.5").
		Return(&attempt.Lockout{Address: "10.0.0.5", LockedUntil: until, Failures: 5}, nil)

	// no EXPECT on sessions and no Record expectation: a locked address
	// is rejected before credentials are even checked
	_, err := svc.Login(context.Background(), "10.0.0.5", "addyya", "sf123123", nil)

	var locked *LockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, until, locked.Until)
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)
	svc := testService(t, sessions, attempts)

	attempts.On("GetLock", mock.Anything, "10.0.0.5").Return(nil, nil)
	attempts.On("Record", mock.Anything, mock.Anything).Return(nil)
	attempts.On("CountRecentFailures", mock.Anything, "10.0.0.5", time.Hour).Return(5, nil)
	attempts.On("Lock", mock.Anything, "10.0.0.5", mock.Anything, 5).Return(nil)

	_, err := svc.Login(context.Background(), "10.0.0.5", "addyya", "wrong", nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	attempts.AssertCalled(t, "Lock", mock.Anything, "10.0.0.5", mock.Anything, 5)
}

func TestVerify(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)
	svc := testService(t, sessions, attempts)

	token := "some-opaque-token"
	sess := session.New("10.0.0.5", hashToken(token), time.Hour, nil)

	sessions.EXPECT().Get(gomock.Any(), "10.0.0.5").Return(sess, nil).Times(2)
	sessions.EXPECT().Touch(gomock.Any(), "10.0.0.5").Return(nil)

	got, err := svc.Verify(context.Background(), "10.0.0.5", token)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, got.SessionID)

	_, err = svc.Verify(context.Background(), "10.0.0.5", "other-token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerifyNoSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)
	svc := testService(t, sessions, attempts)

	sessions.EXPECT().Get(gomock.Any(), "10.0.0.5").Return(nil, nil)

	_, err := svc.Verify(context.Background(), "10.0.0.5", "token")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLogout(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := sessionMocks.NewMockRepository(ctrl)
	attempts := new(attemptMocks.MockRepository)
	svc := testService(t, sessions, attempts)

	sessions.EXPECT().Remove(gomock.Any(), "10.0.0.5").Return(nil).Times(2)

	// idempotent: double logout succeeds
	require.NoError(t, svc.Logout(context.Background(), "10.0.0.5"))
	require.NoError(t, svc.Logout(context.Background(), "10.0.0.5"))
}
