package apiclient_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pyresume/dashclient/internal/apiclient"
	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/domain"
	"github.com/pyresume/dashclient/internal/errmap"
	"github.com/pyresume/dashclient/internal/refresh"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// newStack wires a Client the way the CLI does: HTTP renewer behind a
// refresh coordinator behind the request pipeline.
func newStack(t *testing.T, srv *httptest.Server) (*apiclient.Client, *credential.MemoryStore) {
	t.Helper()
	store := credential.NewMemoryStore()

	renewer, err := apiclient.NewHTTPRenewer(apiclient.HTTPRenewerConfig{
		BaseURL: srv.URL,
		Base:    srv.Client().Transport,
	})
	require.NoError(t, err)

	coord := refresh.NewCoordinator(refresh.CoordinatorConfig{
		Store:   store,
		Renewer: renewer,
		Timeout: 5 * time.Second,
	})

	client, err := apiclient.NewClient(apiclient.ClientConfig{
		BaseURL: srv.URL,
		Store:   store,
		Renewer: coord,
		Base:    srv.Client().Transport,
	})
	require.NoError(t, err)
	return client, store
}

func loggedIn(t *testing.T) (*fakeBackend, *apiclient.Client, *credential.MemoryStore) {
	t.Helper()
	backend, srv := newFakeBackend(t)
	client, store := newStack(t, srv)
	_, err := client.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	return backend, client, store
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:8000", "://nope"} {
		_, err := apiclient.NewClient(apiclient.ClientConfig{BaseURL: raw, Store: credential.NewMemoryStore()})
		assert.ErrorIs(t, err, domain.ErrConfigInvalid, "base url %q", raw)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("stores the session", func(t *testing.T) {
		backend, srv := newFakeBackend(t)
		client, store := newStack(t, srv)

		id, err := client.Login(ctx, testEmail, testPassword)

		require.NoError(t, err)
		assert.True(t, id.Authenticated)
		assert.Equal(t, "7", id.SubjectID)
		assert.Equal(t, testEmail, id.Email)
		assert.Equal(t, backend.currentAccess(), store.Access(ctx))
		assert.NotEmpty(t, store.Refresh(ctx))
		assert.Equal(t, testEmail, store.Identity(ctx))
	})

	t.Run("rejected credentials", func(t *testing.T) {
		backend, srv := newFakeBackend(t)
		client, store := newStack(t, srv)

		_, err := client.Login(ctx, testEmail, "wrong")

		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.False(t, domain.IsSessionTerminated(err))
		assert.Contains(t, err.Error(), "No active account")
		assert.True(t, credential.Snapshot(ctx, store).IsZero())
		assert.Zero(t, backend.refreshCalls.Load(), "login failures never trigger renewal")
	})

	t.Run("wrong password keeps the current session", func(t *testing.T) {
		backend, client, store := loggedIn(t)
		before := credential.Snapshot(ctx, store)

		_, err := client.Login(ctx, testEmail, "wrong")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.False(t, domain.IsSessionTerminated(err))
		assert.Equal(t, before, credential.Snapshot(ctx, store))
		assert.True(t, client.Identity(ctx).Authenticated)
		assert.Zero(t, backend.refreshCalls.Load())
	})

	t.Run("replaces the previous session", func(t *testing.T) {
		_, client, store := loggedIn(t)
		before := credential.Snapshot(ctx, store)

		_, err := client.Login(ctx, testEmail, testPassword)

		require.NoError(t, err)
		after := credential.Snapshot(ctx, store)
		assert.NotEqual(t, before.Access, after.Access)
		assert.NotEqual(t, before.Refresh, after.Refresh)
	})
}

func TestLoginWithCode(t *testing.T) {
	ctx := context.Background()
	backend, srv := newFakeBackend(t)
	client, store := newStack(t, srv)

	_, err := client.LoginWithCode(ctx, testEmail, "000000")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, store.Access(ctx))

	id, err := client.LoginWithCode(ctx, testEmail, testCode)
	require.NoError(t, err)
	assert.True(t, id.Authenticated)
	assert.Equal(t, backend.currentAccess(), store.Access(ctx))
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	_, srv := newFakeBackend(t)
	client, store := newStack(t, srv)

	id, err := client.Register(ctx, "new@example.com", "pw", testCode)
	require.NoError(t, err)
	assert.False(t, id.Authenticated, "registration without issued credentials does not sign in")
	assert.Empty(t, store.Access(ctx))

	_, err = client.Register(ctx, testEmail, "pw", testCode)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestSendVerificationEmail(t *testing.T) {
	ctx := context.Background()
	backend, srv := newFakeBackend(t)
	client, _ := newStack(t, srv)

	require.NoError(t, client.SendVerificationEmail(ctx, testEmail, domain.CodePurposeLoginWithToken))

	err := client.SendVerificationEmail(ctx, testEmail, "password_reset")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.sent, 1)
	assert.Equal(t, map[string]string{"email": testEmail, "token_type": "login_with_token"}, backend.sent[0])
}

func TestVerifyToken(t *testing.T) {
	ctx := context.Background()
	backend, client, store := loggedIn(t)

	require.NoError(t, client.VerifyToken(ctx, backend.currentAccess()))

	err := client.VerifyToken(ctx, "not-a-live-token")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.False(t, domain.IsSessionTerminated(err))
	assert.NotEmpty(t, store.Access(ctx), "verification never touches the stored session")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	_, client, store := loggedIn(t)

	require.NoError(t, client.Logout(ctx))

	assert.True(t, credential.Snapshot(ctx, store).IsZero())
	assert.False(t, client.Identity(ctx).Authenticated)
}

func TestSelfInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("unwraps the envelope", func(t *testing.T) {
		backend, client, _ := loggedIn(t)

		info, err := client.SelfInfo(ctx)

		require.NoError(t, err)
		assert.Equal(t, apiclient.SelfInfo{ID: testUserID, Email: testEmail, Username: "me"}, info)
		assert.Zero(t, backend.refreshCalls.Load())
	})

	t.Run("renews an expired credential transparently", func(t *testing.T) {
		backend, client, store := loggedIn(t)
		refreshBefore := store.Refresh(ctx)
		backend.expireAccess()

		info, err := client.SelfInfo(ctx)

		require.NoError(t, err)
		assert.Equal(t, testEmail, info.Email)
		assert.Equal(t, int32(1), backend.refreshCalls.Load())
		assert.Equal(t, backend.currentAccess(), store.Access(ctx))
		assert.Equal(t, refreshBefore, store.Refresh(ctx), "refresh token kept when not rotated")
	})

	t.Run("stores a rotated refresh token", func(t *testing.T) {
		backend, client, store := loggedIn(t)
		backend.mu.Lock()
		backend.rotate = true
		backend.mu.Unlock()
		backend.expireAccess()

		_, err := client.SelfInfo(ctx)

		require.NoError(t, err)
		backend.mu.Lock()
		defer backend.mu.Unlock()
		assert.Equal(t, backend.refresh, store.Refresh(ctx))
	})

	t.Run("without a session", func(t *testing.T) {
		backend, srv := newFakeBackend(t)
		client, _ := newStack(t, srv)

		_, err := client.SelfInfo(ctx)

		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.ErrorIs(t, err, domain.ErrNoRefreshToken)
		assert.Zero(t, backend.refreshCalls.Load())
	})
}

func TestOverview(t *testing.T) {
	ctx := context.Background()

	t.Run("fetches everything", func(t *testing.T) {
		_, client, _ := loggedIn(t)

		ov, err := client.Overview(ctx, apiclient.ListOptions{PageSize: 10})

		require.NoError(t, err)
		assert.Equal(t, 7, ov.Stats.FunnelStats.TotalApplications)
		assert.Equal(t, 2, ov.Stats.StatusCounts["面试中"])
		require.Len(t, ov.Companies.Items, 1)
		assert.Equal(t, "Acme", ov.Companies.Items[0].CompanyName)
		require.Len(t, ov.Applications.Items, 2)
		assert.Equal(t, "30k", ov.Applications.Items[0].Salary)
		require.NotNil(t, ov.Applications.Items[0].Company)
		assert.Nil(t, ov.Applications.Items[1].Company)
		assert.Equal(t, 12, ov.Applications.Count)
		assert.Equal(t, 2, ov.Applications.TotalPages)
	})

	t.Run("concurrent calls share one renewal", func(t *testing.T) {
		backend, client, _ := loggedIn(t)
		backend.expireAccess()

		_, err := client.Overview(ctx, apiclient.ListOptions{})

		require.NoError(t, err)
		assert.Equal(t, int32(1), backend.refreshCalls.Load())
	})

	t.Run("rejected renewal ends the session", func(t *testing.T) {
		backend, client, store := loggedIn(t)
		backend.expireAccess()
		backend.revokeRefresh()

		_, err := client.Overview(ctx, apiclient.ListOptions{})

		require.Error(t, err)
		assert.True(t, domain.IsSessionTerminated(err))
		assert.True(t, credential.Snapshot(ctx, store).IsZero())
		assert.False(t, client.Identity(ctx).Authenticated)
		assert.Equal(t, int32(1), backend.refreshCalls.Load())
	})
}

func TestGetJSON_Errors(t *testing.T) {
	ctx := context.Background()
	_, client, store := loggedIn(t)

	t.Run("status mapped to domain error", func(t *testing.T) {
		var out map[string]any
		err := client.GetJSON(ctx, "/api/companies/99/", nil, &out)

		assert.ErrorIs(t, err, domain.ErrNotFound)
		var httpErr *errmap.HTTPError
		require.True(t, errors.As(err, &httpErr))
		assert.Equal(t, "Company not found", httpErr.Message)
		assert.NotEmpty(t, store.Access(ctx), "non-auth failures keep the session")
	})

	t.Run("envelope reporting failure", func(t *testing.T) {
		var out map[string]any
		err := client.GetJSON(ctx, "/api/flaky/", nil, &out)

		assert.ErrorIs(t, err, domain.ErrServer)
		assert.Contains(t, err.Error(), "database is busy")
	})

	t.Run("unknown route", func(t *testing.T) {
		err := client.Delete(ctx, "/api/nowhere/")

		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestHTTPRenewer(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a new access token", func(t *testing.T) {
		backend, srv := newFakeBackend(t)
		session := backend.issueSession()
		renewer, err := apiclient.NewHTTPRenewer(apiclient.HTTPRenewerConfig{BaseURL: srv.URL, Base: srv.Client().Transport})
		require.NoError(t, err)

		pair, err := renewer.Renew(ctx, session["refresh"])

		require.NoError(t, err)
		assert.Equal(t, backend.currentAccess(), pair.Access)
		assert.Empty(t, pair.Refresh)
	})

	t.Run("rejected refresh token", func(t *testing.T) {
		_, srv := newFakeBackend(t)
		renewer, err := apiclient.NewHTTPRenewer(apiclient.HTTPRenewerConfig{BaseURL: srv.URL, Base: srv.Client().Transport})
		require.NoError(t, err)

		_, err = renewer.Renew(ctx, "stolen")

		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		assert.Contains(t, err.Error(), "Token is invalid or expired")
	})
}

func TestCompanies_BareList(t *testing.T) {
	ctx := context.Background()
	_, client, _ := loggedIn(t)

	var out apiclient.Page[apiclient.Company]
	err := client.GetJSON(ctx, "/api/companies/options/", nil, &out)

	require.NoError(t, err)
	require.Len(t, out.Items, 2)
	assert.Equal(t, "Globex", out.Items[1].CompanyName)
	assert.Zero(t, out.Count, "bare lists carry no pagination")
}
