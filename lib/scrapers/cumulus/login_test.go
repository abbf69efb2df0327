package cumulus

import (
	"context"
	"testing"

	"cumulus-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestLoginSuccess(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/cumulus")
	defer cleanup()

	portal := newFakePortal(t)
	client := portal.client(t)

	err := client.Login(context.Background())
	require.NoError(t, err)
	require.Equal(t, stateAuthenticated, client.state)

	require.Equal(t, 1, portal.warmupHits)
	require.Equal(t, 1, portal.loginGets)
	require.Equal(t, 1, portal.loginPosts)

	require.Equal(t, testCsrfToken, portal.lastLoginForm.Get("_csrf"))
	require.Equal(t, "jane@example.com", portal.lastLoginForm.Get("username"))
	require.Equal(t, "hunter2", portal.lastLoginForm.Get("password"))
	require.Equal(t, "true", portal.lastLoginForm.Get("remember-me"))

	require.Equal(t, "Jane Doe", client.DisplayName())
}

func TestLoginTokenMissing(t *testing.T) {
	portal := newFakePortal(t)
	portal.loginPage = `<html><head></head><body>no token here</body></html>`
	client := portal.client(t)

	err := client.Login(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, CodeCouldNotAuthenticate, authErr.Code)
	require.Contains(t, authErr.Reason, "CSRF token not found")

	// a missing token means the page shape changed, credentials must not
	// have been submitted
	require.Equal(t, 0, portal.loginPosts)
	require.Equal(t, stateFailed, client.state)
}

func TestLoginErrorRegion(t *testing.T) {
	portal := newFakePortal(t)
	portal.loginResponse = `<html><body>
		<div class="error-message">Invalid credentials</div>
		<div class="alert-danger">Try again later</div>
	</body></html>`
	client := portal.client(t)

	err := client.Login(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, CodeCouldNotAuthenticate, authErr.Code)
	require.Contains(t, authErr.Reason, "Invalid credentials")
	require.Contains(t, authErr.Reason, "Try again later")
}

func TestLoginCumulusMarkerMissing(t *testing.T) {
	portal := newFakePortal(t)
	portal.landingPage = `<html><body>some unrelated account page</body></html>`
	client := portal.client(t)

	err := client.Login(context.Background())

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, CodeCumulusAccess, authErr.Code)
	require.Equal(t, stateFailed, client.state)
}

func TestLoginNotRepeatable(t *testing.T) {
	portal := newFakePortal(t)
	client := portal.login(t)

	err := client.Login(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestFailedLoginLeavesClientUnusable(t *testing.T) {
	portal := newFakePortal(t)
	portal.loginPage = `<html><head></head><body></body></html>`
	client := portal.client(t)

	require.Error(t, client.Login(context.Background()))
	require.Error(t, client.Login(context.Background()))

	_, err := client.FetchReceipt(context.Background(), "r-1")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestNewClientRequiresUsername(t *testing.T) {
	_, err := NewClient(context.Background(), ClientOptions{
		Password: "hunter2",
	})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, CodeMissingUsername, authErr.Code)
}
