package authapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/authapi/fakeapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestClient(t *testing.T) (*authapi.Client, *fakeapi.Server) {
	t.Helper()
	fake := fakeapi.New("test-secret", fakeapi.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return authapi.NewClient(srv.URL), fake
}

func TestLoginAndRefresh(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()
	_, err := fake.AddUser("alice", "Alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	resp, err := client.Login(ctx, authapi.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, "Alice", resp.User.Name)
	require.NotEmpty(t, resp.AccessToken)

	refreshed, err := client.Refresh(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.Equal(t, 1, fake.Requests(authapi.PathRefresh))
}

func TestOwnerRegisterAndRefresh(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	resp, err := client.OwnerRegister(ctx, authapi.OwnerRegisterRequest{
		Name: "Olive", Email: "olive@example.com", Phone: "555-0100", Password: "secret1",
	})
	require.NoError(t, err)
	require.Equal(t, "olive@example.com", resp.Owner.Email)

	refreshed, err := client.OwnerRefresh(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.Equal(t, int64(3600), refreshed.ExpiresIn)

	_, err = client.Refresh(ctx, resp.AccessToken)
	require.ErrorIs(t, err, authapi.ErrInvalidCredentials)
}

func TestErrorMapping(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	_, err := client.Login(ctx, authapi.LoginRequest{Email: "nobody@example.com", Password: "x"})
	require.ErrorIs(t, err, authapi.ErrInvalidCredentials)
	require.Equal(t, "Invalid email or password", authapi.DisplayMessage(err))

	fake.FailNext(authapi.PathRegister, http.StatusInternalServerError, "database unavailable")
	_, err = client.Register(ctx, authapi.RegisterRequest{Username: "bob", Name: "Bob", Email: "bob@example.com", Password: "secret1"})
	require.ErrorIs(t, err, authapi.ErrServer)
	require.Contains(t, err.Error(), "registration failed")

	var apiErr *authapi.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "database unavailable", authapi.DisplayMessage(err))
}

func TestRefreshResponseCasing(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"camel", `{"accessToken":"abc","expiresIn":60}`},
		{"snake", `{"access_token":"abc","expires_in":60}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer old-token", r.Header.Get("Authorization"))
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := authapi.NewClient(srv.URL).OwnerRefresh(context.Background(), "old-token")
			require.NoError(t, err)
			require.Equal(t, "abc", resp.AccessToken)
			require.Equal(t, int64(60), resp.ExpiresIn)
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := authapi.NewClient(url, authapi.WithTimeout(time.Second))
	_, err := client.OwnerLogin(context.Background(), authapi.OwnerLoginRequest{Email: "a@example.com", Password: "x"})
	require.ErrorIs(t, err, authapi.ErrNetworkFailure)
	require.Equal(t, "Network error, please try again", authapi.DisplayMessage(err))
}

func TestUndecodableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := authapi.NewClient(srv.URL).Login(context.Background(), authapi.LoginRequest{})
	require.ErrorIs(t, err, authapi.ErrServer)
}
