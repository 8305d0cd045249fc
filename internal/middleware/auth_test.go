package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unifeed-dev/unifeed/internal/domain"
	internal_jwt "github.com/unifeed-dev/unifeed/internal/jwt"
)

func authedHandler(t *testing.T, wantUser *domain.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r)
		require.NotNil(t, user)
		assert.Equal(t, wantUser.Id, user.Id)
		assert.Equal(t, wantUser.Username, user.Username)
		w.WriteHeader(http.StatusOK)
	})
}

func TestNeedAuth(t *testing.T) {
	jwtService := internal_jwt.New("test-key", time.Hour)
	auth := NewAuth(jwtService)
	user := domain.User{Id: 7, Email: "alice@example.edu", Username: "alice"}

	t.Run("accepts bearer token and populates user context", func(t *testing.T) {
		token, err := jwtService.NewToken(user)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/progress/post/1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		auth.NeedAuth()(authedHandler(t, &user)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("accepts access token cookie", func(t *testing.T) {
		token, err := jwtService.NewToken(user)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/progress/post/1", nil)
		req.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
		rr := httptest.NewRecorder()

		auth.NeedAuth()(authedHandler(t, &user)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("rejects request without token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/progress/post/1", nil)
		rr := httptest.NewRecorder()

		auth.NeedAuth()(authedHandler(t, &user)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("rejects token signed with another key", func(t *testing.T) {
		otherService := internal_jwt.New("other-key", time.Hour)
		token, err := otherService.NewToken(user)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/progress/post/1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		auth.NeedAuth()(authedHandler(t, &user)).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestAdminOnly(t *testing.T) {
	jwtService := internal_jwt.New("test-key", time.Hour)
	auth := NewAuth(jwtService)

	t.Run("rejects non-admin", func(t *testing.T) {
		token, err := jwtService.NewToken(domain.User{Id: 7, Username: "alice"})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		auth.AdminOnly()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("accepts admin", func(t *testing.T) {
		token, err := jwtService.NewToken(domain.User{Id: 1, Username: "root", Admin: true})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()

		auth.AdminOnly()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
