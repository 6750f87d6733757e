package profiles

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"collegestar/notes-portal/notes-portal-backend/internal/middleware"
	"collegestar/notes-portal/notes-portal-backend/pkg/token"
)

func TestHandlerRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(NewMemoryRepository(), zap.NewNop())
	tokens := token.NewManager("secret", "collegestar", time.Hour)

	r := gin.New()
	NewHandler(svc, zap.NewNop()).RegisterRoutes(r.Group("/api"), middleware.RequireAuth(tokens))

	owner, err := svc.Create(context.Background(), CreateRequest{Email: "o@x.y", PasswordHash: "secret-hash", FullName: "Owner"})
	require.NoError(t, err)
	other, err := svc.Create(context.Background(), CreateRequest{Email: "p@x.y", PasswordHash: "h"})
	require.NoError(t, err)
	ownerToken, err := tokens.Issue(owner.ID, owner.Email)
	require.NoError(t, err)

	t.Run("get is public and hides password", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/"+owner.ID, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "secret-hash")

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Owner", body["full_name"])
		assert.Equal(t, false, body["donorVerified"])
	})

	t.Run("get unknown", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profiles/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	update := func(id, bearer, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/profiles/"+id, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("update requires auth", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, update(owner.ID, "", `{}`).Code)
	})

	t.Run("update someone else", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, update(other.ID, ownerToken, `{"bio":"x"}`).Code)
	})

	t.Run("donor flag is not client writable", func(t *testing.T) {
		w := update(owner.ID, ownerToken, `{"institute":"IISc","donorVerified":true,"profileCompletion":100}`)
		require.Equal(t, http.StatusOK, w.Code)
		var body Profile
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "IISc", body.Institute)
		assert.False(t, body.DonorVerified)
		assert.Equal(t, 13, body.ProfileCompletion)
	})

	t.Run("malformed body", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, update(owner.ID, ownerToken, `{`).Code)
	})
}
