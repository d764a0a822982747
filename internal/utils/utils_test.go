package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"marrowai-server/internal/config"
	"marrowai-server/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		JWTExpirationMinutes:      5,
		JWTRefreshExpirationHours: 1,
	}
}

func TestGenerateAndValidateTokens(t *testing.T) {
	cfg := testConfig()
	user := &models.User{BaseModel: models.BaseModel{ID: "user-1"}}

	access, refresh, err := GenerateTokens(user, cfg)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := ValidateToken(access, cfg.JWTSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	claims, err = ValidateToken(refresh, cfg.JWTRefreshSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)

	_, err = ValidateToken(access, cfg.JWTRefreshSecret)
	assert.Error(t, err)

	_, err = ValidateToken("not-a-token", cfg.JWTSecret)
	assert.Error(t, err)
}

func TestEnvelope(t *testing.T) {
	tests := []struct {
		name   string
		send   func(c *gin.Context)
		status int
		want   ResponseData
	}{
		{"success", func(c *gin.Context) { Success(c, "ok", gin.H{"a": 1}) }, http.StatusOK, ResponseData{Success: true, Message: "ok"}},
		{"created", func(c *gin.Context) { Created(c, "made", nil) }, http.StatusCreated, ResponseData{Success: true, Message: "made"}},
		{"bad request", func(c *gin.Context) { BadRequest(c, "nope") }, http.StatusBadRequest, ResponseData{Error: "nope"}},
		{"conflict", func(c *gin.Context) { Conflict(c, "again") }, http.StatusConflict, ResponseData{Error: "again"}},
		{"details", func(c *gin.Context) { ErrorWithDetails(c, http.StatusInternalServerError, "upstream", assert.AnError) }, http.StatusInternalServerError, ResponseData{Error: "upstream", Details: assert.AnError.Error()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			tt.send(c)

			assert.Equal(t, tt.status, w.Code)
			var got ResponseData
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			got.Data = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

type bindTarget struct {
	Name string `json:"name" binding:"required"`
	Age  int    `json:"age" validate:"min=0,max=150"`
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		body string
		ok   bool
		msg  string
	}{
		{`{"name":"a","age":3}`, true, ""},
		{`{"age":3}`, false, "Invalid request payload"},
		{`{"name":"a","age":200}`, false, "Validation failed: Age failed on max=150"},
		{`not json`, false, "Invalid request payload"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
		c.Request.Header.Set("Content-Type", "application/json")

		var target bindTarget
		assert.Equal(t, tt.ok, BindAndValidate(c, &target), tt.body)
		if !tt.ok {
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.msg)
		}
	}
}
