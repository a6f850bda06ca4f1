package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogKVWritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	LogKV("warn", "catalog snapshot served", map[string]interface{}{"agencies": 3})

	line := strings.TrimSpace(buf.String())
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "catalog snapshot served", entry["msg"])
	assert.Equal(t, float64(3), entry["agencies"])
	assert.NotEmpty(t, entry["ts"])
}

func TestJSONLoggerLevels(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stdout)

	r := gin.New()
	r.Use(JSONLogger())
	r.GET("/api/requests/:id", func(c *gin.Context) {
		c.Set("user_id", "u1")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/requests/r9?x=1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "/api/requests/:id", entry["route"])
	assert.Equal(t, "x=1", entry["query"])
	assert.Equal(t, "u1", entry["user_id"])
	assert.Equal(t, float64(404), entry["status"])
}
