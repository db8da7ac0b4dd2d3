package middleware

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"nimbus-portal/internal/repository"
	"nimbus-portal/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "portal.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStoreConn_AttachesAndReleasesConnection(t *testing.T) {
	db := newDB(t)

	router := gin.New()
	router.Use(StoreConn(db, zap.NewNop()))
	router.GET("/", func(c *gin.Context) {
		conn, ok := Conn(c)
		require.True(t, ok)
		require.NoError(t, repository.NewUserRepository(zap.NewNop()).Ping(c.Request.Context(), conn))
		assert.Equal(t, 1, db.Stats().InUse)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestStoreConn_ReleasesOnPanic(t *testing.T) {
	db := newDB(t)

	router := gin.New()
	router.Use(Recovery(zap.NewNop()), StoreConn(db, zap.NewNop()))
	router.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestStoreConn_ClosedPoolIs500(t *testing.T) {
	db := newDB(t)
	require.NoError(t, db.Close())

	called := false
	router := gin.New()
	router.Use(StoreConn(db, zap.NewNop()))
	router.GET("/", func(c *gin.Context) { called = true })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, called)
}

func TestConn_MissingWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := Conn(c)
	assert.False(t, ok)
}

func TestSession_ExposesUsername(t *testing.T) {
	manager := session.NewManager("secret", time.Hour)
	token, err := manager.Sign(session.Claims{Username: "ana"})
	require.NoError(t, err)

	var seen string
	router := gin.New()
	router.Use(Session(manager, zap.NewNop()))
	router.GET("/", func(c *gin.Context) { seen = c.GetString(ContextUsername) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: manager.CookieName(), Value: token})
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "ana", seen)
}

func TestRequestLogger_AssignsAndEchoesID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	router := gin.New()
	router.Use(RequestLogger(zap.New(core)))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := w.Header().Get(HeaderRequestID)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	entries := logs.FilterMessage("Request handled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ContextMap()["request_id"])

	supplied := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, supplied)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, supplied, w.Header().Get(HeaderRequestID))
}
