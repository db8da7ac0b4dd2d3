package middleware

import (
	"net/http"

	"nimbus-portal/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

const contextStoreConn = "store_conn"

// StoreConn gives every request its own connection from the pool and returns
// it once the handler chain is done.
func StoreConn(db *sqlx.DB, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := db.Connx(c.Request.Context())
		if err != nil {
			logger.Error("Failed to acquire store connection", zap.Error(err))
			c.String(http.StatusInternalServerError, "Storage is unavailable. Please try again later.")
			c.Abort()
			return
		}
		defer func() {
			if err := conn.Close(); err != nil {
				logger.Warn("Failed to release store connection", zap.Error(err))
			}
		}()

		c.Set(contextStoreConn, conn)
		c.Next()
	}
}

// Conn returns the connection attached by StoreConn.
func Conn(c *gin.Context) (repository.DBTX, bool) {
	v, ok := c.Get(contextStoreConn)
	if !ok {
		return nil, false
	}
	conn, ok := v.(*sqlx.Conn)
	return conn, ok
}
