package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Checker is a storage backend that can report its health.
type Checker interface {
	Driver() string
	Ping(ctx context.Context) error
	Stats() interface{}
}

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// PostgresChecker reports on a pgx pool.
type PostgresChecker struct{ Pool *pgxpool.Pool }

func (p PostgresChecker) Driver() string                 { return "postgres" }
func (p PostgresChecker) Ping(ctx context.Context) error { return p.Pool.Ping(ctx) }

func (p PostgresChecker) Stats() interface{} {
	stat := p.Pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// MongoChecker reports on a mongo client.
type MongoChecker struct{ Client *mongo.Client }

func (m MongoChecker) Driver() string { return "mongo" }

func (m MongoChecker) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m MongoChecker) Stats() interface{} {
	return map[string]int{"sessions_in_progress": m.Client.NumberSessionsInProgress()}
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(checker Checker) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		if err := checker.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"driver": checker.Driver(),
				"error":  err.Error(),
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"driver": checker.Driver(),
			"stats":  checker.Stats(),
		})
	}
}
