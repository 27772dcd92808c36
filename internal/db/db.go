package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/imzleep/abibuilder-sub000/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	defaultDBDriver     = "postgres"
	defaultPingTimeout  = 5 * time.Second
	defaultConnMaxIdle  = 2 * time.Minute
	defaultConnMaxLife  = 30 * time.Minute
	defaultMaxIdleConns = 5
	defaultMaxOpenConns = 25
)

// URL builds the postgres connection URL from config. It is shared by the
// connection pool and the migrator.
func URL(cfg config.DatabaseConfig) string {
	sslmode := "disable"
	if cfg.UseSSL {
		sslmode = "require"
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		User:   url.UserPassword(cfg.User, cfg.Password),
		Path:   cfg.DBName,
	}

	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()

	return u.String()
}

func Open(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	sqlDB, err := sql.Open(defaultDBDriver, URL(cfg.Database))
	if err != nil {
		return nil, err
	}

	sqlDB.SetConnMaxIdleTime(defaultConnMaxIdle)
	sqlDB.SetConnMaxLifetime(defaultConnMaxLife)
	sqlDB.SetMaxIdleConns(defaultMaxIdleConns)
	sqlDB.SetMaxOpenConns(defaultMaxOpenConns)

	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return sqlx.NewDb(sqlDB, defaultDBDriver), nil
}
