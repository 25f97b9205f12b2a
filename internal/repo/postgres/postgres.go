package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultAppName - application_name в pg_stat_activity.
const DefaultAppName = "dispatch-bench"

// PoolConfig - параметры пула под посрочную запись: каждый воркер держит соединение
// на время одного INSERT.
type PoolConfig struct {
	DSN      string
	MaxConns int32 // 0 - как в DSN (pool_max_conns) или по умолчанию pgx
	// MinConns - сколько соединений открыть заранее, чтобы первые записи
	// не ждали установки соединения. Не больше MaxConns.
	MinConns int32
	AppName  string
}

// NewPool - создаёт пул соединений и проверяет его Ping-ом (fail-fast).
func NewPool(ctx context.Context, pc PoolConfig) (*pgxpool.Pool, error) {
	cfg, err := parsePoolConfig(pc)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if connErr := pool.Ping(ctx); connErr != nil {
		pool.Close()
		return nil, connErr
	}

	return pool, nil
}

func parsePoolConfig(pc PoolConfig) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(pc.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if pc.MaxConns > 0 {
		cfg.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		cfg.MinConns = min(pc.MinConns, cfg.MaxConns)
	}

	appName := pc.AppName
	if appName == "" {
		appName = DefaultAppName
	}
	if _, ok := cfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		cfg.ConnConfig.RuntimeParams["application_name"] = appName
	}

	// Соединения живут долго: короткие INSERT-ы, пул всегда занят.
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	return cfg, nil
}
