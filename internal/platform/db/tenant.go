package db

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	TenantIDKey contextKey = "tenant_id"
	DBConnKey   contextKey = "db_conn"
	DBTxKey     contextKey = "db_tx"
)

// TenantHeader lets service accounts without a tenant claim pick a desk.
const TenantHeader = "X-Tenant-ID"

var (
	tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

	errTenantMismatch = errors.New("tenant header does not match token")
)

// TenantMiddleware pins one pooled connection to the request with its
// search_path set to the tenant schema. Each TPA desk is a tenant; the
// connection is released when the handler returns.
func TenantMiddleware(pool *pgxpool.Pool, defaultTenant string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, err := resolveTenant(c, defaultTenant)
			if err != nil {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			if !tenantIDPattern.MatchString(tenantID) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			ctx := c.Request().Context()
			log := zerolog.Ctx(ctx).With().Str("tenant", tenantID).Logger()
			ctx = log.WithContext(ctx)

			conn, err := pool.Acquire(ctx)
			if err != nil {
				log.Error().Err(err).Msg("acquire tenant connection")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			schema := pgx.Identifier{SchemaName(tenantID)}.Sanitize()
			if _, err := conn.Exec(ctx, "SET search_path TO "+schema+", public"); err != nil {
				log.Error().Err(err).Msg("set tenant search_path")
				return echo.NewHTTPError(http.StatusInternalServerError, "tenant resolution failed")
			}

			ctx = context.WithValue(ctx, TenantIDKey, tenantID)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("tenant_id", tenantID)

			return next(c)
		}
	}
}

// resolveTenant prefers the token's tenant claim. A header naming a different
// tenant than the token is refused rather than ignored.
func resolveTenant(c echo.Context, defaultTenant string) (string, error) {
	header := c.Request().Header.Get(TenantHeader)
	if claim, ok := c.Get("jwt_tenant_id").(string); ok && claim != "" {
		if header != "" && header != claim {
			return "", errTenantMismatch
		}
		return claim, nil
	}
	if header != "" {
		return header, nil
	}
	return defaultTenant, nil
}

func SchemaName(tenantID string) string {
	return "tenant_" + tenantID
}

func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// TxFromContext returns the transaction opened by Transactor.WithTx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

func TenantFromContext(ctx context.Context) string {
	tid, _ := ctx.Value(TenantIDKey).(string)
	return tid
}

// CreateTenantSchema creates the tenant's schema and, when a migrator is
// given, brings it up to date.
func CreateTenantSchema(ctx context.Context, pool *pgxpool.Pool, tenantID string, migrator *Migrator) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("invalid tenant identifier: %s", tenantID)
	}

	schema := SchemaName(tenantID)
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}
	if migrator == nil {
		return nil
	}
	if _, err := migrator.Up(ctx, schema); err != nil {
		return fmt.Errorf("run migrations for %s: %w", schema, err)
	}
	return nil
}
