package probes

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
)

// PostgresProber succeeds once the database accepts an authenticated ping.
type PostgresProber struct {
	Address  string
	User     string
	Password string
	Database string
}

// DSN renders the connection string for the probe.
func (p *PostgresProber) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.User, p.Password),
		Host:     p.Address,
		Path:     "/" + p.Database,
		RawQuery: "sslmode=disable&connect_timeout=5",
	}
	return u.String()
}

// Execute implements the Prober interface for Postgres
func (p *PostgresProber) Execute(ctx context.Context) ProbeResult {
	start := time.Now()

	conn, err := pgx.Connect(ctx, p.DSN())
	if err != nil {
		return ProbeResult{
			Message:  fmt.Sprintf("Postgres connect failed: %v", err),
			Duration: time.Since(start),
		}
	}
	defer conn.Close(context.Background())

	if err := conn.Ping(ctx); err != nil {
		return ProbeResult{
			Message:  fmt.Sprintf("Postgres ping failed: %v", err),
			Duration: time.Since(start),
		}
	}
	return ProbeResult{
		Success:  true,
		Message:  fmt.Sprintf("Postgres ready at %s", p.Address),
		Duration: time.Since(start),
	}
}
