package probes

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPProber implements the TCP readiness probe
type TCPProber struct {
	Address string
}

// Execute implements the Prober interface for TCP probes
func (p *TCPProber) Execute(ctx context.Context) ProbeResult {
	start := time.Now()

	dialer := net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", p.Address)
	if err != nil {
		return ProbeResult{
			Success:  false,
			Message:  fmt.Sprintf("TCP check failed: %v", err),
			Duration: time.Since(start),
		}
	}
	defer conn.Close()

	return ProbeResult{
		Success:  true,
		Message:  fmt.Sprintf("TCP check succeeded for %s", p.Address),
		Duration: time.Since(start),
	}
}
