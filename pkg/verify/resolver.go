package verify

import (
	"context"
	"net"
	"time"
)

// MXResolver looks up mail exchangers; *net.Resolver satisfies it
type MXResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
}

// NewResolver returns the system resolver, or a pure-Go resolver that sends
// every query to nameserver ("host:port") when one is configured.
func NewResolver(nameserver string) *net.Resolver {
	if nameserver == "" {
		return net.DefaultResolver
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			d := net.Dialer{Timeout: 5 * time.Second}
			return d.DialContext(ctx, network, nameserver)
		},
	}
}
