package pathtmpl

import (
	"context"
	"os"
	"strings"
)

// Unknown is written in place of every host tag when the local
// fully-qualified domain name cannot be determined.
const Unknown = "none"

// Host holds the strings the %1, %2 and %3 tags expand to.
type Host struct {
	Short  string // %1: host name up to the first dot.
	Domain string // %2: everything after the first dot.
	FQDN   string // %3: fully-qualified domain name.
}

// Resolver finds the canonical name of a host. *net.Resolver satisfies it.
type Resolver interface {
	LookupCNAME(ctx context.Context, host string) (string, error)
}

// UnknownHost is returned by ResolveHost when nothing could be resolved.
func UnknownHost() Host {
	return Host{Short: Unknown, Domain: Unknown, FQDN: Unknown}
}

// NewHost splits a fully-qualified domain name into its tag values.
// A name without a dot is its own domain.
func NewHost(fqdn string) Host {
	fqdn = strings.TrimSuffix(fqdn, ".")
	if fqdn == "" {
		return UnknownHost()
	}

	host := Host{Short: fqdn, Domain: fqdn, FQDN: fqdn}
	if idx := strings.IndexByte(fqdn, '.'); idx >= 0 {
		host.Short = fqdn[:idx]
		host.Domain = fqdn[idx+1:]
	}

	return host
}

// ResolveHost looks up the canonical name of the local host.
func ResolveHost(ctx context.Context, resolver Resolver) Host {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return UnknownHost()
	}

	return LookupHost(ctx, resolver, name)
}

// LookupHost resolves name with resolver. A failed lookup yields UnknownHost.
func LookupHost(ctx context.Context, resolver Resolver, name string) Host {
	fqdn, err := resolver.LookupCNAME(ctx, name)
	if err != nil {
		return UnknownHost()
	}

	return NewHost(fqdn)
}
