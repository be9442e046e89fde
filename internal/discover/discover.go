// Package discover finds engines on the local network via mDNS/DNS-SD.
//
// Engines advertise themselves as _openwork._tcp on the .local domain.
// Browsing only reveals presence; attaching still goes through the
// normal connect path with its health probe.
package discover

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"github.com/grandcat/zeroconf"

	apperrors "github.com/xavierarpa/openwork/internal/errors"
)

// ServiceType is the mDNS service type advertised by engines.
// Follows the standard Bonjour naming convention: _<service>._<protocol>
const ServiceType = "_openwork._tcp"

// DefaultBrowseTimeout bounds a browse when the caller gives none.
const DefaultBrowseTimeout = 3 * time.Second

// Engine is one discovered engine instance.
type Engine struct {
	// Name is the advertised instance name (usually the hostname).
	Name string

	// Target is the dialable host:port, preferring an IPv4 address.
	Target string

	// Version is the engine version from the TXT records, if present.
	Version string
}

// Browse scans the local network for engines and returns everything
// found before ctx expires or is cancelled, sorted by name. A timeout
// is applied if ctx carries no deadline.
func Browse(ctx context.Context) ([]Engine, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultBrowseTimeout)
		defer cancel()
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDiscoverFailed, "create mdns resolver", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(ctx, ServiceType, "local.", entries); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDiscoverFailed, "browse for engines", err)
	}

	var found []Engine
	for entry := range entries {
		engine, ok := fromEntry(entry)
		if !ok {
			continue
		}
		found = append(found, engine)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

// fromEntry converts a service entry into an Engine, dropping entries
// with no usable address.
func fromEntry(entry *zeroconf.ServiceEntry) (Engine, bool) {
	if entry == nil || entry.Port == 0 {
		return Engine{}, false
	}

	var addr net.IP
	if len(entry.AddrIPv4) > 0 {
		addr = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		addr = entry.AddrIPv6[0]
	}
	if addr == nil {
		return Engine{}, false
	}

	e := Engine{
		Name:   entry.Instance,
		Target: net.JoinHostPort(addr.String(), fmt.Sprintf("%d", entry.Port)),
	}
	for _, txt := range entry.Text {
		if len(txt) > 8 && txt[:8] == "version=" {
			e.Version = txt[8:]
		}
	}
	return e, true
}
