// Package discovery advertises the relay on the local network over mDNS so
// LAN clients can find a server without configuration.
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"
)

const (
	serviceType   = "_sketchwire._tcp"
	serviceDomain = "local."
)

// Advertiser publishes the relay endpoint as a zeroconf service.
type Advertiser struct {
	server *zeroconf.Server
	log    zerolog.Logger
}

// Advertise registers the service under the given instance name using the
// port parsed from addr (host:port).
func Advertise(instance, addr string, logger *zerolog.Logger) (*Advertiser, error) {
	lg := zerolog.Nop()
	if logger != nil {
		lg = *logger
	}

	port, err := portFromAddr(addr)
	if err != nil {
		return nil, err
	}

	server, err := zeroconf.Register(instance, serviceType, serviceDomain, port,
		[]string{"path=/ws", "proto=ws"}, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}

	lg.Info().Str("instance", instance).Int("port", port).Msg("mdns advertisement started")
	return &Advertiser{server: server, log: lg}, nil
}

// Shutdown stops the advertisement.
func (a *Advertiser) Shutdown() {
	a.server.Shutdown()
	a.log.Debug().Msg("mdns advertisement stopped")
}

func portFromAddr(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// Bare ":8080" style addrs are valid listen addrs but some callers
		// pass just a port.
		portStr = strings.TrimPrefix(addr, ":")
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("cannot derive mdns port from addr %q", addr)
	}
	return port, nil
}
