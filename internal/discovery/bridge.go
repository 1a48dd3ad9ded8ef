package discovery

import (
	"fmt"
	"time"
)

// Bridge is a salus-bridge instance found on the local network
type Bridge struct {
	// Instance is the advertised instance name (e.g., "salus-bridge on pi4")
	Instance string

	// Host is the mDNS hostname (e.g., "pi4.local.")
	Host string

	// IP is the IPv4 address when one was advertised, else IPv6
	IP string

	// Port is the bridge's HTTP port
	Port int

	// Metadata contains the TXT records, e.g. "version=1.2.0", "tls=false"
	Metadata map[string]string

	// DiscoveredAt is when the bridge answered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	return fmt.Sprintf("%s (%s) at %s:%d", b.Instance, b.Host, b.IP, b.Port)
}

// BaseURL returns the bridge's API base URL
func (b *Bridge) BaseURL() string {
	scheme := "http"
	if b.Metadata["tls"] == "true" {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, hostPort(b.IP, b.Port))
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
