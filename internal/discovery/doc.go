// Package discovery finds salus-bridge instances on the local network with mDNS.
//
// A running bridge registers itself as "_salus-bridge._tcp" through Advertise.
// Its TXT records carry the bridge version and whether TLS is on. Scan browses
// for that service type and returns one Bridge per instance that answered
// before the timeout.
//
// # Usage Example
//
//	bridges, err := discovery.Scan(5 * time.Second)
//	if err != nil {
//	    return err
//	}
//	for _, b := range bridges {
//	    fmt.Printf("Found: %s at %s\n", b.Instance, b.BaseURL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - The bridge must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
