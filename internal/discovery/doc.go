// Package discovery advertises sockserve servers over mDNS and finds them.
//
// Each running server is registered as an instance of "_sockserve._tcp"
// named "<server>@<host>". TXT records carry the server name, the service
// it runs, the transport, and for WebSocket servers the upgrade path.
//
// # Usage Example
//
//	scanner := discovery.NewScanner()
//	scanner.Timeout = 3 * time.Second
//	instances, err := scanner.Scan(context.Background())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, inst := range instances {
//	    fmt.Println(inst.Server, inst.URL())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Servers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
