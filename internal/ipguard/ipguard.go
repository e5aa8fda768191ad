// Per-IP admission control: a concurrent-connection cap with a whitelist of
// exempted ranges, backed by the same IP-range parser the teacher uses for
// its play-side whitelist.
//
// Grounded on rtmp_server.go's ip_count/ip_limit/isIPExempted/RemoveIP. The
// teacher calls this CanPlay's counterpart for the play side; here it gates
// CanPublish instead, since this core only ever accepts a publisher.
package ipguard

import (
	"net"
	"strings"
	"sync"

	"github.com/netdata/go.d.plugin/pkg/iprange"
)

// Guard tracks concurrent connections per IP against a configured limit,
// exempting addresses that fall in a configured whitelist.
type Guard struct {
	mu    sync.Mutex
	count map[string]uint32

	limit     uint32
	whitelist string
}

// New builds a Guard. A limit of 0 disables the per-IP cap entirely.
func New(limit uint32, whitelist string) *Guard {
	return &Guard{
		count:     make(map[string]uint32),
		limit:     limit,
		whitelist: whitelist,
	}
}

// CanPublish reports whether ip is allowed to start a new publish, and if
// so, reserves a slot for it. The caller must call Release when the
// connection ends.
func (g *Guard) CanPublish(ip string) bool {
	if g.limit == 0 || g.isExempted(ip) {
		g.mu.Lock()
		g.count[ip]++
		g.mu.Unlock()
		return true
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.count[ip] >= g.limit {
		return false
	}
	g.count[ip]++
	return true
}

// Release frees the slot ip was holding, once its connection ends.
func (g *Guard) Release(ip string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := g.count[ip]
	if c <= 1 {
		delete(g.count, ip)
	} else {
		g.count[ip] = c - 1
	}
}

func (g *Guard) isExempted(ipStr string) bool {
	if g.whitelist == "" {
		return false
	}
	if g.whitelist == "*" {
		return true
	}

	ip := net.ParseIP(ipStr)
	for _, part := range strings.Split(g.whitelist, ",") {
		rang, err := iprange.ParseRange(part)
		if err != nil {
			continue
		}
		if rang.Contains(ip) {
			return true
		}
	}
	return false
}
