package stream

import (
	"sync"
)

// DefaultMaxTotal caps concurrent streams across all clients.
const DefaultMaxTotal = 1000

// Reasons a stream is refused, used as the rejection metric label.
const (
	rejectPerIP  = "per_ip"
	rejectGlobal = "global"
)

// streamLimiter budgets concurrent snapshot streams. SSE and WebSocket draw
// from one per-client budget and one global budget; open streams are also
// tallied per transport for connection logs.
type streamLimiter struct {
	mu          sync.Mutex
	perIP       map[string]int
	byTransport map[string]int
	total       int
	maxPerIP    int
	maxTotal    int
}

func newStreamLimiter(maxPerIP, maxTotal int) *streamLimiter {
	if maxPerIP <= 0 {
		maxPerIP = DefaultMaxConcurrentPerIP
	}
	if maxTotal <= 0 {
		maxTotal = DefaultMaxTotal
	}
	return &streamLimiter{
		perIP:       make(map[string]int),
		byTransport: make(map[string]int),
		maxPerIP:    maxPerIP,
		maxTotal:    maxTotal,
	}
}

// acquire admits one stream from ip over transport. When it refuses, reason
// names the exhausted budget.
func (l *streamLimiter) acquire(ip, transport string) (reason string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return rejectGlobal, false
	}
	if l.perIP[ip] >= l.maxPerIP {
		return rejectPerIP, false
	}

	l.perIP[ip]++
	l.byTransport[transport]++
	l.total++
	return "", true
}

// release returns a stream admitted by acquire.
func (l *streamLimiter) release(ip, transport string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total--
	l.perIP[ip]--
	if l.perIP[ip] <= 0 {
		delete(l.perIP, ip)
	}
	l.byTransport[transport]--
	if l.byTransport[transport] <= 0 {
		delete(l.byTransport, transport)
	}
}

// count returns the number of open streams from ip.
func (l *streamLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.perIP[ip]
}

// open returns the number of open streams using transport.
func (l *streamLimiter) open(transport string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byTransport[transport]
}
