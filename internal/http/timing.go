package http

import (
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"
)

// TimingInfo breaks a request's wall time into phases.
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
}

// Millis converts d to fractional milliseconds.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// phaseTrace collects the httptrace callbacks of one request.
//
// net/http calls them from dial and write goroutines, so every field is
// guarded by mu. A dial started for the request may complete after the
// request was handed another pooled connection: dial phases reported after
// GotConn, and any callback after finish, are dropped.
type phaseTrace struct {
	mu           sync.Mutex
	timing       TimingInfo
	lastPhaseEnd time.Time
	dnsStart     time.Time
	connectStart time.Time
	tlsStart     time.Time
	gotConn      bool
	done         bool
}

func newPhaseTrace(start time.Time) *phaseTrace {
	return &phaseTrace{
		timing:       TimingInfo{StartTime: start},
		lastPhaseEnd: start,
	}
}

// update runs fn under the lock unless the trace is finished, or fn
// records a dial phase and the connection was already obtained.
func (p *phaseTrace) update(dialPhase bool, fn func(now time.Time)) {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || (dialPhase && p.gotConn) {
		return
	}
	fn(now)
}

func (p *phaseTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			p.update(true, func(now time.Time) { p.dnsStart = now })
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			p.update(true, func(now time.Time) {
				if !p.dnsStart.IsZero() {
					p.timing.DNSLookupTime = now.Sub(p.dnsStart)
					p.lastPhaseEnd = now
				}
			})
		},
		ConnectStart: func(string, string) {
			p.update(true, func(now time.Time) { p.connectStart = now })
		},
		ConnectDone: func(_, _ string, err error) {
			p.update(true, func(now time.Time) {
				if err == nil && !p.connectStart.IsZero() {
					p.timing.TCPConnectTime = now.Sub(p.connectStart)
					p.lastPhaseEnd = now
				}
			})
		},
		TLSHandshakeStart: func() {
			p.update(true, func(now time.Time) { p.tlsStart = now })
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			p.update(true, func(now time.Time) {
				if err == nil && !p.tlsStart.IsZero() {
					p.timing.TLSHandshakeTime = now.Sub(p.tlsStart)
					p.lastPhaseEnd = now
				}
			})
		},
		GotConn: func(info httptrace.GotConnInfo) {
			p.update(false, func(time.Time) {
				p.gotConn = true
				if info.Reused {
					p.timing.DNSLookupTime = 0
					p.timing.TCPConnectTime = 0
					p.timing.TLSHandshakeTime = 0
				}
			})
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			p.update(false, func(now time.Time) { p.lastPhaseEnd = now })
		},
		GotFirstResponseByte: func() {
			p.update(false, func(now time.Time) { p.timing.TimeToFirstByte = now.Sub(p.lastPhaseEnd) })
		},
	}
}

// finish stops recording and returns the phases collected so far.
func (p *phaseTrace) finish() TimingInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done = true
	return p.timing
}
