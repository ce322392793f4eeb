package llm

import (
	"sync"
	"time"
)

// Route names one of the two interchangeable completion endpoints.
type Route string

const (
	RoutePrimary   Route = "primary"
	RouteSecondary Route = "secondary"
)

// Decision is the policy's answer to a transport-level failure.
type Decision int

const (
	// DecisionRetrySecondary re-issues the same history on the other
	// endpoint after a short fixed delay, with no user action.
	DecisionRetrySecondary Decision = iota
	// DecisionFallback exhausts failover; the caller answers with the
	// local fallback responder and offers an explicit retry.
	DecisionFallback
)

// FailoverPolicy decides which endpoint carries the next request and
// when to switch. A successful turn is sticky: the active endpoint
// does not change until the next failure.
type FailoverPolicy struct {
	mu                  sync.Mutex
	primary             string
	secondary           string
	active              Route
	consecutiveFailures int
	retryDelay          time.Duration
}

// NewFailoverPolicy starts on the primary endpoint.
func NewFailoverPolicy(primary, secondary string, retryDelay time.Duration) *FailoverPolicy {
	return &FailoverPolicy{
		primary:    primary,
		secondary:  secondary,
		active:     RoutePrimary,
		retryDelay: retryDelay,
	}
}

// Active returns the route and URL the next request should use.
func (p *FailoverPolicy) Active() (Route, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == RouteSecondary {
		return RouteSecondary, p.secondary
	}
	return RoutePrimary, p.primary
}

// RetryDelay is the fixed pause before an automatic re-issue.
func (p *FailoverPolicy) RetryDelay() time.Duration {
	return p.retryDelay
}

// OnSuccess records a completed turn on the active endpoint.
func (p *FailoverPolicy) OnSuccess() {
	p.mu.Lock()
	p.consecutiveFailures = 0
	p.mu.Unlock()
}

// OnFailure records a transport-level error on the active endpoint and
// returns what to do next. A primary failure switches to the secondary
// and retries automatically; a secondary failure escalates to the
// fallback responder.
func (p *FailoverPolicy) OnFailure() Decision {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == RoutePrimary {
		p.active = RouteSecondary
		p.consecutiveFailures = 0
		return DecisionRetrySecondary
	}
	p.consecutiveFailures++
	return DecisionFallback
}

// Switch toggles the active endpoint unconditionally (user action).
func (p *FailoverPolicy) Switch() Route {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == RoutePrimary {
		p.active = RouteSecondary
	} else {
		p.active = RoutePrimary
	}
	return p.active
}

// ConsecutiveFailures reports failures seen on the secondary endpoint
// since the last success.
func (p *FailoverPolicy) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveFailures
}
