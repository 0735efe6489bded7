package fetch

import "sync/atomic"

// UserAgentRotator hands out user agents round-robin.
// Safe for concurrent use.
type UserAgentRotator struct {
	agents []string
	next   atomic.Uint64
}

// NewUserAgentRotator copies agents; an empty list yields a single generic agent.
func NewUserAgentRotator(agents []string) *UserAgentRotator {
	if len(agents) == 0 {
		agents = []string{"emailscope/1.0"}
	}
	return &UserAgentRotator{agents: append([]string(nil), agents...)}
}

// Next returns the next user agent in rotation
func (r *UserAgentRotator) Next() string {
	i := r.next.Add(1) - 1
	return r.agents[i%uint64(len(r.agents))]
}

// Primary returns the first configured agent, used for robots.txt matching
func (r *UserAgentRotator) Primary() string {
	return r.agents[0]
}
