package bouncer

import "github.com/pior/replyroute/internal"

// ServerSelector picks the index of the server to dial.
// attempt counts the failed dials since the last successful one.
type ServerSelector func(key string, attempt, serverCount int) int

// DefaultServerSelector starts from the server Jump Hash assigns to key and
// moves to the next one on every failed attempt, so a network always
// prefers the same server and still tries each of them in turn.
func DefaultServerSelector(key string, attempt, serverCount int) int {
	if serverCount <= 0 {
		return 0
	}
	first := internal.Bucket(key, serverCount)
	return (first + attempt%serverCount) % serverCount
}

// Servers is the address list of one network.
type Servers struct {
	key       string
	addresses []string
	selector  ServerSelector
}

// NewServers creates a server list. key identifies the network to the selector.
func NewServers(key string, selector ServerSelector, addresses ...string) *Servers {
	if selector == nil {
		selector = DefaultServerSelector
	}
	return &Servers{
		key:       key,
		addresses: addresses,
		selector:  selector,
	}
}

// Select returns the address to dial for the given attempt.
func (s *Servers) Select(attempt int) (string, error) {
	if len(s.addresses) == 0 {
		return "", ErrNoServers
	}
	if len(s.addresses) == 1 {
		return s.addresses[0], nil
	}
	return s.addresses[s.selector(s.key, attempt, len(s.addresses))], nil
}
