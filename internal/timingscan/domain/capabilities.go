package domain

import "sort"

const (
	ProtocolTag = "protocol"
	ProtocolTLS = "tls"
	ProtocolTCP = "tcp"
)

// Capabilities describes what a target offers (protocol, versions and any other tags from the plan).
// It is passed by value into every subtask and is never mutated after construction.
type Capabilities struct {
	tags map[string]string
}

func NewCapabilities(tags map[string]string) Capabilities {
	copied := make(map[string]string, len(tags))
	for k, v := range tags {
		copied[k] = v
	}
	return Capabilities{tags: copied}
}

func (c Capabilities) Get(key string) (string, bool) {
	v, ok := c.tags[key]
	return v, ok
}

// Protocol defaults to tcp when the target does not declare one.
func (c Capabilities) Protocol() string {
	if p, ok := c.tags[ProtocolTag]; ok && p != "" {
		return p
	}
	return ProtocolTCP
}

// Satisfies returns true if every required tag is present with the same value.
func (c Capabilities) Satisfies(required map[string]string) bool {
	for k, v := range required {
		if actual, ok := c.tags[k]; !ok || actual != v {
			return false
		}
	}
	return true
}

// Tags returns a copy of the tags, suitable for passing through into reports.
func (c Capabilities) Tags() map[string]string {
	copied := make(map[string]string, len(c.tags))
	for k, v := range c.tags {
		copied[k] = v
	}
	return copied
}

func (c Capabilities) Keys() []string {
	keys := make([]string, 0, len(c.tags))
	for k := range c.tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Endpoint is where a target can currently be reached, together with what it offers.
type Endpoint struct {
	Address      string
	Capabilities Capabilities
}
