// Package bus carries the real-time side of the platform: the topic
// registry mapping abstract entity types to notification channels, the
// Redis-backed notification fan-out, and the ephemeral edit-context store
// used for collaborative editing presence.
package bus

import (
	"fmt"
	"sort"
)

// TopicPair holds the two notification channels of one abstract type.
type TopicPair struct {
	// Added is the channel carrying creation events.
	Added string

	// Edited is the channel carrying edit events.
	Edited string
}

// Topics is an explicit registry mapping abstract type tags to their
// notification channel pair. It is constructed once at process start and
// passed to the services that publish; there is no string concatenation at
// call sites and no global lookup table.
type Topics struct {
	pairs map[string]TopicPair
}

// NewTopics builds a registry for the given abstract type tags. Channel
// names follow the "<type>.added" / "<type>.edited" convention.
func NewTopics(abstractTypes ...string) *Topics {
	t := &Topics{pairs: make(map[string]TopicPair, len(abstractTypes))}
	for _, at := range abstractTypes {
		t.pairs[at] = TopicPair{
			Added:  fmt.Sprintf("%s.added", at),
			Edited: fmt.Sprintf("%s.edited", at),
		}
	}
	return t
}

// Lookup returns the channel pair of an abstract type. The boolean reports
// whether the type was registered.
func (t *Topics) Lookup(abstractType string) (TopicPair, bool) {
	p, ok := t.pairs[abstractType]
	return p, ok
}

// Added returns the creation channel of an abstract type, or the empty
// string if the type is not registered.
func (t *Topics) Added(abstractType string) string {
	return t.pairs[abstractType].Added
}

// Edited returns the edit channel of an abstract type, or the empty string
// if the type is not registered.
func (t *Topics) Edited(abstractType string) string {
	return t.pairs[abstractType].Edited
}

// Types returns the sorted list of registered abstract types.
func (t *Topics) Types() []string {
	out := make([]string, 0, len(t.pairs))
	for at := range t.pairs {
		out = append(out, at)
	}
	sort.Strings(out)
	return out
}
