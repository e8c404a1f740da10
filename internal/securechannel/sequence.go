package securechannel

import "fmt"

// sequenceWrapThreshold and sequenceWrapTo implement the standard's
// sequence-number wraparound rule (Part 6 §6.7.2): a sender counts
// 1..4294966271 (2^32 - 1025) and then wraps back to 1 rather than to 0,
// leaving a gap just under the uint32 range so a receiver can always
// tell a wrapped sequence from one that simply overflowed.
const (
	sequenceWrapThreshold uint32 = 4294966271
	sequenceWrapTo        uint32 = 1
)

// SequenceGenerator produces the monotonically increasing sequence numbers
// a sender stamps on every chunk.
type SequenceGenerator struct {
	next uint32
}

// NewSequenceGenerator returns a generator whose first Next() call yields 1.
func NewSequenceGenerator() *SequenceGenerator {
	return &SequenceGenerator{next: 1}
}

// Next returns the next sequence number and advances the generator,
// applying the wrap-to-1 rule once the threshold is passed.
func (g *SequenceGenerator) Next() uint32 {
	v := g.next
	if g.next >= sequenceWrapThreshold {
		g.next = sequenceWrapTo
	} else {
		g.next++
	}
	return v
}

// SequenceVerifier checks that an incoming chunk's sequence number is the
// expected successor of the last one received, honoring the same wrap
// rule, and rejects sequence gaps: a dropped chunk in the middle of a
// sequence aborts the channel.
type SequenceVerifier struct {
	expected uint32
	started  bool
}

// NewSequenceVerifier returns a verifier whose first Verify call adopts
// whatever sequence number it receives; startAt is only the placeholder
// expectation before that call. Gaps are detected from the second number
// on.
func NewSequenceVerifier(startAt uint32) *SequenceVerifier {
	return &SequenceVerifier{expected: startAt}
}

// Verify checks got against the expected next sequence number and advances
// the verifier's expectation, or returns an error describing the gap.
func (v *SequenceVerifier) Verify(got uint32) error {
	if !v.started {
		v.expected = got
		v.started = true
	}
	if got != v.expected {
		return fmt.Errorf("securechannel: sequence number gap: expected %d, got %d", v.expected, got)
	}
	if v.expected >= sequenceWrapThreshold {
		v.expected = sequenceWrapTo
	} else {
		v.expected++
	}
	return nil
}
