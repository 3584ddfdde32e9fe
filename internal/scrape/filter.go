package scrape

// DefaultMinSubscribers is the admission floor applied when no policy is
// configured.
const DefaultMinSubscribers = 1000

// AdmissionPolicy decides whether an enriched channel is worth the cost of a
// write. Rejection is silent, never an error.
type AdmissionPolicy interface {
	Admit(ch Channel) bool
}

// MinSubscribersPolicy admits channels at or above a subscriber floor.
type MinSubscribersPolicy struct {
	Min int64
}

// Admit reports whether ch meets the subscriber floor.
func (p MinSubscribersPolicy) Admit(ch Channel) bool {
	return ch.Subscribers >= p.Min
}
