package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation.
// This keeps artifacts from different lottery programs (or test runs
// against production data) in separate cache namespaces.
//
// Example usage:
//
//	// Winter School keys
//	wsKeyer := NewScopedKeyer(NewDefaultKeyer(), "ws:")
//
//	// Unscoped keys
//	globalKeyer := NewDefaultKeyer()
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RosterKey generates a prefixed key for imported roster data.
func (k *ScopedKeyer) RosterKey(namespace, key string) string {
	return k.prefix + k.inner.RosterKey(namespace, key)
}

// RankKey generates a prefixed key for a seeded rank order.
func (k *ScopedKeyer) RankKey(tripID string, opts RankKeyOpts) string {
	return k.prefix + k.inner.RankKey(tripID, opts)
}

// GraphKey generates a prefixed key for a separation graph snapshot.
func (k *ScopedKeyer) GraphKey(rosterHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(rosterHash, opts)
}

// ArtifactKey generates a prefixed key for a rendered artifact.
func (k *ScopedKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(graphHash, opts)
}
