package cache

import "fmt"

// Keyer generates cache keys for the different artifact types.
// Implementations must be deterministic: the same inputs always
// produce the same key.
type Keyer interface {
	// RosterKey generates a key for imported roster data.
	RosterKey(namespace, key string) string

	// RankKey generates a key for a seeded rank order.
	RankKey(tripID string, opts RankKeyOpts) string

	// GraphKey generates a key for a separation graph snapshot.
	GraphKey(rosterHash string, opts GraphKeyOpts) string

	// ArtifactKey generates a key for a rendered artifact.
	ArtifactKey(graphHash string, opts ArtifactKeyOpts) string
}

// RankKeyOpts captures the inputs that change a rank order.
type RankKeyOpts struct {
	LotteryKey string
	RunID      string
}

// GraphKeyOpts captures the inputs that change a graph snapshot.
type GraphKeyOpts struct {
	Participants int
	Relations    int
}

// ArtifactKeyOpts captures the inputs that change a rendered artifact.
type ArtifactKeyOpts struct {
	Format string
	Layout string
}

// DefaultKeyer is the standard key generator.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard key generator.
func NewDefaultKeyer() Keyer {
	return &DefaultKeyer{}
}

// RosterKey generates a key for imported roster data.
// The key format is: roster:namespace:key
func (k *DefaultKeyer) RosterKey(namespace, key string) string {
	return fmt.Sprintf("roster:%s:%s", namespace, key)
}

// RankKey generates a key for a seeded rank order.
func (k *DefaultKeyer) RankKey(tripID string, opts RankKeyOpts) string {
	return hashKey("rank", tripID, opts)
}

// GraphKey generates a key for a separation graph snapshot.
func (k *DefaultKeyer) GraphKey(rosterHash string, opts GraphKeyOpts) string {
	return hashKey("graph", rosterHash, opts)
}

// ArtifactKey generates a key for a rendered artifact.
func (k *DefaultKeyer) ArtifactKey(graphHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", graphHash, opts)
}

// Ensure DefaultKeyer implements Keyer.
var _ Keyer = (*DefaultKeyer)(nil)
