package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// keyVersion is mixed into every key. Bump it when the encoded placement
// changes shape so stale entries are never decoded.
const keyVersion = 1

// PlacementKeyOpts holds the run options that change a placement result.
type PlacementKeyOpts struct {
	Seed                uint64 `json:"seed"`
	MaxTrials           int    `json:"max_trials"`
	MaxCorrectionTrials int    `json:"max_correction_trials"`
	SkipUnplaceable     bool   `json:"skip_unplaceable"`
}

// Keyer derives cache keys.
type Keyer interface {
	// PlacementKey keys a placement result by composition hash and options.
	PlacementKey(compositionHash string, opts PlacementKeyOpts) string

	// TopologyKey keys a rendered topology graph.
	TopologyKey(source, format string) string
}

// DefaultKeyer produces "placement:<sha256>" and "topology:<sha256>" keys.
type DefaultKeyer struct{}

func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) PlacementKey(compositionHash string, opts PlacementKeyOpts) string {
	return digestKey("placement", compositionHash, opts)
}

func (DefaultKeyer) TopologyKey(source, format string) string {
	return digestKey("topology", source, format)
}

// Scoped returns a Keyer that prefixes every key of inner with "scope:".
// Deployments sharing one Redis instance use distinct scopes. An empty scope
// returns inner unchanged; a nil inner means DefaultKeyer.
func Scoped(inner Keyer, scope string) Keyer {
	if inner == nil {
		inner = DefaultKeyer{}
	}
	if scope == "" {
		return inner
	}
	return scopedKeyer{inner: inner, prefix: scope + ":"}
}

type scopedKeyer struct {
	inner  Keyer
	prefix string
}

func (k scopedKeyer) PlacementKey(h string, opts PlacementKeyOpts) string {
	return k.prefix + k.inner.PlacementKey(h, opts)
}

func (k scopedKeyer) TopologyKey(source, format string) string {
	return k.prefix + k.inner.TopologyKey(source, format)
}

// digestKey returns kind + ":" + the SHA-256 of the JSON encoded parts.
func digestKey(kind string, parts ...any) string {
	raw, _ := json.Marshal(append([]any{keyVersion}, parts...))
	return kind + ":" + Hash(raw)
}

// Hash returns the hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashJSON hashes the JSON encoding of v. Map keys are encoded in sorted
// order, so equal values always hash equally.
func HashJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return Hash(raw), nil
}
