// Package pipeline provides the load → place → encode pipeline for molplace.
//
// The CLI and the HTTP API both run placements through a [Runner], so that
// caching, run records and output encoding behave the same everywhere.
//
// # Architecture
//
// A run has three stages:
//
//  1. Load: decode and validate the composition (TOML or JSON)
//  2. Place: look the result up in the cache, or run the placement task
//  3. Encode: write the result in every requested output format
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, runs, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Path:    "vesicle.toml",
//	    Formats: []string{"json", "xyz"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	xyz := result.Artifacts["xyz"]
//
// Long-running callers prepare a [Job] first, which assigns the run ID, and
// execute it later:
//
//	job, err := runner.Prepare(ctx, opts)
//	go job.Run(ctx)
//	fmt.Println(job.ID())
package pipeline

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/molplace/pkg/cache"
	"github.com/matzehuels/molplace/pkg/composition"
	"github.com/matzehuels/molplace/pkg/errors"
	molio "github.com/matzehuels/molplace/pkg/io"
	"github.com/matzehuels/molplace/pkg/placement"
	"github.com/matzehuels/molplace/pkg/store"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

// Composition encodings.
const (
	EncodingTOML = "toml"
	EncodingJSON = "json"
)

// Output formats.
const (
	FormatJSON = molio.FormatJSON
	FormatXYZ  = molio.FormatXYZ
)

// DefaultFormat is the output format used when none is requested.
const DefaultFormat = FormatJSON

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatJSON: true,
	FormatXYZ:  true,
}

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Input: either Path (CLI) or inline Composition text (API).
	Path        string `json:"-"`
	Composition string `json:"composition,omitempty"`
	Encoding    string `json:"encoding,omitempty"` // toml or json; inferred from Path

	// Placement overrides. Zero keeps the composition's value.
	Seed                uint64 `json:"seed,omitempty"`
	MaxTrials           int    `json:"max_trials,omitempty"`
	MaxCorrectionTrials int    `json:"max_correction_trials,omitempty"`
	SkipUnplaceable     bool   `json:"skip_unplaceable,omitempty"`

	// Output
	Formats []string `json:"formats,omitempty"`
	Refresh bool     `json:"refresh,omitempty"` // ignore cached results

	// Runtime options (not serialized)
	Logger   *log.Logger        `json:"-"`
	Observer placement.Observer `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Placement is the placed system.
	Placement *placement.Result

	// Composition is the loaded composition.
	Composition *composition.Composition

	// CompositionHash is the content hash of the decoded composition.
	CompositionHash string

	// Artifacts contains encoded outputs keyed by format.
	Artifacts map[string][]byte

	// Run is the stored run record.
	Run *store.Run

	// Stats contains timing information.
	Stats Stats

	// CacheInfo tracks whether the placement came from the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	LoadTime   time.Duration
	PlaceTime  time.Duration
	EncodeTime time.Duration
}

// CacheInfo tracks cache usage.
type CacheInfo struct {
	Key          string
	PlacementHit bool
}

// =============================================================================
// Validation Functions
// =============================================================================

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: json, xyz)", format)
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ParseFormats splits a comma-separated format list.
func ParseFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(strings.ToLower(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults.
// This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Path == "" && o.Composition == "" {
		return errors.New(errors.ErrCodeInvalidInput, "a composition path or inline composition is required")
	}
	if o.Path != "" {
		if err := errors.ValidatePath(o.Path); err != nil {
			return err
		}
	}
	if o.Encoding == "" {
		o.Encoding = EncodingTOML
		if strings.HasSuffix(strings.ToLower(o.Path), ".json") {
			o.Encoding = EncodingJSON
		}
	}
	if o.Encoding != EncodingTOML && o.Encoding != EncodingJSON {
		return errors.New(errors.ErrCodeInvalidFormat, "invalid encoding: %q (must be toml or json)", o.Encoding)
	}
	if o.MaxTrials < 0 || o.MaxCorrectionTrials < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "trial limits cannot be negative")
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// PlacementKeyOpts returns cache key options for a composition with the
// given effective seed and limits.
func (o *Options) PlacementKeyOpts(c *composition.Composition) cache.PlacementKeyOpts {
	return cache.PlacementKeyOpts{
		Seed:                c.Seed,
		MaxTrials:           c.MaxTrials,
		MaxCorrectionTrials: c.MaxCorrectionTrials,
		SkipUnplaceable:     o.SkipUnplaceable,
	}
}
