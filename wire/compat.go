package wire

import (
	"os"

	"github.com/go-kit/log"
)

// Config controls optional codec behaviors. The zero value matches the wire
// format's plain semantics; schema flags still apply on top of it.
type Config struct {
	// PreserveUnknownFields: when true, every message keeps unknown fields as
	// if its schema had PreserveUnknown set.
	PreserveUnknownFields bool `yaml:"preserve_unknown_fields"`

	// PopulateDefaultsOnDecode: when true, non-repeated primitive and enum
	// fields without an explicit default are set to their zero value at the
	// start of a decode, so an absent field is still readable.
	PopulateDefaultsOnDecode bool `yaml:"populate_defaults_on_decode"`

	// AllowMissingRequired: when true, an absent required field is silently
	// skipped on encode instead of failing with ErrMissingRequired.
	AllowMissingRequired bool `yaml:"allow_missing_required"`

	// Factories create host instances per message name. They are required
	// for messages marked External and override Record for the rest.
	Factories map[string]func() Instance `yaml:"-"`

	// Logger receives debug lines about skipped and mismatched fields.
	Logger log.Logger `yaml:"-"`

	// Metrics, when set, counts codec activity.
	Metrics *Metrics `yaml:"-"`
}

var config = Config{}

// SetConfig sets the configuration used by codecs synthesized afterwards.
func SetConfig(c Config) { config = c }

// DefaultConfig returns the current package-level configuration.
func DefaultConfig() Config { return config }

func (c Config) logger() log.Logger {
	if c.Logger == nil {
		return log.NewNopLogger()
	}
	return c.Logger
}

func init() {
	// Optional env toggles for test harnesses; defaults remain unchanged if unset.
	if v := os.Getenv("PROTOSYNTH_PRESERVE_UNKNOWN"); v == "1" || v == "true" {
		config.PreserveUnknownFields = true
	}
	if v := os.Getenv("PROTOSYNTH_POPULATE_DEFAULTS_ON_DECODE"); v == "1" || v == "true" {
		config.PopulateDefaultsOnDecode = true
	}
	if v := os.Getenv("PROTOSYNTH_ALLOW_MISSING_REQUIRED"); v == "1" || v == "true" {
		config.AllowMissingRequired = true
	}
}
