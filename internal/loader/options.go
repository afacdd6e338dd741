package loader

import (
	"fmt"
	"strings"
)

const (
	DefaultBase      = "app"
	DefaultExtension = ".yaml"
)

// Filter rewrites ids starting with Prefix (case-insensitive) by replacing
// the prefix with Replacement.
type Filter struct {
	Prefix      string `mapstructure:"prefix" yaml:"prefix"`
	Replacement string `mapstructure:"replacement" yaml:"replacement"`
}

// CachePolicy controls the persistent source cache.
type CachePolicy struct {
	Automate bool   `mapstructure:"automate" yaml:"automate"`
	Expires  string `mapstructure:"expires" yaml:"expires"`
}

// Options configures path resolution and caching.
type Options struct {
	// Base is a directory or an http(s) URL.
	Base      string      `mapstructure:"base" yaml:"base"`
	Extension string      `mapstructure:"extension" yaml:"extension"`
	Filters   []Filter    `mapstructure:"filters" yaml:"filters"`
	Cache     CachePolicy `mapstructure:"cache" yaml:"cache"`
}

// DefaultOptions returns base "app", extension ".yaml", caching off.
func DefaultOptions() Options {
	return Options{
		Base:      DefaultBase,
		Extension: DefaultExtension,
		Cache:     CachePolicy{Expires: "1 day"},
	}
}

// withDefaults fills empty fields from DefaultOptions.
func (o Options) withDefaults() Options {
	if o.Base == "" {
		o.Base = DefaultBase
	}
	o.Base = strings.TrimRight(o.Base, "/")
	if o.Extension == "" {
		o.Extension = DefaultExtension
	}
	if !strings.HasPrefix(o.Extension, ".") {
		o.Extension = "." + o.Extension
	}
	return o
}

// Validate checks filters and, when caching is automated, the expiry.
func (o Options) Validate() error {
	for i, f := range o.Filters {
		if f.Prefix == "" {
			return fmt.Errorf("%w: filter %d has an empty prefix", ErrInvalidOptions, i)
		}
	}
	if o.Cache.Automate {
		if _, err := ParseExpiry(o.Cache.Expires); err != nil {
			return err
		}
	}
	return nil
}
