package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

// ValidationResult separates fatal misconfiguration from warnings about
// values that were clamped to a safe default.
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

func (r *ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings, for callers that just
// want to log everything found.
func (r *ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"warning": true,
	"error": true,
}

var validTunnelModes = map[string]bool{
	"cloudflared": true,
	"managed":     true,
}

// ValidateTiered checks the config and clamps dangerous zero/out-of-range
// values to safe defaults. Structural problems (bad URL, bad tunnel
// mode) are fatal; clamped numeric ranges and unknown-but-harmless
// values are warnings.
func (c *Config) ValidateTiered() *ValidationResult {
	result := &ValidationResult{}

	if c.TokenURL != "" {
		u, err := url.Parse(c.TokenURL)
		if err != nil {
			result.Fatals = append(result.Fatals, fmt.Errorf("token_url %q is not a valid URL: %w", c.TokenURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			result.Fatals = append(result.Fatals, fmt.Errorf("token_url scheme must be http or https, got %q", u.Scheme))
		}
	}

	for _, r := range c.ClientSecret {
		if unicode.IsControl(r) {
			result.Fatals = append(result.Fatals, fmt.Errorf("client_secret contains control characters"))
			break
		}
	}

	if c.SlotCount < 1 {
		result.Warnings = append(result.Warnings, fmt.Errorf("slot_count %d is below minimum 1, clamping", c.SlotCount))
		c.SlotCount = 1
	} else if c.SlotCount > 10 {
		result.Warnings = append(result.Warnings, fmt.Errorf("slot_count %d exceeds maximum 10, clamping", c.SlotCount))
		c.SlotCount = 10
	}

	if c.TunnelMode != "" && !validTunnelModes[strings.ToLower(c.TunnelMode)] {
		result.Fatals = append(result.Fatals, fmt.Errorf("tunnel_mode %q is not valid (use cloudflared or managed)", c.TunnelMode))
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), defaulting to info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		result.Warnings = append(result.Warnings, fmt.Errorf("log_format %q is not valid (use text or json), defaulting to text", c.LogFormat))
		c.LogFormat = "text"
	}

	return result
}
