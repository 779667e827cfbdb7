package config

import (
	"math"
	"strconv"
	"strings"
)

// DefaultPort is used when PORT is missing or not a usable number
const DefaultPort = 5173

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port int
}

// LoadServerConfig loads server configuration from environment variables
func LoadServerConfig(getenv func(string) string) ServerConfig {
	return ServerConfig{
		Port: ResolvePort(getenv("PORT")),
	}
}

// ResolvePort parses a textual port number the way JavaScript's Number()
// reads a string: decimal with optional fraction and exponent, or an unsigned
// 0x, 0o or 0b literal. Empty, non-numeric, zero, infinite and fractional
// values fall back to DefaultPort. Out-of-range numbers are returned as-is
// and left for the listener to reject.
func ResolvePort(raw string) int {
	value, ok := parseNumber(strings.TrimSpace(raw))
	if !ok || value == 0 || math.IsInf(value, 0) || value != math.Trunc(value) {
		return DefaultPort
	}
	return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, value)))
}

func parseNumber(s string) (float64, bool) {
	if s == "" || strings.Contains(s, "_") {
		return 0, false
	}

	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			n, err := strconv.ParseUint(s, 0, 64)
			if err != nil {
				return 0, false
			}
			return float64(n), true
		}
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Addr returns the listen address for the configured port
func (c ServerConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
