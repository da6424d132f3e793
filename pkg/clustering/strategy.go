package clustering

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownStrategy = errors.New("unknown clustering strategy")
)

// Strategy selects the clustering pass used between two levels.
type Strategy int

const (
	// Greedy pairs items in insertion order. fast, but the result depends on the input order.
	Greedy Strategy = iota
	// Advanced always merges the globally closest pair first.
	Advanced
)

func (s Strategy) String() string {
	switch s {
	case Greedy:
		return "greedy"
	case Advanced:
		return "advanced"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "greedy", "simple":
		return Greedy, nil
	case "advanced":
		return Advanced, nil
	default:
		return Greedy, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
