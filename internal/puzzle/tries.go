package puzzle

import (
	"strconv"
	"strings"
)

// Tries is the maximum number of mistakes allowed in a session.
// Unlimited means mistakes never end the game.
type Tries int

const (
	Unlimited    Tries = -1
	DefaultTries Tries = 4
)

// ParseTries reads the "tries" query value. "inf…" (any case) is unlimited;
// otherwise the leading integer is used. Empty, unparsable or negative
// values fall back to DefaultTries.
func ParseTries(raw string) Tries {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return DefaultTries
	}
	if strings.HasPrefix(s, "inf") {
		return Unlimited
	}
	n, ok := leadingInt(s)
	if !ok || n < 0 {
		return DefaultTries
	}
	return Tries(n)
}

// Finite reports whether t bounds the number of mistakes.
func (t Tries) Finite() bool { return t >= 0 }

// Remaining returns how many mistakes are still allowed, or -1 if unlimited.
func (t Tries) Remaining(mistakes int) int {
	if !t.Finite() {
		return -1
	}
	if left := int(t) - mistakes; left > 0 {
		return left
	}
	return 0
}

func (t Tries) String() string {
	if !t.Finite() {
		return "inf"
	}
	return strconv.Itoa(int(t))
}

// MarshalJSON writes unlimited as "inf" and finite values as numbers.
func (t Tries) MarshalJSON() ([]byte, error) {
	if !t.Finite() {
		return []byte(`"inf"`), nil
	}
	return []byte(strconv.Itoa(int(t))), nil
}
