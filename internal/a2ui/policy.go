package a2ui

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Policy selects how much component inference the mapper applies.
type Policy string

const (
	PolicyStrict   Policy = "STRICT"
	PolicyTolerant Policy = "TOLERANT"
	PolicyMixed    Policy = "MIXED"
	PolicyRaw      Policy = "RAW"
)

// DefaultPolicy is used when none is given.
const DefaultPolicy = PolicyTolerant

// ParsePolicy parses s case-insensitively. An empty string yields
// DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToUpper(strings.TrimSpace(s))); p {
	case "":
		return DefaultPolicy, nil
	case PolicyStrict, PolicyTolerant, PolicyMixed, PolicyRaw:
		return p, nil
	default:
		return "", errors.WithHint(
			errors.Newf("unknown policy %q", s),
			"use one of STRICT, TOLERANT, MIXED, RAW",
		)
	}
}

func (p Policy) String() string { return string(p) }
