package model

import (
	"encoding/hex"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/crypto/sha3"
)

// timeLabelPattern matches an hour:minute label such as 9:05 or 17:30.
var timeLabelPattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)

// NormalizeLabel canonicalizes a time label.
// "9:05" becomes "09:05"; labels that are not hour:minute are only trimmed.
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	m := timeLabelPattern.FindStringSubmatch(label)
	if m == nil {
		return label
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2]
}

// NormalizeLabels returns the sorted set of distinct, normalized, non-empty labels.
// The input slice is not modified.
func NormalizeLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		n := NormalizeLabel(l)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Signature is a stable digest over a set of time labels.
// Two signatures are equal exactly when the normalized label sets are equal.
type Signature string

// NewSignature computes the signature of labels.
// It is invariant under reordering and duplication of labels.
//
// Design decision: We hash with SHA3-256 rather than keeping the joined
// labels so that the value has a fixed size in logs and in the history store.
func NewSignature(labels []string) Signature {
	set := NormalizeLabels(labels)
	sum := sha3.Sum256([]byte(strings.Join(set, "\n")))
	return Signature(hex.EncodeToString(sum[:]))
}

// Short returns the first 12 hex characters for log output.
func (s Signature) Short() string {
	if len(s) <= 12 {
		return string(s)
	}
	return string(s[:12])
}
