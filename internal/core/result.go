package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Severity ranks a review comment. The policy engine drops comments below
// the configured floor.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "Low"
}

// ParseSeverity maps a model-provided severity label onto the scale.
// Unknown labels fall back to Low so they never bypass the floor.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "blocker":
		return SeverityCritical
	case "high", "major":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Comment is a single piece of review feedback targeting a line range of a
// changed file.
type Comment struct {
	Path      string
	StartLine int
	Line      int
	Body      string
	Severity  Severity
	Category  string
}

// key is the identity tuple used by the dedupe invariant.
func (c Comment) key() string {
	return fmt.Sprintf("%s:%d-%d:%s", c.Path, c.StartLine, c.Line, strings.TrimSpace(c.Body))
}

// ReviewResult is the validated outcome of one review request, ready for
// publication.
type ReviewResult struct {
	RequestID string
	Summary   string
	Comments  []Comment
}

// ValidateDedupe checks the invariant that no two comments in a result
// target an identical (file, line range, body) tuple.
func (r *ReviewResult) ValidateDedupe() error {
	seen := make(map[string]struct{}, len(r.Comments))
	for _, c := range r.Comments {
		k := c.key()
		if _, dup := seen[k]; dup {
			return fmt.Errorf("duplicate comment for %s:%d", c.Path, c.Line)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// ContentHash returns a stable SHA-256 over the result's summary and sorted
// comment tuples. Together with the request id it keys the publisher's
// idempotency record.
func (r *ReviewResult) ContentHash() string {
	keys := make([]string, 0, len(r.Comments))
	for _, c := range r.Comments {
		keys = append(keys, c.key())
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(r.Summary)))
	for _, k := range keys {
		h.Write([]byte{0})
		h.Write([]byte(k))
	}
	return hex.EncodeToString(h.Sum(nil))
}
