package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sevigo/reviewd/internal/core"
)

var (
	ErrRepoPolicyNotFound = errors.New("repo policy file not found")
	ErrRepoPolicyParsing  = errors.New("repo policy parsing failed")
)

// RepoPolicyFile is the name of the optional per-repository override file,
// read from the default branch of the repository under review.
const RepoPolicyFile = ".reviewd.yml"

// RepoPolicy carries per-repository overrides of the review policy. Absent
// fields keep the process-wide values.
type RepoPolicy struct {
	SeverityFloor string   `yaml:"severity_floor"`
	AllowPaths    []string `yaml:"allow_paths"`
	DenyPaths     []string `yaml:"deny_paths"`
}

// ParseRepoPolicy parses the contents of a .reviewd.yml file.
func ParseRepoPolicy(data []byte) (*RepoPolicy, error) {
	var p RepoPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepoPolicyParsing, err)
	}
	return &p, nil
}

// Merge applies the repository overrides on top of the process-wide policy
// and returns the effective policy for one request.
func (p *RepoPolicy) Merge(base PolicyConfig) PolicyConfig {
	out := base
	if p == nil {
		return out
	}
	if p.SeverityFloor != "" {
		out.SeverityFloor = core.ParseSeverity(p.SeverityFloor)
	}
	if len(p.AllowPaths) > 0 {
		out.AllowPaths = p.AllowPaths
	}
	if len(p.DenyPaths) > 0 {
		out.DenyPaths = p.DenyPaths
	}
	return out
}
