// Package scraper defines the core types shared across the scraping pipeline.
package scraper

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// EntityType names the kind of page a target scrapes.
type EntityType string

// Supported entity types.
const (
	EntityItem  EntityType = "item"
	EntityQuest EntityType = "quest"
)

// ParseEntityType validates a configured entity name.
func ParseEntityType(raw string) (EntityType, error) {
	switch EntityType(strings.ToLower(strings.TrimSpace(raw))) {
	case EntityItem:
		return EntityItem, nil
	case EntityQuest:
		return EntityQuest, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", raw)
	}
}

// RuleKind identifies one variant of exclusion rule.
type RuleKind string

// Exclusion rule variants.
const (
	RuleNameContains RuleKind = "name_contains"
	RuleNameRegex    RuleKind = "name_regex"
	RuleBodyContains RuleKind = "body_contains"
	RuleSectionRegex RuleKind = "section_regex"
	RuleIDListed     RuleKind = "id_listed"
	RuleIDException  RuleKind = "id_exception"
)

// RuleSpec is the configuration form of an exclusion rule. Only the fields
// relevant to Kind are read.
type RuleSpec struct {
	Kind     RuleKind       `mapstructure:"kind" json:"kind"`
	Value    string         `mapstructure:"value" json:"value,omitempty"`
	Pattern  string         `mapstructure:"pattern" json:"pattern,omitempty"`
	Selector string         `mapstructure:"selector" json:"selector,omitempty"`
	IDs      map[int]string `mapstructure:"ids" json:"ids,omitempty"`
	Reason   string         `mapstructure:"reason" json:"reason,omitempty"`
}

// Target describes one dense ID space on the upstream site.
type Target struct {
	Name         string
	Entity       EntityType
	Expansion    string
	LastID       int
	NotFoundName string
	MaxLevel     int
	// Rules replaces the entity's built-in rule set when non-empty.
	Rules []RuleSpec
}

// Validate checks the target can drive a run.
func (t Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("target name is required")
	}
	if _, err := ParseEntityType(string(t.Entity)); err != nil {
		return fmt.Errorf("target %s: %w", t.Name, err)
	}
	if strings.TrimSpace(t.Expansion) == "" {
		return fmt.Errorf("target %s: expansion is required", t.Name)
	}
	if t.LastID <= 0 {
		return fmt.Errorf("target %s: last_id must be > 0", t.Name)
	}
	return nil
}

// URL returns the page address for id, e.g. https://host/classic/item=42.
func (t Target) URL(base string, id int) string {
	return fmt.Sprintf("%s/%s/%s=%d", strings.TrimRight(base, "/"), t.Expansion, t.Entity, id)
}

// Folder is the relative directory holding the target's artifacts.
func (t Target) Folder() string {
	return path.Join(t.Expansion, string(t.Entity)+"s")
}

// ArtifactName is the file name of the cached page for id.
func (t Target) ArtifactName(id int) string {
	return fmt.Sprintf("%s-%d.html", t.Entity, id)
}

// Artifact is the raw page content for one ID.
type Artifact struct {
	ID      int
	Content string
	// Fresh reports whether the content carries today's freshness marker.
	Fresh bool
}

// Entity is the typed payload of an available record.
type Entity interface {
	// Columns returns the output row, starting with id and name.
	Columns() []string
}

// Record is the parsed result for one ID. A non-empty Reason marks the record
// as not available.
type Record struct {
	ID     int
	Name   string
	Reason string
	Entity Entity
}

// Available reports whether the record belongs to the available output.
func (r Record) Available() bool {
	return r.Reason == "" && r.Entity != nil
}

// Excluded builds a not-available record.
func Excluded(id int, name, reason string) Record {
	return Record{ID: id, Name: name, Reason: reason}
}

// RunSummary describes a completed run.
type RunSummary struct {
	RunID        string        `json:"run_id"`
	Target       string        `json:"target"`
	Entity       EntityType    `json:"entity"`
	Expansion    string        `json:"expansion"`
	LastID       int           `json:"last_id"`
	Processed    int           `json:"processed"`
	Available    int           `json:"available"`
	NotAvailable int           `json:"not_available"`
	StartedAt    time.Time     `json:"started_at"`
	Elapsed      time.Duration `json:"elapsed"`
	Outputs      []string      `json:"outputs,omitempty"`

	// Checksums maps output file names to hex SHA-256 digests.
	Checksums map[string]string `json:"checksums,omitempty"`
}
