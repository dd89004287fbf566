// Package propagation tracks who consumes which constructs and fans
// change events out to them. Engines, paradigms, and pipelines are edited
// in the console but executed elsewhere; this package is how "elsewhere"
// finds out something changed.
package propagation

import (
	"fmt"
	"time"
)

// ConstructType names a kind of versioned construct a consumer can
// depend on.
type ConstructType string

const (
	ConstructEngine   ConstructType = "engine"
	ConstructParadigm ConstructType = "paradigm"
	ConstructPipeline ConstructType = "pipeline"
)

// ConstructTypes lists all construct types.
var ConstructTypes = []ConstructType{ConstructEngine, ConstructParadigm, ConstructPipeline}

// Valid reports whether the construct type is known.
func (c ConstructType) Valid() bool {
	for _, known := range ConstructTypes {
		if c == known {
			return true
		}
	}
	return false
}

// ConsumerType classifies how a consumer integrates with the library.
type ConsumerType string

const (
	ConsumerService ConsumerType = "service"
	ConsumerCLI     ConsumerType = "cli"
	ConsumerLibrary ConsumerType = "library"
)

// Valid reports whether the consumer type is known.
func (c ConsumerType) Valid() bool {
	switch c {
	case ConsumerService, ConsumerCLI, ConsumerLibrary:
		return true
	}
	return false
}

// UsageType records how tightly a dependency binds a consumer to a
// construct.
type UsageType string

const (
	UsageDirect   UsageType = "direct"
	UsageIndirect UsageType = "indirect"
	UsageOptional UsageType = "optional"
)

// Valid reports whether the usage type is known.
func (u UsageType) Valid() bool {
	switch u {
	case UsageDirect, UsageIndirect, UsageOptional:
		return true
	}
	return false
}

// Dependency is one tracked usage of a construct by a consumer.
type Dependency struct {
	ID            string        `json:"id"`
	ConsumerID    string        `json:"consumer_id"`
	ConstructType ConstructType `json:"construct_type"`
	ConstructKey  string        `json:"construct_key"`
	UsageLocation string        `json:"usage_location,omitempty"`
	UsageType     UsageType     `json:"usage_type"`
	IsActive      bool          `json:"is_active"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Validate checks that the dependency is well formed.
func (d *Dependency) Validate() error {
	if !d.ConstructType.Valid() {
		return fmt.Errorf("dependency has unknown construct type %q", d.ConstructType)
	}
	if d.ConstructKey == "" {
		return fmt.Errorf("dependency missing construct key")
	}
	if d.UsageType != "" && !d.UsageType.Valid() {
		return fmt.Errorf("dependency on %s has unknown usage type %q", d.ConstructKey, d.UsageType)
	}
	return nil
}

// ApplyDefaults fills zero-valued dependency fields.
func (d *Dependency) ApplyDefaults() {
	if d.UsageType == "" {
		d.UsageType = UsageDirect
	}
}

// Consumer is a registered downstream user of the construct library.
type Consumer struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ConsumerType ConsumerType `json:"consumer_type"`
	RepoURL      string       `json:"repo_url,omitempty"`
	WebhookURL   string       `json:"webhook_url,omitempty"`
	ContactEmail string       `json:"contact_email,omitempty"`
	AutoUpdate   bool         `json:"auto_update"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validate checks that the consumer registration is well formed.
func (c *Consumer) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("consumer missing name")
	}
	if !c.ConsumerType.Valid() {
		return fmt.Errorf("consumer %s has unknown type %q", c.Name, c.ConsumerType)
	}
	for i := range c.Dependencies {
		if err := c.Dependencies[i].Validate(); err != nil {
			return fmt.Errorf("consumer %s: %w", c.Name, err)
		}
	}
	return nil
}

// DependsOn reports whether the consumer has an active dependency on the
// given construct.
func (c *Consumer) DependsOn(constructType ConstructType, constructKey string) bool {
	for _, d := range c.Dependencies {
		if d.IsActive && d.ConstructType == constructType && d.ConstructKey == constructKey {
			return true
		}
	}
	return false
}
