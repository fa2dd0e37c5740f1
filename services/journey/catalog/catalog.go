// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog provides the static reference data of the compliance journey.
//
// The catalog maps each of the five assessment domains to human-readable
// metadata, severity labels and the list of remediation tools that close the
// domain's gap. The default catalog is embedded as YAML; an external file may
// replace it at startup.
//
// Thread Safety:
//
//	A *Catalog is immutable after loading and safe for concurrent use.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
)

// MaxCatalogFileSize bounds external catalog files (256KB).
const MaxCatalogFileSize = 256 * 1024

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// catalogLoadErrors is registered by LoadFile on the registerer it is given.
var catalogLoadErrors = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "journey_catalog_load_errors_total",
	Help: "Total catalog load failures that fell back to the embedded catalog",
})

var catalogValidate = validator.New()

// ErrCatalogTooLarge is returned when an external catalog exceeds MaxCatalogFileSize.
var ErrCatalogTooLarge = errors.New("catalog file too large")

// LoadError describes why a catalog document was rejected.
type LoadError struct {
	// Source is "embedded" or the external file path.
	Source string
	// Problems lists every validation failure found.
	Problems []string
	// Err is the underlying parse or read error, if any.
	Err error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog %s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("catalog %s: %d problem(s): %v", e.Source, len(e.Problems), e.Problems)
}

func (e *LoadError) Unwrap() error { return e.Err }

// =============================================================================
// YAML document
// =============================================================================

type catalogYAML struct {
	Version    string         `yaml:"version" validate:"required"`
	Severities []severityYAML `yaml:"severities" validate:"required,min=1,dive"`
	Tools      []toolYAML     `yaml:"tools" validate:"required,min=1,dive"`
	Domains    []domainYAML   `yaml:"domains" validate:"required,len=5,dive"`
}

type severityYAML struct {
	Level    string `yaml:"level" validate:"required,oneof=critical high moderate low"`
	Timeline string `yaml:"timeline" validate:"required"`
	Effort   string `yaml:"effort" validate:"required"`
	Impact   string `yaml:"impact" validate:"required"`
}

type toolYAML struct {
	ID   string `yaml:"id" validate:"required,max=64"`
	Name string `yaml:"name" validate:"required"`
}

type domainYAML struct {
	Key         string   `yaml:"key" validate:"required,oneof=govern identify control communicate protect"`
	Title       string   `yaml:"title" validate:"required"`
	Description string   `yaml:"description"`
	Tools       []string `yaml:"tools" validate:"dive,required"`
}

// =============================================================================
// Catalog
// =============================================================================

// SeverityLabels holds the human-readable planning labels for a severity tier.
type SeverityLabels struct {
	Timeline        string
	EstimatedEffort string
	Impact          string
}

// DomainInfo is the reference metadata for one domain.
type DomainInfo struct {
	Key         Domain
	Title       string
	Description string
	// Tools is the ordered remediation tool list for the domain.
	Tools []string
}

// Tool is a remediation feature that can close gaps in one or more domains.
type Tool struct {
	ID      string
	Name    string
	Domains []Domain
}

// Catalog is the parsed, validated reference data.
type Catalog struct {
	version    string
	domains    map[Domain]DomainInfo
	tools      map[string]Tool
	toolOrder  []string
	severities map[Severity]SeverityLabels
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsing it on first use.
//
// Outputs:
//
//	*Catalog - The embedded catalog. Never nil on success.
//	error - Non-nil only if the embedded document is invalid.
//
// Thread Safety: Safe for concurrent use.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse("embedded", defaultCatalogYAML)
	})
	return defaultCat, defaultErr
}

// LoadFile loads an external catalog, falling back to the embedded default.
//
// Description:
//
//	Reads and validates the YAML file at path. Any failure is logged as a
//	warning and counted, and the embedded catalog is returned instead, so a
//	broken override never prevents the journey from starting. An empty path
//	returns the embedded catalog directly.
//
// Inputs:
//
//	path - External catalog file. Empty selects the embedded default.
//	logger - Logger for fallback warnings. Nil uses slog.Default().
//	reg - Registerer for the load error counter. Nil leaves it unregistered.
//
// Outputs:
//
//	*Catalog - The loaded catalog.
//	error - Non-nil only if the embedded fallback is also invalid.
func LoadFile(path string, logger *slog.Logger, reg prometheus.Registerer) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := registerLoadErrors(reg); err != nil {
		logger.Warn("catalog metrics not registered", slog.String("error", err.Error()))
	}
	if path == "" {
		return Default()
	}

	cat, err := loadExternal(path)
	if err == nil {
		logger.Info("loaded catalog from external file", slog.String("path", path))
		return cat, nil
	}

	catalogLoadErrors.Inc()
	logger.Warn("external catalog not usable, using embedded default",
		slog.String("path", path),
		slog.String("error", err.Error()))
	return Default()
}

// registerLoadErrors adds the load error counter to reg. The counter is
// shared by every load, so finding it already registered is not an error.
func registerLoadErrors(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	if err := reg.Register(catalogLoadErrors); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return fmt.Errorf("register catalog load errors: %w", err)
	}
	return nil
}

func loadExternal(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	if info.Size() > MaxCatalogFileSize {
		return nil, &LoadError{Source: path, Err: ErrCatalogTooLarge}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	return Parse(path, data)
}

// Parse decodes and validates a catalog document.
//
// Description:
//
//	Beyond the struct-level rules, Parse checks that every domain appears
//	exactly once and tool ids are unique. Domain and tool lists must agree
//	both ways: a domain may only name declared tools, and a declared tool
//	must belong to at least one domain.
//
// Inputs:
//
//	source - Name used in error messages.
//	data - YAML document.
//
// Outputs:
//
//	*Catalog - The validated catalog.
//	error - *LoadError describing every problem found.
func Parse(source string, data []byte) (*Catalog, error) {
	var doc catalogYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}

	var problems []string
	if err := catalogValidate.Struct(&doc); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
		return nil, &LoadError{Source: source, Problems: problems}
	}

	cat := &Catalog{
		version:    doc.Version,
		domains:    make(map[Domain]DomainInfo, len(doc.Domains)),
		tools:      make(map[string]Tool, len(doc.Tools)),
		severities: make(map[Severity]SeverityLabels, len(doc.Severities)),
	}

	for _, s := range doc.Severities {
		cat.severities[Severity(s.Level)] = SeverityLabels{
			Timeline:        s.Timeline,
			EstimatedEffort: s.Effort,
			Impact:          s.Impact,
		}
	}

	for _, t := range doc.Tools {
		if _, dup := cat.tools[t.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate tool id %q", t.ID))
			continue
		}
		cat.tools[t.ID] = Tool{ID: t.ID, Name: t.Name}
		cat.toolOrder = append(cat.toolOrder, t.ID)
	}

	for _, d := range doc.Domains {
		key := Domain(d.Key)
		if _, dup := cat.domains[key]; dup {
			problems = append(problems, fmt.Sprintf("duplicate domain %q", d.Key))
			continue
		}
		seen := make(map[string]bool, len(d.Tools))
		tools := make([]string, 0, len(d.Tools))
		for _, id := range d.Tools {
			tool, ok := cat.tools[id]
			if !ok {
				problems = append(problems, fmt.Sprintf("domain %q references unknown tool %q", d.Key, id))
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			tools = append(tools, id)
			tool.Domains = append(tool.Domains, key)
			cat.tools[id] = tool
		}
		cat.domains[key] = DomainInfo{
			Key:         key,
			Title:       d.Title,
			Description: d.Description,
			Tools:       tools,
		}
	}

	for _, id := range cat.toolOrder {
		if len(cat.tools[id].Domains) == 0 {
			problems = append(problems, fmt.Sprintf("tool %q is not listed by any domain", id))
		}
	}

	if len(problems) > 0 {
		return nil, &LoadError{Source: source, Problems: problems}
	}
	return cat, nil
}

// Version returns the catalog document version.
func (c *Catalog) Version() string { return c.version }

// DomainInfo returns the metadata for d.
func (c *Catalog) DomainInfo(d Domain) (DomainInfo, bool) {
	info, ok := c.domains[d]
	if !ok {
		return DomainInfo{}, false
	}
	info.Tools = append([]string(nil), info.Tools...)
	return info, true
}

// ToolsForDomain returns the ordered tool ids for d, or nil for an unknown domain.
func (c *Catalog) ToolsForDomain(d Domain) []string {
	info, ok := c.domains[d]
	if !ok || len(info.Tools) == 0 {
		return nil
	}
	return append([]string(nil), info.Tools...)
}

// Tool returns the tool with the given id.
func (c *Catalog) Tool(id string) (Tool, bool) {
	t, ok := c.tools[id]
	if !ok {
		return Tool{}, false
	}
	t.Domains = append([]Domain(nil), t.Domains...)
	return t, true
}

// DomainsForTool returns every domain whose tool list contains id.
func (c *Catalog) DomainsForTool(id string) []Domain {
	t, ok := c.tools[id]
	if !ok {
		return nil
	}
	return append([]Domain(nil), t.Domains...)
}

// Tools returns every tool id in declaration order.
func (c *Catalog) Tools() []string {
	return append([]string(nil), c.toolOrder...)
}

// SeverityLabels returns the planning labels for a severity tier.
func (c *Catalog) SeverityLabels(s Severity) SeverityLabels {
	return c.severities[s]
}
