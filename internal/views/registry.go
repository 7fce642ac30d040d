// Package views serves the ERP list views: it fetches, filters and paginates
// backend lists and remembers each desk's page size.
package views

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-desk/configs"
	"github.com/odyssey-erp/odyssey-desk/internal/format"
	"github.com/odyssey-erp/odyssey-desk/internal/listing"
)

// ErrDuplicateView is returned when two registry entries share a name.
var ErrDuplicateView = errors.New("views: duplicate view name")

// Column is one table column.
type Column struct {
	Key   string      `yaml:"key" json:"key" validate:"required"`
	Label string      `yaml:"label" json:"label" validate:"required"`
	Kind  format.Kind `yaml:"kind" json:"kind,omitempty" validate:"omitempty,oneof=text money date status bool"`
}

// StatusOption is a value of the status dropdown.
type StatusOption struct {
	Value string `yaml:"value" json:"value" validate:"required"`
	Label string `yaml:"label" json:"label"`
}

// Definition describes one list view.
type Definition struct {
	Name       string         `yaml:"name" json:"name" validate:"required,excludesall=/ "`
	Title      string         `yaml:"title" json:"title" validate:"required"`
	Path       string         `yaml:"path" json:"path" validate:"required"`
	SearchPath string         `yaml:"search_path" json:"search_path,omitempty"`
	Mode       listing.Mode   `yaml:"mode" json:"mode" validate:"omitempty,oneof=client server"`
	Currency   string         `yaml:"currency" json:"currency,omitempty" validate:"omitempty,len=3"`
	Fields     listing.Fields `yaml:"fields" json:"fields"`
	Statuses   []StatusOption `yaml:"statuses" json:"statuses,omitempty" validate:"dive"`
	Columns    []Column       `yaml:"columns" json:"columns" validate:"required,min=1,dive"`
}

// Searchable reports whether the view has a lookup endpoint.
func (d Definition) Searchable() bool {
	return d.SearchPath != ""
}

// Registry holds the list views in declaration order.
type Registry struct {
	defs  map[string]Definition
	order []string
}

type registryFile struct {
	Views []Definition `yaml:"views"`
}

// LoadRegistry reads the registry from path, or the built-in one when path is empty.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return ParseRegistry(configs.Views)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("views: read registry: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates a YAML registry.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("views: parse registry: %w", err)
	}
	validate := validator.New()
	reg := &Registry{defs: make(map[string]Definition, len(file.Views))}
	for i, def := range file.Views {
		def.Name = strings.ToLower(strings.TrimSpace(def.Name))
		if def.Mode == "" {
			def.Mode = listing.ModeClient
		}
		def.Currency = strings.ToUpper(def.Currency)
		for j := range def.Columns {
			if def.Columns[j].Kind == "" {
				def.Columns[j].Kind = format.KindText
			}
		}
		if err := validate.Struct(def); err != nil {
			return nil, fmt.Errorf("views: entry %d (%s): %w", i, def.Name, err)
		}
		if _, dup := reg.defs[def.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateView, def.Name)
		}
		reg.defs[def.Name] = def
		reg.order = append(reg.order, def.Name)
	}
	return reg, nil
}

// Get returns the view called name.
func (r *Registry) Get(name string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	def, ok := r.defs[strings.ToLower(strings.TrimSpace(name))]
	return def, ok
}

// All returns every view in declaration order.
func (r *Registry) All() []Definition {
	if r == nil {
		return nil
	}
	out := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.defs[name])
	}
	return out
}
