package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chtzvt/tablemapper/internal/encoder"
	"github.com/chtzvt/tablemapper/internal/processor"
	"github.com/chtzvt/tablemapper/internal/sink"
	"github.com/chtzvt/tablemapper/internal/source"
	"gopkg.in/yaml.v3"
)

const SpecVersion = 1

// Spec describes one processor wired between a source and per-relationship
// outputs.
type Spec struct {
	Version       int                  `json:"version" yaml:"version"`
	Name          string               `json:"name,omitempty" yaml:"name,omitempty"`
	Processor     ProcessorSpec        `json:"processor" yaml:"processor"`
	Source        SourceSpec           `json:"source" yaml:"source"`
	Routes        map[string]RouteSpec `json:"routes" yaml:"routes"`
	AutoTerminate []string             `json:"auto_terminate,omitempty" yaml:"auto_terminate,omitempty"`
}

type ProcessorSpec struct {
	Name       string            `json:"name" yaml:"name"`
	Properties map[string]string `json:"properties" yaml:"properties"`
}

type SourceSpec struct {
	Name    string                 `json:"name" yaml:"name"`
	Options map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
}

// RouteSpec configures where one relationship's records are written.
type RouteSpec struct {
	Name           string                 `json:"name,omitempty" yaml:"name,omitempty"` // chunk base name
	Encoder        string                 `json:"encoder" yaml:"encoder"`
	EncoderOptions map[string]interface{} `json:"encoder_options,omitempty" yaml:"encoder_options,omitempty"`
	Sink           string                 `json:"sink" yaml:"sink"`
	SinkOptions    map[string]interface{} `json:"sink_options,omitempty" yaml:"sink_options,omitempty"`
	ChunkRecords   int                    `json:"chunk_records,omitempty" yaml:"chunk_records,omitempty"`
	ChunkBytes     int                    `json:"chunk_bytes,omitempty" yaml:"chunk_bytes,omitempty"`
}

// LoadSpec reads a flow definition. Files ending in .yaml or .yml are parsed
// as YAML, anything else as JSON.
func LoadSpec(path string) (*Spec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &s)
	default:
		err = json.Unmarshal(b, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("parse flow %s: %w", path, err)
	}
	return &s, nil
}

// Terminated reports whether records on rel are dropped.
func (s *Spec) Terminated(rel string) bool {
	for _, r := range s.AutoTerminate {
		if r == rel {
			return true
		}
	}
	return false
}

// Validate checks the flow is runnable: components exist, properties are
// valid, and every relationship is either routed or auto-terminated.
func (s *Spec) Validate() error {
	var errs []error
	if s.Version != SpecVersion {
		errs = append(errs, fmt.Errorf("unsupported flow version %d", s.Version))
	}

	p, err := processor.ForName(s.Processor.Name)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}
	if err := processor.ValidateProperties(p, s.Processor.Properties); err != nil {
		errs = append(errs, err)
	}

	if s.Source.Name == "" {
		errs = append(errs, errors.New("source name is required"))
	} else if _, err := source.ForName(s.Source.Name); err != nil {
		errs = append(errs, err)
	}

	for _, rel := range p.Relationships() {
		_, routed := s.Routes[rel.Name]
		terminated := s.Terminated(rel.Name)
		switch {
		case routed && terminated:
			errs = append(errs, fmt.Errorf("relationship %s is both routed and auto-terminated", rel.Name))
		case !routed && !terminated:
			errs = append(errs, fmt.Errorf("relationship %s is neither routed nor auto-terminated", rel.Name))
		}
	}
	for _, name := range s.routeNames() {
		if _, ok := processor.RelationshipByName(p, name); !ok {
			errs = append(errs, fmt.Errorf("route %s: %s has no such relationship", name, p.Name()))
			continue
		}
		rs := s.Routes[name]
		if _, err := encoder.ForName(rs.Encoder); err != nil {
			errs = append(errs, fmt.Errorf("route %s: %w", name, err))
		}
		if _, ok := sink.ForName(rs.Sink); !ok {
			errs = append(errs, fmt.Errorf("route %s: sink not found: %s", name, rs.Sink))
		}
		if rs.ChunkRecords < 0 || rs.ChunkBytes < 0 {
			errs = append(errs, fmt.Errorf("route %s: chunk limits must not be negative", name))
		}
	}
	for _, name := range s.AutoTerminate {
		if _, ok := processor.RelationshipByName(p, name); !ok {
			errs = append(errs, fmt.Errorf("auto_terminate: %s has no relationship %s", p.Name(), name))
		}
	}
	return errors.Join(errs...)
}

func (s *Spec) routeNames() []string {
	names := make([]string, 0, len(s.Routes))
	for k := range s.Routes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
