// argus/pkg/labels/labels.go

// Package labels provides the label data collaborators of the matching
// engine: stores for discovered, builtin and explicit labels, and the
// Manager bundling them together with the host/service label rulesets.
package labels

import (
	"encoding/json"
	"os"

	"kwalsh/argus/pkg/logging"
	"kwalsh/argus/pkg/ruleset"
)

// Label is one stored label entry: its value plus the name of the plugin
// that discovered it, if any.
type Label struct {
	Value      string `json:"value"`
	PluginName string `json:"plugin_name,omitempty"`
}

// Store is the load-once, read-only contract of a label source.
type Store interface {
	Load() (map[string]Label, error)
}

// HostStore provides per-host label data.
type HostStore interface {
	Load(host ruleset.HostName) (map[string]Label, error)
}

// ServiceStore provides per-service label data.
type ServiceStore interface {
	Load(host ruleset.HostName, service ruleset.ServiceName) (map[string]Label, error)
}

// StaticStore is an in-memory Store, mainly for builtin labels and tests.
type StaticStore map[string]Label

func (s StaticStore) Load() (map[string]Label, error) {
	return s, nil
}

// StaticHostStore is an in-memory HostStore.
type StaticHostStore map[ruleset.HostName]map[string]Label

func (s StaticHostStore) Load(host ruleset.HostName) (map[string]Label, error) {
	return s[host], nil
}

// StaticServiceStore is an in-memory ServiceStore keyed by host, then by
// service description.
type StaticServiceStore map[ruleset.HostName]map[ruleset.ServiceName]map[string]Label

func (s StaticServiceStore) Load(host ruleset.HostName, service ruleset.ServiceName) (map[string]Label, error) {
	return s[host][service], nil
}

// FileStore loads labels from a JSON file written by the discovery
// subsystem. A missing file is an empty label set, not an error.
type FileStore struct {
	Path string
}

func (s FileStore) Load() (map[string]Label, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, logging.NewError(logging.ErrorTypeStore, "failed to read label store", err,
			map[string]interface{}{"path": s.Path})
	}

	var labels map[string]Label
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, logging.NewError(logging.ErrorTypeStore, "failed to decode label store", err,
			map[string]interface{}{"path": s.Path})
	}
	return labels, nil
}

// Manager bundles all label sources consulted when computing the
// effective labels of a host or service.
type Manager struct {
	DiscoveredHostLabels    HostStore
	DiscoveredServiceLabels ServiceStore
	BuiltinHostLabels       Store
	ExplicitHostLabels      map[ruleset.HostName]ruleset.Labels
	HostLabelRules          *ruleset.Ruleset
	ServiceLabelRules       *ruleset.Ruleset
}

// NewManager returns a Manager with empty sources; callers fill in what
// their site provides.
func NewManager() *Manager {
	return &Manager{
		DiscoveredHostLabels:    StaticHostStore{},
		DiscoveredServiceLabels: StaticServiceStore{},
		BuiltinHostLabels:       StaticStore{},
		ExplicitHostLabels:      map[ruleset.HostName]ruleset.Labels{},
		HostLabelRules:          ruleset.NewRuleset("host_labels:empty", nil),
		ServiceLabelRules:       ruleset.NewRuleset("service_labels:empty", nil),
	}
}

// Values flattens a stored label map to plain key/value labels.
func Values(stored map[string]Label) ruleset.Labels {
	if len(stored) == 0 {
		return ruleset.Labels{}
	}
	labels := make(ruleset.Labels, len(stored))
	for key, label := range stored {
		labels[key] = label.Value
	}
	return labels
}
