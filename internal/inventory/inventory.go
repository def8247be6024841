// Package inventory loads target lists from external inventory sources.
package inventory

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gramckode/parallel-ssh/internal/target"

	"gopkg.in/yaml.v3"
)

// Provider defines the interface for inventory providers
type Provider interface {
	// LoadTargets loads targets from the inventory source
	LoadTargets() ([]target.Target, error)
	// GetGroups returns available groups in the inventory
	GetGroups() ([]string, error)
	// GetTargetsByGroup returns targets filtered by group
	GetTargetsByGroup(group string) ([]target.Target, error)
}

// AnsibleInventory reads an Ansible-style YAML or JSON inventory
type AnsibleInventory struct {
	path string
}

// NewAnsibleInventory creates a new Ansible inventory provider
func NewAnsibleInventory(path string) *AnsibleInventory {
	return &AnsibleInventory{path: path}
}

// AnsibleInventoryData represents the structure of an Ansible inventory
type AnsibleInventoryData struct {
	All struct {
		Children map[string]*AnsibleGroup `yaml:"children"`
		Hosts    map[string]*AnsibleHost  `yaml:"hosts"`
		Vars     map[string]interface{}   `yaml:"vars"`
	} `yaml:"all"`
	Groups map[string]*AnsibleGroup `yaml:",inline"`
}

// AnsibleGroup represents an Ansible inventory group
type AnsibleGroup struct {
	Hosts    map[string]*AnsibleHost  `yaml:"hosts"`
	Children map[string]*AnsibleGroup `yaml:"children"`
	Vars     map[string]interface{}   `yaml:"vars"`
}

// AnsibleHost represents an Ansible inventory host
type AnsibleHost struct {
	AnsibleHost string                 `yaml:"ansible_host"`
	Vars        map[string]interface{} `yaml:",inline"`
}

// LoadTargets loads targets from the Ansible inventory
func (ai *AnsibleInventory) LoadTargets() ([]target.Target, error) {
	data, err := ai.loadInventoryData()
	if err != nil {
		return nil, err
	}

	var targets []target.Target

	// Each host appears once even when referenced from several groups
	processed := make(map[string]bool)

	// Process top-level hosts
	for hostname, host := range data.All.Hosts {
		if !processed[hostname] {
			targets = append(targets, convertAnsibleHost(hostname, host, nil))
			processed[hostname] = true
		}
	}

	// Process groups nested under "all"
	for groupName, group := range data.All.Children {
		groupTargets := ai.processGroup(group, []string{groupName}, processed)
		targets = append(targets, groupTargets...)
	}

	// Process top-level groups
	for groupName, group := range data.Groups {
		groupTargets := ai.processGroup(group, []string{groupName}, processed)
		targets = append(targets, groupTargets...)
	}

	return targets, nil
}

// GetGroups returns available groups in the inventory
func (ai *AnsibleInventory) GetGroups() ([]string, error) {
	data, err := ai.loadInventoryData()
	if err != nil {
		return nil, err
	}

	var groups []string
	for groupName := range data.All.Children {
		groups = append(groups, groupName)
	}
	for groupName := range data.Groups {
		groups = append(groups, groupName)
	}

	return groups, nil
}

// GetTargetsByGroup returns targets filtered by group
func (ai *AnsibleInventory) GetTargetsByGroup(group string) ([]target.Target, error) {
	data, err := ai.loadInventoryData()
	if err != nil {
		return nil, err
	}

	groupData, exists := data.Groups[group]
	if !exists {
		groupData, exists = data.All.Children[group]
	}
	if !exists {
		return nil, fmt.Errorf("group '%s' not found in inventory", group)
	}

	processed := make(map[string]bool)
	return ai.processGroup(groupData, []string{group}, processed), nil
}

// loadInventoryData loads and parses the inventory file
func (ai *AnsibleInventory) loadInventoryData() (*AnsibleInventoryData, error) {
	file, err := os.Open(ai.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory file: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file: %w", err)
	}

	var data AnsibleInventoryData

	// YAML is a superset of JSON, so one parser covers both formats
	if err := yaml.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse inventory file: %w", err)
	}

	return &data, nil
}

// processGroup recursively processes an Ansible group
func (ai *AnsibleInventory) processGroup(group *AnsibleGroup, tags []string, processed map[string]bool) []target.Target {
	var targets []target.Target

	// Process hosts in this group
	for hostname, host := range group.Hosts {
		if !processed[hostname] {
			targets = append(targets, convertAnsibleHost(hostname, host, tags))
			processed[hostname] = true
		}
	}

	// Process child groups
	for childName, childGroup := range group.Children {
		childTags := append(append([]string{}, tags...), childName)
		childTargets := ai.processGroup(childGroup, childTags, processed)
		targets = append(targets, childTargets...)
	}

	return targets
}

// convertAnsibleHost converts an Ansible host entry to a target
func convertAnsibleHost(hostname string, host *AnsibleHost, groups []string) target.Target {
	t := target.Target{
		Host:       hostname,
		Tags:       groups,
		Properties: make(map[string]string),
		Original:   hostname,
	}

	if host == nil {
		return t
	}

	// Use ansible_host if specified
	if host.AnsibleHost != "" {
		t.Host = host.AnsibleHost
	}

	// Convert other variables to properties
	for key, value := range host.Vars {
		if !isAnsibleBuiltin(key) {
			t.Properties[key] = fmt.Sprintf("%v", value)
		}
	}

	return t
}

// isAnsibleBuiltin checks if a variable is an Ansible builtin
func isAnsibleBuiltin(key string) bool {
	return strings.HasPrefix(key, "ansible_")
}

// StaticInventory provides a simple in-memory inventory
type StaticInventory struct {
	targets []target.Target
	groups  map[string][]target.Target
}

// NewStaticInventory creates a new static inventory
func NewStaticInventory() *StaticInventory {
	return &StaticInventory{
		targets: make([]target.Target, 0),
		groups:  make(map[string][]target.Target),
	}
}

// AddTarget adds a target to the static inventory
func (si *StaticInventory) AddTarget(t target.Target) {
	si.targets = append(si.targets, t)

	// Add to groups based on tags
	for _, tag := range t.Tags {
		si.groups[tag] = append(si.groups[tag], t)
	}
}

// LoadTargets returns all targets in the static inventory
func (si *StaticInventory) LoadTargets() ([]target.Target, error) {
	return si.targets, nil
}

// GetGroups returns available groups
func (si *StaticInventory) GetGroups() ([]string, error) {
	var groups []string
	for group := range si.groups {
		groups = append(groups, group)
	}
	return groups, nil
}

// GetTargetsByGroup returns targets by group
func (si *StaticInventory) GetTargetsByGroup(group string) ([]target.Target, error) {
	targets, exists := si.groups[group]
	if !exists {
		return nil, fmt.Errorf("group '%s' not found", group)
	}
	return targets, nil
}

// LoadInventoryFromFile loads inventory from a file based on its extension
func LoadInventoryFromFile(path string) (Provider, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yml", ".yaml", ".json":
		return NewAnsibleInventory(path), nil
	default:
		return nil, fmt.Errorf("unsupported inventory file format: %s", ext)
	}
}
