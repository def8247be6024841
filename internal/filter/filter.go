// Package filter narrows and groups target lists before a batch starts.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gramckode/parallel-ssh/internal/target"
)

// Filter represents a target filter condition
type Filter interface {
	// Match returns true if the target matches the filter condition
	Match(t target.Target) bool
	// String returns a human-readable description of the filter
	String() string
}

// TagFilter filters targets by inventory tags
type TagFilter struct {
	RequiredTags []string
	ExcludeTags  []string
}

// NewTagFilter creates a new tag-based filter
func NewTagFilter(required, excluded []string) *TagFilter {
	return &TagFilter{RequiredTags: required, ExcludeTags: excluded}
}

// Match checks if the target has all required tags and none of the excluded ones
func (f *TagFilter) Match(t target.Target) bool {
	tags := make(map[string]bool, len(t.Tags))
	for _, tag := range t.Tags {
		tags[strings.ToLower(tag)] = true
	}

	for _, required := range f.RequiredTags {
		if !tags[strings.ToLower(required)] {
			return false
		}
	}

	for _, excluded := range f.ExcludeTags {
		if tags[strings.ToLower(excluded)] {
			return false
		}
	}

	return true
}

// String returns a description of the tag filter
func (f *TagFilter) String() string {
	var parts []string
	if len(f.RequiredTags) > 0 {
		parts = append(parts, fmt.Sprintf("tags: %s", strings.Join(f.RequiredTags, ",")))
	}
	if len(f.ExcludeTags) > 0 {
		parts = append(parts, fmt.Sprintf("!tags: %s", strings.Join(f.ExcludeTags, ",")))
	}
	return strings.Join(parts, " AND ")
}

// PropertyFilter filters targets by a host variable value
type PropertyFilter struct {
	Property string
	Value    string
}

// NewPropertyFilter creates a new property-based filter
func NewPropertyFilter(property, value string) *PropertyFilter {
	return &PropertyFilter{Property: property, Value: value}
}

// Match checks if the target property equals the filter value
func (f *PropertyFilter) Match(t target.Target) bool {
	value, exists := t.Properties[f.Property]
	return exists && strings.EqualFold(value, f.Value)
}

// String returns a description of the property filter
func (f *PropertyFilter) String() string {
	return fmt.Sprintf("%s = %s", f.Property, f.Value)
}

// HostFilter filters targets by hostname pattern ('*' wildcards)
type HostFilter struct {
	Pattern string
}

// NewHostFilter creates a new hostname-based filter
func NewHostFilter(pattern string) *HostFilter {
	return &HostFilter{Pattern: pattern}
}

// Match checks if the target hostname matches the pattern
func (f *HostFilter) Match(t target.Target) bool {
	pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(f.Pattern), `\*`, ".*") + "$"
	matched, err := regexp.MatchString(pattern, t.Host)
	return err == nil && matched
}

// String returns a description of the host filter
func (f *HostFilter) String() string {
	return fmt.Sprintf("host pattern: %s", f.Pattern)
}

// FilterTargets applies filters to a target list and returns matching ones
func FilterTargets(targets []target.Target, filters ...Filter) []target.Target {
	if len(filters) == 0 {
		return targets
	}

	var filtered []target.Target
	for _, t := range targets {
		match := true
		for _, f := range filters {
			if !f.Match(t) {
				match = false
				break
			}
		}
		if match {
			filtered = append(filtered, t)
		}
	}

	return filtered
}

// GroupTargets groups targets by a property name or tag
func GroupTargets(targets []target.Target, groupBy string) map[string][]target.Target {
	groups := make(map[string][]target.Target)

	for _, t := range targets {
		groupKey := "untagged"

		if value, exists := t.Properties[groupBy]; exists {
			groupKey = value
		} else {
			for _, tag := range t.Tags {
				if strings.EqualFold(tag, groupBy) {
					groupKey = tag
					break
				}
			}
		}

		groups[groupKey] = append(groups[groupKey], t)
	}

	return groups
}

// ParseFilterExpression parses a filter expression string.
// Format: "tag:web,prod !tag:canary property:env=production host:*.example.com"
func ParseFilterExpression(expression string) ([]Filter, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}

	var filters []Filter
	for _, part := range strings.Fields(expression) {
		switch {
		case strings.HasPrefix(part, "tag:"):
			tags := strings.Split(strings.TrimPrefix(part, "tag:"), ",")
			filters = append(filters, NewTagFilter(tags, nil))
		case strings.HasPrefix(part, "!tag:"):
			tags := strings.Split(strings.TrimPrefix(part, "!tag:"), ",")
			filters = append(filters, NewTagFilter(nil, tags))
		case strings.HasPrefix(part, "property:"):
			spec := strings.TrimPrefix(part, "property:")
			kv := strings.SplitN(spec, "=", 2)
			if len(kv) != 2 {
				return nil, fmt.Errorf("invalid property filter '%s': expected property:key=value", part)
			}
			filters = append(filters, NewPropertyFilter(kv[0], kv[1]))
		case strings.HasPrefix(part, "host:"):
			filters = append(filters, NewHostFilter(strings.TrimPrefix(part, "host:")))
		default:
			return nil, fmt.Errorf("unknown filter term '%s'", part)
		}
	}

	return filters, nil
}
