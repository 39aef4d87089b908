package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/vatdesk/api/internal/vat"
)

// ParseMappingRules decodes a JSON mapping document of the form
//
//	{"columns": {"SALE_DEPART_COUNTRY": "Ship From"}, "schemeAliases": {"OSS": "UNION-OSS"}}
//
// Column keys must be canonical field names. Alias targets must be one of the
// recognised schemes. Unknown top-level keys are rejected.
func ParseMappingRules(data []byte) (vat.MappingRules, error) {
	var rules vat.MappingRules
	if len(bytes.TrimSpace(data)) == 0 {
		return rules, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return vat.MappingRules{}, fmt.Errorf("%w: %v", ErrInvalidMapping, err)
	}

	var unknown []string
	for field, header := range rules.Columns {
		if !vat.IsKnownField(field) {
			unknown = append(unknown, field)
		}
		if strings.TrimSpace(header) == "" {
			return vat.MappingRules{}, fmt.Errorf("%w: empty header for column %s", ErrInvalidMapping, field)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return vat.MappingRules{}, fmt.Errorf("%w: unknown columns %s", ErrInvalidMapping, strings.Join(unknown, ", "))
	}

	if len(rules.SchemeAliases) > 0 {
		// Labels are matched against the trimmed, uppercased scheme value.
		aliases := make(map[string]string, len(rules.SchemeAliases))
		for label, target := range rules.SchemeAliases {
			canonical := vat.NormalizeScheme(target, nil)
			if !vat.IsKnownScheme(canonical) {
				return vat.MappingRules{}, fmt.Errorf("%w: alias %s targets unknown scheme %q", ErrInvalidMapping, label, target)
			}
			aliases[strings.ToUpper(strings.TrimSpace(label))] = canonical
		}
		rules.SchemeAliases = aliases
	}
	return rules, nil
}

// LoadMappingRules reads mapping rules from a JSON file. An empty path yields
// empty rules.
func LoadMappingRules(path string) (vat.MappingRules, error) {
	if path == "" {
		return vat.MappingRules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return vat.MappingRules{}, fmt.Errorf("reading mapping file: %w", err)
	}
	rules, err := ParseMappingRules(data)
	if err != nil {
		return vat.MappingRules{}, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Merge overlays override on base. Keys in override win.
func Merge(base, override vat.MappingRules) vat.MappingRules {
	out := vat.MappingRules{}
	if len(base.Columns)+len(override.Columns) > 0 {
		out.Columns = make(map[string]string, len(base.Columns)+len(override.Columns))
		for k, v := range base.Columns {
			out.Columns[k] = v
		}
		for k, v := range override.Columns {
			out.Columns[k] = v
		}
	}
	if len(base.SchemeAliases)+len(override.SchemeAliases) > 0 {
		out.SchemeAliases = make(map[string]string, len(base.SchemeAliases)+len(override.SchemeAliases))
		for k, v := range base.SchemeAliases {
			out.SchemeAliases[k] = v
		}
		for k, v := range override.SchemeAliases {
			out.SchemeAliases[k] = v
		}
	}
	return out
}
