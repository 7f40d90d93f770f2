package ingest

import (
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed config/profiles.yaml
var profilesYAML embed.FS

// Registry holds the named query profiles.
type Registry struct {
	Profiles []Profile `yaml:"profiles"`
}

// Profile bundles the query and matching settings for one report.
type Profile struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	Description    string         `yaml:"description,omitempty"`
	PSCCodes       []string       `yaml:"psc_codes"`
	AgencyPatterns []string       `yaml:"agency_patterns,omitempty"`
	QueryAgencies  []AgencyFilter `yaml:"query_agencies,omitempty"` // sent only when agency query filtering is on
	HorizonDays    int            `yaml:"horizon_days,omitempty"`
}

// LoadRegistry reads profiles from path, or the embedded profiles.yaml when
// path is empty.
func LoadRegistry(path string) (*Registry, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = profilesYAML.ReadFile("config/profiles.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading profiles: %w", err)
	}

	// Expand environment variables within the YAML content (e.g. ${PSC})
	expanded := os.ExpandEnv(string(data))

	var reg Registry
	if err := yaml.Unmarshal([]byte(expanded), &reg); err != nil {
		return nil, fmt.Errorf("parsing profiles: %w", err)
	}

	seen := make(map[string]bool, len(reg.Profiles))
	for _, p := range reg.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("profile %q has no id", p.Name)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate profile id %q", p.ID)
		}
		seen[p.ID] = true
	}

	return &reg, nil
}

// Find returns the profile with the given id.
func (r *Registry) Find(id string) (*Profile, error) {
	for i := range r.Profiles {
		if r.Profiles[i].ID == id {
			return &r.Profiles[i], nil
		}
	}
	return nil, fmt.Errorf("profile %q not found in registry", id)
}
