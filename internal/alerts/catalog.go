// Package alerts screens molecules against structural alert catalogs.
package alerts

import (
	"embed"
	"fmt"
	"path"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/chemaudit/chemaudit/internal/chemkit"
)

//go:embed catalogs/*.yaml
var catalogFS embed.FS

type AlertDefinition struct {
	Name        string `json:"name"`
	Pattern     string `json:"pattern"`
	Description string `json:"description"`
}

type catalogFile struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Severity    string            `json:"severity"`
	Alerts      []AlertDefinition `json:"alerts"`
}

type compiledAlert struct {
	AlertDefinition
	pattern *chemkit.Pattern
}

// Catalog is a loaded, compiled alert catalog. It is immutable after loading.
type Catalog struct {
	Name        string
	Description string
	Severity    string
	alerts      []compiledAlert
}

// CatalogInfo describes a catalog on the wire.
type CatalogInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	NumPatterns int    `json:"num_patterns"`
}

func (c *Catalog) Info() CatalogInfo {
	return CatalogInfo{Name: c.Name, Description: c.Description, Severity: c.Severity, NumPatterns: len(c.alerts)}
}

func loadCatalogs(kit chemkit.Toolkit) (map[string]*Catalog, error) {
	entries, err := catalogFS.ReadDir("catalogs")
	if err != nil {
		return nil, fmt.Errorf("reading alert catalogs: %w", err)
	}
	out := make(map[string]*Catalog, len(entries))
	for _, entry := range entries {
		content, err := catalogFS.ReadFile(path.Join("catalogs", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading catalog %s: %w", entry.Name(), err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(content, &file); err != nil {
			return nil, fmt.Errorf("decoding catalog %s: %w", entry.Name(), err)
		}
		cat := &Catalog{Name: file.Name, Description: file.Description, Severity: file.Severity}
		for _, def := range file.Alerts {
			p, err := kit.ParsePattern(def.Pattern)
			if err != nil {
				return nil, fmt.Errorf("catalog %s alert %s: %w", file.Name, def.Name, err)
			}
			cat.alerts = append(cat.alerts, compiledAlert{AlertDefinition: def, pattern: p})
		}
		if _, dup := out[cat.Name]; dup {
			return nil, fmt.Errorf("catalog %s defined twice", cat.Name)
		}
		out[cat.Name] = cat
	}
	return out, nil
}

func sortedNames(catalogs map[string]*Catalog) []string {
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
