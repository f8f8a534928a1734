package alerts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/chemaudit/chemaudit/internal/chemkit"
)

// UnknownCatalogError is returned when a requested catalog does not exist.
type UnknownCatalogError struct {
	Name string
}

func (e *UnknownCatalogError) Error() string {
	return fmt.Sprintf("unknown alert catalog %q", e.Name)
}

type Alert struct {
	Catalog      string  `json:"catalog"`
	Name         string  `json:"pattern_name"`
	Description  string  `json:"description"`
	Severity     string  `json:"severity"`
	MatchedAtoms [][]int `json:"matched_atoms"`
}

type Outcome struct {
	HasAlerts        bool     `json:"has_alerts"`
	TotalAlerts      int      `json:"total_alerts"`
	Alerts           []Alert  `json:"alerts"`
	ScreenedCatalogs []string `json:"screened_catalogs"`
}

// Screener matches molecules against every loaded catalog.
type Screener struct {
	kit      chemkit.Toolkit
	catalogs map[string]*Catalog
	names    []string
}

// NewScreener loads and compiles the embedded catalogs.
func NewScreener(kit chemkit.Toolkit) (*Screener, error) {
	catalogs, err := loadCatalogs(kit)
	if err != nil {
		return nil, err
	}
	return &Screener{kit: kit, catalogs: catalogs, names: sortedNames(catalogs)}, nil
}

func (s *Screener) Catalogs() []CatalogInfo {
	out := make([]CatalogInfo, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.catalogs[name].Info())
	}
	return out
}

// CheckCatalogs reports the first unknown name of names.
func (s *Screener) CheckCatalogs(names []string) error {
	_, err := s.resolve(names)
	return err
}

func (s *Screener) resolve(names []string) ([]*Catalog, error) {
	if len(names) == 0 {
		names = s.names
	}
	seen := map[string]bool{}
	out := make([]*Catalog, 0, len(names))
	for _, name := range names {
		key := strings.ToUpper(strings.TrimSpace(name))
		if key == "ALL" {
			return s.resolve(nil)
		}
		cat, ok := s.catalogs[key]
		if !ok {
			return nil, &UnknownCatalogError{Name: name}
		}
		if !seen[key] {
			seen[key] = true
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Screen reports every alert of the selected catalogs found in m. No names selects all catalogs.
func (s *Screener) Screen(m *chemkit.Molecule, catalogs []string) (*Outcome, error) {
	selected, err := s.resolve(catalogs)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Alerts: []Alert{}, ScreenedCatalogs: make([]string, 0, len(selected))}
	for _, cat := range selected {
		out.ScreenedCatalogs = append(out.ScreenedCatalogs, cat.Name)
		for _, a := range cat.alerts {
			matches := s.kit.Match(m, a.pattern)
			if len(matches) == 0 {
				continue
			}
			out.Alerts = append(out.Alerts, Alert{
				Catalog:      cat.Name,
				Name:         a.Name,
				Description:  a.Description,
				Severity:     cat.Severity,
				MatchedAtoms: matches,
			})
		}
	}
	out.TotalAlerts = len(out.Alerts)
	out.HasAlerts = out.TotalAlerts > 0
	return out, nil
}

// QuickCheck stops at the first alert found.
func (s *Screener) QuickCheck(m *chemkit.Molecule, catalogs []string) (bool, error) {
	selected, err := s.resolve(catalogs)
	if err != nil {
		return false, err
	}
	for _, cat := range selected {
		for _, a := range cat.alerts {
			if len(s.kit.Match(m, a.pattern)) > 0 {
				return true, nil
			}
		}
	}
	return false, nil
}
