package cli

import (
	"fmt"
	"strings"

	"github.com/thoas/go-funk"
)

const (
	BatchKind   = "batch"
	ResultsKind = "results"
	StatsKind   = "stats"
	ChecksKind  = "checks"
	HealthKind  = "health"
)

var (
	pluralKinds = map[string]string{
		BatchKind:   "batches",
		ResultsKind: "results",
		StatsKind:   "stats",
		ChecksKind:  "checks",
		HealthKind:  "health",
	}
	kindsWithId = []string{BatchKind, ResultsKind, StatsKind}
)

func parseAndValidateKindId(arg string) (string, string, error) {
	kind, id, _ := strings.Cut(arg, "/")
	kind = singular(kind)
	if _, ok := pluralKinds[kind]; !ok {
		return "", "", fmt.Errorf("invalid resource kind: %s", kind)
	}
	needsId := funk.ContainsString(kindsWithId, kind)
	if needsId && id == "" {
		return "", "", fmt.Errorf("%s requires an id: %s/ID", kind, kind)
	}
	if !needsId && id != "" {
		return "", "", fmt.Errorf("%s does not take an id", kind)
	}
	return kind, id, nil
}

func singular(kind string) string {
	for singular, plural := range pluralKinds {
		if kind == plural {
			return singular
		}
	}
	return kind
}
