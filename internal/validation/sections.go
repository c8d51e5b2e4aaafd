package validation

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// RequiredSections are the normalized headings an attached spec must
// contain (spec §4.6 "spec_check"). Aliases collapse to the same
// canonical name so any one heading in a group satisfies that
// requirement.
var RequiredSections = map[string]string{
	"overview": "overview",

	"constraints / non-goals": "constraints / non-goals",
	"constraints":             "constraints / non-goals",
	"non-goals":               "constraints / non-goals",

	"interfaces (cli/api)": "interfaces (cli/api)",
	"interfaces":           "interfaces (cli/api)",

	"data model / schema changes": "data model / schema changes",
	"data model":                  "data model / schema changes",
	"schema changes":              "data model / schema changes",

	"acceptance criteria": "acceptance criteria",

	"test plan": "test plan",
}

var headingRE = regexp.MustCompile(`^#{1,6}\s+(.+)$`)

// MissingSectionsError reports which canonical sections a spec lacks.
type MissingSectionsError struct {
	Missing []string
}

func (e *MissingSectionsError) Error() string {
	return fmt.Sprintf("missing required sections: %s", strings.Join(e.Missing, ", "))
}

// CheckSections parses markdown ATX headings out of raw and returns the
// canonical section names that are absent. A nil/empty result means every
// required section was found.
func CheckSections(raw []byte) []string {
	present := headings(raw)
	canonical := map[string]bool{}
	for _, c := range RequiredSections {
		canonical[c] = true
	}
	var missing []string
	for c := range canonical {
		if !hasAliasFor(present, c) {
			missing = append(missing, c)
		}
	}
	sort.Strings(missing)
	return missing
}

func headings(raw []byte) map[string]bool {
	out := map[string]bool{}
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		m := headingRE.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		out[normalizeHeading(m[1])] = true
	}
	return out
}

func normalizeHeading(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.TrimRight(h, ": \t")
}

func hasAliasFor(present map[string]bool, canonical string) bool {
	for alias, c := range RequiredSections {
		if c == canonical && present[alias] {
			return true
		}
	}
	return false
}
