package validation

import (
	"regexp"
	"sort"
	"strings"

	"github.com/BumpyClock/tasque/internal/tasqerr"
)

const maxLabelLen = 64

var labelRE = regexp.MustCompile(`^[a-z0-9:_/-]+$`)

// normalizeLabel trims surrounding whitespace and lowercases label before
// grammar validation or any dedup/removal comparison, so " Foo-Bar " and
// "foo-bar" are the same label (spec §4.6 "label_add"/"label_remove").
func normalizeLabel(label string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if normalized == "" {
		return "", tasqerr.New(tasqerr.CodeValidation, "label cannot be empty")
	}
	if len(normalized) > maxLabelLen {
		return "", tasqerr.New(tasqerr.CodeValidation, "label %q exceeds %d characters", normalized, maxLabelLen)
	}
	if !labelRE.MatchString(normalized) {
		return "", tasqerr.New(tasqerr.CodeValidation, "label %q must match [a-z0-9:_/-]+", normalized)
	}
	return normalized, nil
}

// ValidateLabel checks a single label against the grammar
// [a-z0-9:_/-]+, capped at 64 characters, after normalization.
func ValidateLabel(label string) error {
	_, err := normalizeLabel(label)
	return err
}

// AddLabel normalizes and validates label and returns the sorted,
// deduplicated label set with it inserted. existing is never mutated.
func AddLabel(existing []string, label string) ([]string, error) {
	normalized, err := normalizeLabel(label)
	if err != nil {
		return nil, err
	}
	set := map[string]bool{normalized: true}
	for _, l := range existing {
		set[l] = true
	}
	return sortedKeys(set), nil
}

// RemoveLabel returns the sorted label set with label removed. It fails
// with NOT_FOUND if label isn't present, per spec §4.6 "label_remove".
func RemoveLabel(existing []string, label string) ([]string, error) {
	normalized, err := normalizeLabel(label)
	if err != nil {
		return nil, err
	}
	found := false
	set := map[string]bool{}
	for _, l := range existing {
		if l == normalized {
			found = true
			continue
		}
		set[l] = true
	}
	if !found {
		return nil, tasqerr.New(tasqerr.CodeNotFound, "label %q is not set", normalized)
	}
	return sortedKeys(set), nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
