package screener

import (
	"strings"
	"unicode"

	"LimitUpWatch/internal/model"
)

// normalizeBroker folds case and removes every whitespace rune.
func normalizeBroker(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// Match reports whether a broker is on the target list. Names are compared
// across the whole list before codes; within each pass the first target in
// list order wins. When the winning target has a ratio ceiling and ratio is
// known and above it, the broker is rejected.
func Match(name, code string, targets []model.TargetBroker, ratio *float64) (bool, *model.TargetBroker) {
	name, code = normalizeBroker(name), normalizeBroker(code)
	if len(targets) == 0 || (name == "" && code == "") {
		return false, nil
	}

	t := find(targets, name, func(t model.TargetBroker) string { return t.Name })
	if t == nil {
		t = find(targets, code, func(t model.TargetBroker) string { return t.Code })
	}
	if t == nil {
		return false, nil
	}
	if limit, ok := t.Ratio(); ok && ratio != nil && *ratio > limit {
		return false, nil
	}
	return true, t
}

func find(targets []model.TargetBroker, key string, field func(model.TargetBroker) string) *model.TargetBroker {
	if key == "" {
		return nil
	}
	for i := range targets {
		if key == normalizeBroker(field(targets[i])) {
			return &targets[i]
		}
	}
	return nil
}
