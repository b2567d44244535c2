package engine

import (
	"reflect"
	"sort"

	"entity-admin/internal/metadata"
	"entity-admin/internal/query"
)

// EvaluateRules runs the rules of the changed properties against the
// merged record. Every failing rule contributes one detail.
func EvaluateRules(entity *metadata.EntityMetadata, changed []string, record map[string]any) []ErrorDetail {
	var details []ErrorDetail
	for _, name := range changed {
		p := entity.Property(name)
		if p == nil {
			continue
		}
		for _, rule := range p.Rules {
			if d := EvaluateFieldRule(p.Name, rule, record); d != nil {
				details = append(details, *d)
			}
		}
	}
	return details
}

// EvaluateFieldRule returns a detail when rule fails for the field's value
// in record, or nil when it passes.
func EvaluateFieldRule(field string, rule *metadata.Rule, record map[string]any) *ErrorDetail {
	violated, err := rule.Violated(record[field], record)
	if err != nil {
		return &ErrorDetail{Field: field, Rule: "expression", Message: err.Error()}
	}
	if !violated {
		return nil
	}
	return &ErrorDetail{Field: field, Rule: rule.Expression, Message: rule.Message}
}

// plainMap flattens a record for expression evaluation. Pointers are
// dereferenced so rules compare values, not addresses.
func plainMap(r query.Record) map[string]any {
	out := query.ToMap(r)
	for k, v := range out {
		out[k] = plainOf(v)
	}
	return out
}

func plainOf(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
