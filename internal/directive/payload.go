package directive

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/soyeahso/advisor/internal/domain"
)

// Agents write payloads by hand and get the types wrong: quoted prices,
// "true" as a string, a bare string where an object belongs. A payload is
// read field by field; values that can be coerced are, and the rest are
// dropped without losing the directive.
var (
	numberFields = fieldSet("price", "rating", "reviewCount", "personalizationScore", "minOrderQty", "qty")
	boolFields   = fieldSet("generateBackground", "editMode", "inStock", "useStoredPayment", "isQuote", "isPro", "isBulk")
	objectFields = fieldSet("sceneContext", "checkoutData", "attributes")
	listFields   = fieldSet("products", "captures", "images", "bulkPricing", "projectType", "specs", "materials")
)

func fieldSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// decodePayload returns nil when raw is absent or not a JSON object.
func decodePayload(raw json.RawMessage, cat Catalog) *domain.UIDirectivePayload {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}
	coerce(fields)

	stubs, _ := fields["products"].([]any)
	delete(fields, "products")

	var p domain.UIDirectivePayload
	bestEffort(fields, &p)
	p.Products = resolveProducts(stubs, cat)
	return &p
}

// coerce rewrites mistyped values in place, recursing into objects and
// lists, and deletes the ones it cannot fix.
func coerce(v any) {
	switch v := v.(type) {
	case map[string]any:
		for k, x := range v {
			fixed, ok := coerceField(k, x)
			if !ok {
				delete(v, k)
				continue
			}
			v[k] = fixed
			coerce(fixed)
		}
	case []any:
		for _, x := range v {
			coerce(x)
		}
	}
}

func coerceField(name string, v any) (any, bool) {
	switch {
	case numberFields[name]:
		switch x := v.(type) {
		case float64:
			return x, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(x), "$")), 64)
			return f, err == nil
		}
		return nil, false
	case boolFields[name]:
		switch x := v.(type) {
		case bool:
			return x, true
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(x))
			return b, err == nil
		}
		return nil, false
	case objectFields[name]:
		_, ok := v.(map[string]any)
		return v, ok
	case listFields[name]:
		_, ok := v.([]any)
		return v, ok
	}
	return v, true
}

// bestEffort decodes a coerced tree into dst. Mismatches coerce does not
// know about are skipped one field at a time by encoding/json.
func bestEffort(v any, dst any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = json.Unmarshal(b, dst)
}

// resolveProducts swaps product stubs for catalog records by productId or
// id, keeping the stub when the id is unknown. Entries that are not
// objects are dropped. A nil catalog leaves every stub as written.
func resolveProducts(stubs []any, cat Catalog) []domain.Product {
	if len(stubs) == 0 {
		return nil
	}
	out := make([]domain.Product, 0, len(stubs))
	for _, s := range stubs {
		m, ok := s.(map[string]any)
		if !ok {
			continue
		}
		if cat != nil {
			if p, ok := cat.Lookup(stubID(m)); ok {
				out = append(out, p)
				continue
			}
		}
		var p domain.Product
		bestEffort(m, &p)
		if p.ID == "" {
			p.ID = stubID(m)
		}
		out = append(out, p)
	}
	return out
}

// stubID prefers productId over id, accepting numbers for either.
func stubID(m map[string]any) string {
	for _, key := range []string{"productId", "id"} {
		switch v := m[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}
