package metrickey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SubPrefix marks a raw key as a sub-metric line item.
const SubPrefix = "sub:"

// ErrMalformedKey is returned when a "sub:" key lacks a parent or a name.
var ErrMalformedKey = errors.New("malformed metric key")

// Kind distinguishes ordinary metrics from sub-metric line items.
type Kind string

const (
	KindPlain     Kind = "metric"
	KindSubMetric Kind = "submetric"
)

// Key is the decoded form of a stored metric key.
type Key struct {
	Kind      Kind   `json:"kind"`
	Name      string `json:"name"`
	ParentKey string `json:"parent_key,omitempty"`
	// OrderIndex is nil for keys written in the legacy three-part format.
	OrderIndex *int `json:"order_index,omitempty"`
}

// Plain builds a plain metric key.
func Plain(name string) Key {
	return Key{Kind: KindPlain, Name: name}
}

// SubMetric builds a sub-metric key. A nil order index produces a legacy key.
func SubMetric(parentKey string, orderIndex *int, name string) Key {
	return Key{Kind: KindSubMetric, ParentKey: parentKey, OrderIndex: orderIndex, Name: name}
}

// IsSubMetric reports whether the key names a sub-metric line item.
func (k Key) IsSubMetric() bool {
	return k.Kind == KindSubMetric
}

// String re-encodes the key. Legacy sub-metrics keep their three-part form.
func (k Key) String() string {
	if !k.IsSubMetric() {
		return k.Name
	}
	if k.OrderIndex == nil {
		return SubPrefix + k.ParentKey + ":" + k.Name
	}
	return encode(k.ParentKey, *k.OrderIndex, k.Name)
}

// Identity is the matching form of the key. Sub-metrics drop their order
// index so legacy and current rows for the same line item compare equal.
func (k Key) Identity() string {
	if !k.IsSubMetric() {
		return k.Name
	}
	return SubPrefix + k.ParentKey + ":" + k.Name
}

// Decode parses a stored metric key. Anything without the "sub:" prefix is a
// plain metric. The name is everything after the last structural colon and
// may itself contain colons.
func Decode(raw string) (Key, error) {
	if !strings.HasPrefix(raw, SubPrefix) {
		return Plain(raw), nil
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, raw)
	}

	parent := parts[1]
	if parent == "" {
		return Key{}, fmt.Errorf("%w: empty parent in %q", ErrMalformedKey, raw)
	}

	var (
		order *int
		name  string
	)
	if len(parts) >= 4 {
		if idx, ok := parseOrderIndex(parts[2]); ok {
			order = &idx
			name = strings.Join(parts[3:], ":")
		} else {
			// Third segment is part of a legacy name that contains a colon.
			name = strings.Join(parts[2:], ":")
		}
	} else {
		name = parts[2]
	}

	if name == "" {
		return Key{}, fmt.Errorf("%w: empty name in %q", ErrMalformedKey, raw)
	}

	return SubMetric(parent, order, name), nil
}

// Encode writes a sub-metric key in the current four-part format. The order
// index must be non-negative and the parent may not contain a colon, or the
// key would not decode back to the same parts.
func Encode(parentKey string, orderIndex int, name string) (string, error) {
	switch {
	case parentKey == "" || name == "":
		return "", fmt.Errorf("%w: parent and name are required", ErrMalformedKey)
	case strings.Contains(parentKey, ":"):
		return "", fmt.Errorf("%w: parent %q contains ':'", ErrMalformedKey, parentKey)
	case orderIndex < 0:
		return "", fmt.Errorf("%w: negative order index %d", ErrMalformedKey, orderIndex)
	}
	return encode(parentKey, orderIndex, name), nil
}

func encode(parentKey string, orderIndex int, name string) string {
	return SubPrefix + parentKey + ":" + strconv.Itoa(orderIndex) + ":" + name
}

// Normalize decodes raw and returns its identity.
func Normalize(raw string) (string, error) {
	k, err := Decode(raw)
	if err != nil {
		return "", err
	}
	return k.Identity(), nil
}

// SubMetricIdentity returns the identity of a sub-metric addressed by parent
// and name, as rocks reference them.
func SubMetricIdentity(parentKey, name string) string {
	return SubMetric(parentKey, nil, name).Identity()
}

func parseOrderIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	idx, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return idx, true
}
