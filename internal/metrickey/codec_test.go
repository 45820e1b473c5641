package metrickey

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestDecode_PlainKey(t *testing.T) {
	k, err := Decode("labor_revenue")
	require.NoError(t, err)

	assert.Equal(t, KindPlain, k.Kind)
	assert.Equal(t, "labor_revenue", k.Name)
	assert.False(t, k.IsSubMetric())
	assert.Equal(t, "labor_revenue", k.Identity())
}

func TestDecode_CurrentFormat(t *testing.T) {
	k, err := Decode("sub:total_sales:3:Shop Supplies")
	require.NoError(t, err)

	assert.Equal(t, KindSubMetric, k.Kind)
	assert.Equal(t, "total_sales", k.ParentKey)
	require.NotNil(t, k.OrderIndex)
	assert.Equal(t, 3, *k.OrderIndex)
	assert.Equal(t, "Shop Supplies", k.Name)
}

func TestDecode_LegacyFormat(t *testing.T) {
	k, err := Decode("sub:revenue:Tools & Supplies")
	require.NoError(t, err)

	assert.Equal(t, SubMetric("revenue", nil, "Tools & Supplies"), k)
	assert.Nil(t, k.OrderIndex)
}

func TestDecode_NameWithColons(t *testing.T) {
	k, err := Decode("sub:gross:2:Warranty: Internal: Labor")
	require.NoError(t, err)

	require.NotNil(t, k.OrderIndex)
	assert.Equal(t, 2, *k.OrderIndex)
	assert.Equal(t, "Warranty: Internal: Labor", k.Name)
}

func TestDecode_LegacyNameWithColon(t *testing.T) {
	// A non-numeric third segment cannot be an order index.
	k, err := Decode("sub:gross:Warranty: Internal")
	require.NoError(t, err)

	assert.Nil(t, k.OrderIndex)
	assert.Equal(t, "Warranty: Internal", k.Name)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []string{
		"sub:",
		"sub:revenue",
		"sub::1:Name",
		"sub:revenue:",
		"sub:revenue:4:",
	}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedKey))
		})
	}
}

func decoded(t *testing.T, raw string) Key {
	t.Helper()
	k, err := Decode(raw)
	require.NoError(t, err)
	return k
}

func TestEncode_CurrentFormat(t *testing.T) {
	key, err := Encode("parts_gross", 0, "Tires")
	require.NoError(t, err)
	assert.Equal(t, "sub:parts_gross:0:Tires", key)
}

func TestEncode_RejectsUndecodableParts(t *testing.T) {
	tests := map[string]struct {
		parent string
		order  int
		name   string
	}{
		"negative order": {"parts_gross", -1, "Tires"},
		"empty parent":   {"", 0, "Tires"},
		"empty name":     {"parts_gross", 0, ""},
		"colon parent":   {"parts:gross", 0, "Tires"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Encode(tt.parent, tt.order, tt.name)
			assert.ErrorIs(t, err, ErrMalformedKey)
		})
	}
}

func TestDecode_NegativeOrderIsLegacyName(t *testing.T) {
	// Encode never writes this; a stored one reads as a legacy name.
	k := decoded(t, "sub:p:-1:n")
	assert.Nil(t, k.OrderIndex)
	assert.Equal(t, "-1:n", k.Name)
	assert.Equal(t, "sub:p:-1:n", k.String())
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		parent string
		order  int
		name   string
	}{
		{"revenue", 0, "Tools & Supplies"},
		{"cost_of_sales", 12, "Shop Supplies"},
		{"gross", 1, "Internal: Warranty"},
		{"expenses", 7, "a:b:c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.parent, tt.order, tt.name)
			require.NoError(t, err)
			k, err := Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, SubMetric(tt.parent, intPtr(tt.order), tt.name), k)
			assert.Equal(t, encoded, k.String(), "encode→decode→encode must be stable")
		})
	}
}

func TestString_LegacyPreserved(t *testing.T) {
	raw := "sub:revenue:Tools & Supplies"
	assert.Equal(t, raw, decoded(t, raw).String())
}

func TestIdentity_IgnoresOrderIndex(t *testing.T) {
	legacy := decoded(t, "sub:revenue:Tools")
	current := decoded(t, "sub:revenue:4:Tools")

	assert.Equal(t, legacy.Identity(), current.Identity())
	assert.Equal(t, "sub:revenue:Tools", SubMetricIdentity("revenue", "Tools"))
}

func TestNormalize(t *testing.T) {
	id, err := Normalize("sub:revenue:9:Tools")
	require.NoError(t, err)
	assert.Equal(t, "sub:revenue:Tools", id)

	id, err = Normalize("labor_gross")
	require.NoError(t, err)
	assert.Equal(t, "labor_gross", id)

	_, err = Normalize("sub:bad")
	assert.Error(t, err)
}
