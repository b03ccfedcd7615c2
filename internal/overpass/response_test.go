package overpass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	r, err := ParseResponse([]byte(okBody))
	require.NoError(t, err)
	require.Len(t, r.Elements, 1)

	e := r.Elements[0]
	assert.Equal(t, "node/1", e.Key())
	assert.Equal(t, "Rosa's Grocery", e.Name())
	assert.Equal(t, "shop=supermarket", e.Category())
	assert.Empty(t, e.PostalCode())
	assert.InDelta(t, -122.41, e.Point().X(), 1e-9)

	_, err = ParseResponse([]byte("<html>"))
	assert.Error(t, err)
}

func TestElement_Category(t *testing.T) {
	assert.Equal(t, "amenity=cafe", Element{Tags: map[string]string{"amenity": "cafe"}}.Category())
	assert.Equal(t, "", Element{}.Category())
	assert.Equal(t, "94110", Element{Tags: map[string]string{"addr:postcode": "94110"}}.PostalCode())
}
