package optional

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type patch struct {
	City  String `json:"city"`
	State String `json:"state"`
	Zip   String `json:"zip"`
}

func TestStringDistinguishesAbsentNullAndValue(t *testing.T) {
	var p patch
	require.NoError(t, json.Unmarshal([]byte(`{"city":"Austin","state":null}`), &p))

	assert.Equal(t, Value, p.City.State())
	v, ok := p.City.Get()
	assert.True(t, ok)
	assert.Equal(t, "Austin", v)

	assert.Equal(t, Null, p.State.State())
	assert.Nil(t, p.State.SQLValue())

	assert.Equal(t, Unset, p.Zip.State())
	assert.False(t, p.Zip.IsSet())
}

func TestStringRejectsNonString(t *testing.T) {
	var p patch
	require.Error(t, json.Unmarshal([]byte(`{"city":12}`), &p))
}
