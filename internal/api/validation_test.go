package api

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterPanicsOnBadTag(t *testing.T) {
	v := validator.New()
	ok := func(fl validator.FieldLevel) bool { return true }

	assert.NotPanics(t, func() { mustRegister(v, "always", ok) })
	assert.PanicsWithValue(t,
		"failed to register  validation: function Key cannot be empty",
		func() { mustRegister(v, "", ok) })
}

func TestFlagAcceptsCheckboxSpellings(t *testing.T) {
	for input, want := range map[string]bool{
		`true`: true, `1`: true, `"on"`: true, `"yes"`: true,
		`false`: false, `0`: false, `""`: false,
	} {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(input), &f), input)
		assert.Equal(t, want, bool(f), input)
	}

	var f Flag
	assert.Error(t, json.Unmarshal([]byte(`[]`), &f))
}
