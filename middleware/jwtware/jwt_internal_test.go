package jwtware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetExtractorsSkipsUnknownSources(t *testing.T) {
	extractors := GetExtractors("header:Authorization, cookie:session ,bogus:x,novalue", "Bearer")
	require.Len(t, extractors, 2)
}

func TestGetDefaultConfigPanicsWithoutValidator(t *testing.T) {
	require.Panics(t, func() {
		GetDefaultConfig(Config{})
	})
}
