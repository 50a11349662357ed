package config

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type colour string

func parseColour(s string) (colour, error) {
	switch s {
	case "red", "blue":
		return colour(s), nil
	case "":
		return "red", nil
	}
	return "", errors.Errorf("unknown colour %q", s)
}

type testConfig struct {
	Colour  colour
	Timeout time.Duration
	Names   []string
}

func TestDecoderOptions(t *testing.T) {
	v := viper.New()
	v.Set("colour", "blue")
	v.Set("timeout", "5s")
	v.Set("names", "a,b")

	config := testConfig{}
	require.NoError(t, v.Unmarshal(&config, DecoderOptions(StringEnumHookFunc(parseColour))))

	assert.Equal(t, testConfig{Colour: "blue", Timeout: 5 * time.Second, Names: []string{"a", "b"}}, config)
}

func TestStringEnumHookFunc_RejectsUnknownValue(t *testing.T) {
	v := viper.New()
	v.Set("colour", "green")

	config := testConfig{}
	err := v.Unmarshal(&config, DecoderOptions(StringEnumHookFunc(parseColour)))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown colour")
}
