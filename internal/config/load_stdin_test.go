package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSingleStdinFileSource_AllowsZeroOrOneStdinSource(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		v := viper.New()
		v.Set("schema.file", "/tmp/schema.yaml")
		v.Set("permissions.file", "/tmp/permissions.yaml")
		v.Set("data.file", "")

		assert.NoError(t, validateSingleStdinFileSource(v))
	})

	t.Run("one", func(t *testing.T) {
		v := viper.New()
		v.Set("schema.file", "@-")
		v.Set("permissions.file", "/tmp/permissions.yaml")
		v.Set("data.file", "")

		assert.NoError(t, validateSingleStdinFileSource(v))
	})
}

func TestValidateSingleStdinFileSource_RejectsMultipleStdinSources(t *testing.T) {
	v := viper.New()
	v.Set("schema.file", "@-")
	v.Set("permissions.file", " @- ")
	v.Set("data.file", "@-")

	err := validateSingleStdinFileSource(v)
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "schema.file")
	assert.Contains(t, msg, "permissions.file")
	assert.Contains(t, msg, "data.file")
}
