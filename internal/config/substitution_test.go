package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvVarsUsesEnv(t *testing.T) {
	t.Setenv("FOO_KEY", "bar")
	out, err := SubstituteEnvVars("key=${env://FOO_KEY}")
	require.NoError(t, err)
	require.Equal(t, "key=bar", out)
}

func TestSubstituteEnvVarsUsesDefaultWhenUnset(t *testing.T) {
	out, err := SubstituteEnvVars("url=${env://UNSET_VAR:-http://localhost}")
	require.NoError(t, err)
	require.Equal(t, "url=http://localhost", out)
}

func TestSubstituteEnvVarsErrorsWhenRequiredAndUnset(t *testing.T) {
	_, err := SubstituteEnvVars("key=${env://TOTALLY_UNSET_VAR}")
	require.Error(t, err)
}

func TestHasEnvVars(t *testing.T) {
	require.True(t, HasEnvVars("${env://X}"))
	require.False(t, HasEnvVars("plain string"))
}
