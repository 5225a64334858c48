// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstituteEnvVarsUsesValue(t *testing.T) {
	t.Setenv("SPDM_TEST_VAR", "from-env")
	require.Equal(t, "from-env", SubstituteEnvVars("${SPDM_TEST_VAR}"))
}

func TestSubstituteEnvVarsUsesDefault(t *testing.T) {
	require.NoError(t, os.Unsetenv("SPDM_TEST_UNSET"))
	require.Equal(t, "fallback", SubstituteEnvVars("${SPDM_TEST_UNSET:fallback}"))
}

func TestGetEnvironmentDefaultsToDevelopment(t *testing.T) {
	t.Setenv("SPDM_ENV", "")
	t.Setenv("ENVIRONMENT", "")
	require.Equal(t, "development", GetEnvironment())
}

func TestIsProduction(t *testing.T) {
	t.Setenv("SPDM_ENV", "production")
	require.True(t, IsProduction())
	require.False(t, IsDevelopment())
}
