package validation

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateResourceName(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"simple", "host_1_subnet_2", false},
		{"with dash", "manage-network", false},
		{"empty", "", true},
		{"spaces", "bad name", true},
		{"slash", "a/b", true},
		{"too long", string(make([]byte, 65)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateResourceName(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateIPAddressAndCIDR(t *testing.T) {
	assert.NoError(t, ValidateIPAddress("192.168.200.10"))
	assert.Error(t, ValidateIPAddress("192.168.200"))
	assert.Error(t, ValidateIPAddress("not-an-ip"))

	assert.NoError(t, ValidateCIDR("192.168.200.0/24"))
	assert.Error(t, ValidateCIDR("192.168.200.0"))
}

func TestValidateFileAndDirExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(file, []byte("k"), 0o600))

	assert.NoError(t, ValidateFileExists(file))
	assert.Error(t, ValidateFileExists(filepath.Join(dir, "missing")))
	assert.Error(t, ValidateFileExists(dir))

	assert.NoError(t, ValidateDirExists(dir))
	assert.Error(t, ValidateDirExists(file))
}

func TestConfigValidatorCollectsErrors(t *testing.T) {
	cv := NewConfigValidator("DeployConfig").
		Required("KeyName", "").
		Positive("BatchSize", 0).
		MinDuration("PollInterval", time.Second, 2*time.Second).
		OneOf("LogLevel", "verbose", []string{"debug", "info", "warn", "error"})

	assert.True(t, cv.HasErrors())
	assert.Len(t, cv.Errors(), 4)
	assert.Error(t, cv.Validate())
	assert.Contains(t, cv.Error().Error(), "DeployConfig.KeyName")
}

func TestConfigValidatorPasses(t *testing.T) {
	cv := NewConfigValidator("DeployConfig").
		Required("KeyName", "range_key").
		Positive("BatchSize", 10).
		MinDuration("PollInterval", 5*time.Second, time.Second).
		OneOf("LogLevel", "info", []string{"debug", "info", "warn", "error"}).
		Custom("ExternalIP", func() error { return ValidateIPAddress("10.0.0.1") })

	assert.False(t, cv.HasErrors())
	assert.NoError(t, cv.Validate())
}

func TestDefaultHelpers(t *testing.T) {
	assert.Equal(t, 10, DefaultOrInt(0, 10))
	assert.Equal(t, 3, DefaultOrInt(3, 10))
	assert.Equal(t, 5*time.Second, DefaultOrDuration(0, 5*time.Second))
	assert.Equal(t, "fallback", DefaultOr("", "fallback"))
}
