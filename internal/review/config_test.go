package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("single")
	require.NoError(t, err)
	assert.Equal(t, PolicySingle, p)

	p, err = ParsePolicy("multiple")
	require.NoError(t, err)
	assert.Equal(t, PolicyMultiple, p)

	_, err = ParsePolicy("all")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ApprovalPolicy = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.HighPressureThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Workers = 0
	assert.Error(t, cfg.Validate())
}
