package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/opsdata/etl-scripts/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigTemplateCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	c := newConfigTemplateCmd()
	c.SetOut(&out)
	c.SetArgs([]string{path})
	require.NoError(t, c.Execute())
	assert.Equal(t, "Config template written to "+path+"\n", out.String())

	cfg, err := config.Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxRetries, cfg.Database.MaxRetries)
	assert.Equal(t, "sqlserver", cfg.Database.Driver)
}

func TestConfigTemplateCmdRejectsUnknownExtension(t *testing.T) {
	c := newConfigTemplateCmd()
	c.SetOut(&bytes.Buffer{})
	c.SetErr(&bytes.Buffer{})
	c.SetArgs([]string{filepath.Join(t.TempDir(), "config.toml")})

	assert.ErrorContains(t, c.Execute(), "unsupported config file extension")
}
