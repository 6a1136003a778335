package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "shelf "), out.String())
}

func TestMigrateRequiresDatabase(t *testing.T) {
	t.Setenv("SHELF_SESSION_SECRET", "c2hlbGYtdGVzdC1zZWNyZXQtMzItYnl0ZXMtbG9uZyE=")
	t.Setenv("SHELF_DATABASE_DSN", "")

	root := newRootCmd()
	root.SetArgs([]string{"migrate"})
	assert.ErrorContains(t, root.Execute(), "SHELF_DATABASE_DSN")
}

func TestUnknownCommand(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"frobnicate"})
	assert.Error(t, root.Execute())
}
