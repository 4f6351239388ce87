package main

import (
	"path/filepath"
	"testing"

	"sql-search/configs"

	"github.com/stretchr/testify/assert"
)

func TestRootCommandStartupErrors(t *testing.T) {
	tests := []struct {
		name        string
		databaseURL string
		args        []string
	}{
		{name: "missing DATABASE_URL", databaseURL: ""},
		{name: "unsupported scheme", databaseURL: "oracle://u:p@db.local/app"},
		{name: "pool size flag below one", databaseURL: "mysql://u:p@127.0.0.1:1/app", args: []string{"--pool-size", "0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", tt.databaseURL)
			t.Setenv("LOG_LEVEL", "error")

			cmd := newRootCommand()
			cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "absent.env")}, tt.args...))

			err := cmd.Execute()
			assert.ErrorIs(t, err, configs.ErrStartupConfig)
		})
	}
}
