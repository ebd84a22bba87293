package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMainApp(t *testing.T) {
	t.Run("app structure", func(t *testing.T) {
		app := newApp()

		require.Equal(t, "nsm-session", app.Name)
		names := make([]string, 0, len(app.Commands))
		for _, c := range app.Commands {
			names = append(names, c.Name)
		}
		require.Equal(t, []string{"random", "attest", "describe", "verify", "manifest", "demo", "device"}, names)
	})

	t.Run("help command", func(t *testing.T) {
		var buf bytes.Buffer
		app := newApp()
		app.Writer = &buf

		err := app.Run(context.Background(), []string{"nsm-session", "--help"})
		require.NoError(t, err)

		output := buf.String()
		require.Contains(t, output, "nsm-session")
		require.Contains(t, output, "COMMANDS:")
		require.Contains(t, output, "attest")
	})

	t.Run("every command has an action or subcommands", func(t *testing.T) {
		for _, c := range newApp().Commands {
			require.True(t, c.Action != nil || len(c.Commands) > 0, c.Name)
			require.NotEmpty(t, c.Usage, c.Name)
		}
	})
}
