package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"
)

var (
	success = color.New(color.FgGreen).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	hint    = color.New(color.FgYellow).SprintFunc()
	heading = color.New(color.Bold).SprintFunc()
)

// stdout is where machine-readable results go
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// stderr is where human-readable progress goes
func stderr(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}

// writeResult writes data to path, or to stdout when path is empty. Text
// results get a trailing newline on stdout.
func writeResult(cmd *cli.Command, path string, data []byte, text bool) error {
	if path != "" {
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(stderr(cmd), "%s wrote %d bytes to %s\n", success("✓"), len(data), path)
		return nil
	}
	w := stdout(cmd)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if text {
		fmt.Fprintln(w)
	}
	return nil
}
