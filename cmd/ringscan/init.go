package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/ringscan/internal/config"
)

//go:embed templates/ringscan.yaml
var configTemplate []byte

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a .ringscan config file with the default ring layout",
		Long: `Write a commented .ringscan config file.

Every value in the file is a default, so replays behave the same until it is
edited. It documents the ring section (heights, radius, focus threshold,
upper/lower split), the capture section (minimum brightness and its unit,
duplicate captures) and per-trace overrides.

  ringscan init                  # ./.ringscan
  ringscan init -o lab.yaml      # another path, parent dirs are created
  ringscan init -f               # replace an existing file
  ringscan init --stdout         # print instead of writing`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", config.DefaultConfigFile, "where to write the config file")
	cmd.Flags().BoolP("force", "f", false, "replace the file if it exists")
	cmd.Flags().Bool("stdout", false, "print the template to stdout")
	cmd.MarkFlagsMutuallyExclusive("stdout", "output")

	return cmd
}

func runInitCmd(cmd *cobra.Command, _ []string) error {
	toStdout, err := cmd.Flags().GetBool("stdout")
	if err != nil {
		return err
	}
	if toStdout {
		_, err := cmd.OutOrStdout().Write(configTemplate)
		return err
	}

	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if err := writeTemplate(path, force); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s. Replays pick it up from the working or home directory, or pass it with -c.\n", path)
	return nil
}

// writeTemplate creates path with the config template. Without force an
// existing file is left alone and fs.ErrExist is returned.
func writeTemplate(path string, force bool) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0600) //nolint:gosec // path is supplied by the user
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%s already exists, rerun with -f to replace it: %w", path, err)
		}
		return fmt.Errorf("failed to create config file: %w", err)
	}
	if _, err := f.Write(configTemplate); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return f.Close()
}
