package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"watchalong/internal/config"
)

var forceInit bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	Args:  cobra.NoArgs,
	RunE:  configInit,
}

var selectorsCmd = &cobra.Command{
	Use:   "selectors",
	Short: "Print the element selectors in effect",
	Args:  cobra.NoArgs,
	RunE:  printSelectors,
}

func configInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(configPath); err == nil && !forceInit {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}
	if err := config.DefaultConfig().Save(configPath); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
	return nil
}

func printSelectors(cmd *cobra.Command, args []string) error {
	sel := cfg.Selectors
	if cfg.SelectorsFile != "" {
		loaded, err := config.LoadSelectors(cfg.SelectorsFile, cfg.Selectors)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		sel = loaded
	}

	table := sel.Table()
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	for _, name := range names {
		fmt.Fprintf(out, "%-22s %s\n", name, table[name])
	}
	return nil
}
