package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"imgscraper/pkg/config"
	"imgscraper/pkg/logger"
	"imgscraper/pkg/provider"
	"imgscraper/pkg/ui"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List image providers and their place in the chain",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

var providersSearchCmd = &cobra.Command{
	Use:   "search <provider> <keyword>",
	Short: "Run a single search against one provider",
	Example: `  imgscraper providers search wikimedia "Prague landmark"
  imgscraper providers search wikipedia "Eiffel Tower"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runProvidersSearch,
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersSearchCmd)
}

func runProviders(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, globalFlags(cmd))
	if err != nil {
		return err
	}
	injectStoredKeys(cfg, logger.NewNopLogger())

	position := make(map[string]int, len(cfg.Providers.Chain))
	for i, name := range cfg.Providers.Chain {
		position[name] = i + 1
	}

	rows := [][]string{{"Provider", "Chain", "Key", "Base URL"}}
	for _, name := range provider.Names() {
		chain := "-"
		if n, ok := position[name]; ok {
			chain = strconv.Itoa(n)
		}
		key := "not needed"
		if isKeyedProvider(name) {
			key = "missing"
			if cfg.Provider(name).APIKey != "" {
				key = "set"
			}
		}
		base := cfg.Provider(name).BaseURL
		if base == "" {
			base = "default"
		}
		rows = append(rows, []string{name, chain, key, base})
	}

	table, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(rows)).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Output, table)
	return nil
}

func runProvidersSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(globalFlags(cmd))
	if err != nil {
		return err
	}
	injectStoredKeys(cfg, logger.GetLogger())

	name := args[0]
	keyword := strings.Join(args[1:], " ")
	s := cfg.Provider(name)
	p, err := provider.New(name, provider.Settings{
		BaseURL:      s.BaseURL,
		APIKey:       s.APIKey,
		UserAgent:    cfg.Providers.UserAgent,
		APIUserAgent: cfg.Providers.APIUserAgent,
		Timeout:      cfg.Download.Timeout,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Download.Timeout+10*time.Second)
	defer cancel()

	res, err := p.Search(ctx, provider.Query{Keyword: keyword, Constraints: provider.DefaultConstraints()})
	if err != nil {
		return err
	}
	if !res.IsFound() {
		ui.PrintWarning("No image found for " + strconv.Quote(keyword))
		return nil
	}
	ui.PrintInfo("Found", res.URL())
	return nil
}
