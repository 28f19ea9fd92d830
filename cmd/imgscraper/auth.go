package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"imgscraper/pkg/auth"
	"imgscraper/pkg/provider"
	"imgscraper/pkg/ui"
)

var verifyKey bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage provider API keys",
	Long: `Manage API keys of the providers that need one (pixabay, unsplash).

Keys are stored in, by preference:
  - the system keychain
  - an AES encrypted file in the config directory
  - IMGSCRAPER_<PROVIDER>_KEY environment variables (read only)`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <provider>",
	Short: "Store the API key of a provider",
	Long: `Store the API key of a provider. The key is read from the terminal
without echo, or from stdin when it is not a terminal.`,
	Example: `  imgscraper auth set pixabay
  echo "$KEY" | imgscraper auth set unsplash --verify`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: auth.KeyedProviders,
	RunE:      runAuthSet,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <provider>",
	Short: "Remove a stored API key",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored API keys (masked)",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authDeleteCmd)
	authCmd.AddCommand(authListCmd)

	authSetCmd.Flags().BoolVar(&verifyKey, "verify", false, "run a test search with the key before storing it")
}

func isKeyedProvider(name string) bool {
	for _, p := range auth.KeyedProviders {
		if p == name {
			return true
		}
	}
	return false
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	name := strings.ToLower(strings.TrimSpace(args[0]))
	if !isKeyedProvider(name) {
		return fmt.Errorf("%s does not take an API key (keyed providers: %v)", name, auth.KeyedProviders)
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if url := auth.KeyURL(name); url != "" {
		ui.PrintInfo("Get a key at", url)
	}
	fmt.Fprintf(os.Stderr, "%s API key: ", name)
	key, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("no key entered")
	}

	if verifyKey {
		if err := verifyProviderKey(cmd.Context(), name, key); err != nil {
			return fmt.Errorf("key rejected: %w", err)
		}
		ui.PrintSuccess("Key works")
	}

	if err := manager.Store(&auth.Credential{Provider: name, APIKey: key}); err != nil {
		return err
	}
	ui.PrintSuccess("Stored API key for " + name)
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Removed API key for " + args[0])
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintWarning("No API keys stored")
		fmt.Fprintln(ui.Output, "\nStore one with:")
		fmt.Fprintln(ui.Output, "  imgscraper auth set pixabay")
		return nil
	}
	for _, c := range creds {
		s := auth.Sanitize(c)
		ui.PrintInfo(s.Provider, fmt.Sprintf("%s (updated %s)", s.APIKey, s.LastModified.Format(time.DateOnly)))
	}
	return nil
}

// verifyProviderKey runs one real search with the key
func verifyProviderKey(ctx context.Context, name, key string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	p, err := provider.New(name, provider.Settings{APIKey: key, Timeout: 15 * time.Second})
	if err != nil {
		return err
	}
	_, err = p.Search(ctx, provider.Query{Keyword: "Paris landmark", Constraints: provider.DefaultConstraints()})
	return err
}

// readSecret reads a line from the terminal without echo, or from stdin
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
