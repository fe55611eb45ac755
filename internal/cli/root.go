// Package cli implements the gallery command line: an interactive browser
// and the management commands.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/nghiemng0310/nail/internal/gallery"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultServer  = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
)

// Settings holds the values shared by every subcommand.
type Settings struct {
	Server  string
	Timeout time.Duration
}

// RootCommand builds the command tree. Flags are bound through viper so
// GALLERY_SERVER and GALLERY_TIMEOUT work as defaults.
func RootCommand(in io.Reader) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", defaultServer)
	v.SetDefault("timeout", defaultTimeout)

	settings := &Settings{}

	rootCmd := &cobra.Command{
		Use:           "gallery",
		Short:         "Browse and manage the nail design gallery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("server", defaultServer, "Gallery API base URL")
	rootCmd.PersistentFlags().Duration("timeout", defaultTimeout, "Per-request timeout")
	if err := v.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(fmt.Sprintf("bind flags: %v", err))
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		settings.Server = v.GetString("server")
		settings.Timeout = v.GetDuration("timeout")
		if settings.Server == "" {
			return fmt.Errorf("--server is required")
		}
		return nil
	}

	if in == nil {
		in = os.Stdin
	}
	client := func() *gallery.Client {
		return gallery.NewClient(settings.Server, settings.Timeout)
	}

	rootCmd.AddCommand(
		browseCommand(client, in),
		listCommand(client),
		getCommand(client),
		createCommand(client),
		updateCommand(client),
		deleteCommand(client),
		likeCommand(client),
		categoriesCommand(client),
	)
	return rootCmd
}
