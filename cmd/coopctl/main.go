// Command coopctl drives the registry API from the command line: it logs
// in, generates certificates and exports, and saves them locally.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"coopregistry/portal-backend/pkg/apiclient"
	"coopregistry/portal-backend/pkg/pdf"
)

var (
	serverURL string
	token     string
	username  string
	password  string
	outDir    string
	timeout   time.Duration
	verbose   bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "coopctl",
	Short: "Command line client for the cooperative registry",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			logger = l
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("COOPCTL_SERVER", "http://localhost:8080"), "registry base URL (or set COOPCTL_SERVER)")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("COOPCTL_TOKEN"), "bearer token (or set COOPCTL_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&username, "username", "u", "", "log in with this username instead of a token")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", os.Getenv("COOPCTL_PASSWORD"), "password for --username (or set COOPCTL_PASSWORD)")
	rootCmd.PersistentFlags().StringVarP(&outDir, "out", "o", ".", "directory downloaded documents are saved to")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "operation timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	exportCmd.AddCommand(exportDirectoryCmd)
	exportCmd.AddCommand(exportMembersCmd)
	cooperativesCmd.AddCommand(cooperativesListCmd)
	cooperativesCmd.AddCommand(cooperativesStatusCmd)

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(certificateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(cooperativesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// connect returns an API client holding a token, logging in first when
// credentials were given.
func connect(ctx context.Context) (*apiclient.API, error) {
	api := apiclient.New(serverURL, apiclient.WithToken(token))
	if username != "" {
		if _, err := api.Login(ctx, username, password); err != nil {
			return nil, fmt.Errorf("login failed: %w", err)
		}
		logger.Debug("logged in", zap.String("username", username))
	}
	return api, nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

// save writes a downloaded file to the output directory. A nil file means
// the server produced nothing.
func save(ctx context.Context, cmd *cobra.Command, f *apiclient.File) error {
	if f == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to save: the requested element was not found")
		return nil
	}
	if err := (pdf.DirSaver{Dir: outDir}).Save(ctx, f.Filename, f.Data); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes, document %s)\n", f.Filename, len(f.Data), f.DocumentID)
	return nil
}
