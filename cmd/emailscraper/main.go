package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hiteshvirani/email.scrapping/internal/config"
	"github.com/hiteshvirani/email.scrapping/internal/logger"
	"github.com/hiteshvirani/email.scrapping/internal/proxypool"
)

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:           "emailscraper",
	Short:         "Search-engine email crawler with proxy rotation and browser stealth",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init("info")
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		logger.Init(cfg.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json", "Path to config.json")
	rootCmd.AddCommand(newCrawlCmd(), newGenerateCmd(), newConsolidateCmd(), newProxiesCmd())
}

// buildPool loads the proxy list file and the single configured server, in
// that order.
func buildPool(cfg config.Config) (*proxypool.Pool, error) {
	pool := proxypool.New(proxypool.Options{
		DefaultUsername: cfg.ProxyUsername,
		DefaultPassword: cfg.ProxyPassword,
		MaxFailures:     cfg.MaxProxyFailures,
		HealthCheckURL:  cfg.HealthCheckURL,
		Logger:          logger.WithComponent("proxypool"),
	})
	if cfg.ProxyListFile != "" {
		if _, err := pool.LoadFile(cfg.ProxyListFile); err != nil {
			return nil, err
		}
	}
	if cfg.ProxyServer != "" {
		pool.LoadList([]string{cfg.ProxyServer})
	}
	return pool, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "[X]", err)
		os.Exit(1)
	}
}
