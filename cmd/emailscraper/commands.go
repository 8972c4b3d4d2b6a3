package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hiteshvirani/email.scrapping/internal/browser"
	"github.com/hiteshvirani/email.scrapping/internal/crawl"
	"github.com/hiteshvirani/email.scrapping/internal/logger"
	"github.com/hiteshvirani/email.scrapping/internal/queries"
	"github.com/hiteshvirani/email.scrapping/internal/session"
	"github.com/hiteshvirani/email.scrapping/internal/store"
)

func newCrawlCmd() *cobra.Command {
	var csvPath string
	var maxPages int

	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run every pending query in a task-list CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" {
				csvPath = cfg.CSVPath
			}
			log := logger.WithComponent("main")

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, strings.Repeat("=", 70))
			fmt.Fprintln(out, "   EMAIL SCRAPER (Go)")
			fmt.Fprintln(out, "   Search result crawling with browser automation")
			fmt.Fprintln(out, strings.Repeat("=", 70))

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			pool, err := buildPool(cfg)
			if err != nil {
				return err
			}
			if cfg.UseProxy && pool.Len() == 0 {
				log.Warn().Msg("Proxy use is enabled but no proxies are configured, connecting directly")
			}

			ctrl := session.New(session.Options{
				Config: cfg,
				Launcher: &browser.Launcher{
					Headless:   cfg.Headless,
					ChromePath: cfg.ChromePath,
					Log:        logger.WithComponent("chrome"),
				},
				Pool:   pool,
				Logger: logger.WithComponent("session"),
			})
			defer ctrl.Close()

			log.Info().
				Str("csv", csvPath).
				Bool("headless", cfg.Headless).
				Bool("stealth", cfg.EnableStealth).
				Int("proxies", pool.Len()).
				Msg("Starting crawl")

			batch := &crawl.Batch{
				Runner:    ctrl,
				OutputDir: cfg.OutputDir,
				MaxPages:  maxPages,
				Log:       logger.WithComponent("crawl"),
			}
			sum, err := batch.Run(ctx, csvPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nDone! %d queries, %d saved, %d emails written to %s\n",
				sum.Tasks, sum.Saved, sum.Emails, cfg.OutputDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "Task-list CSV (default from config)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "Result pages per query (default from config)")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Append new site × city × provider queries to numbered task lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, files, err := queries.GeneratorFrom(cfg, logger.WithComponent("queries")).Generate()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d queries in %d file(s)\n", n, len(files))
			return nil
		},
	}
}

func newConsolidateCmd() *cobra.Command {
	var dir, outPath, domain string

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge per-query output files into the master email list",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = cfg.OutputDir
			}
			if outPath == "" {
				outPath = cfg.ConsolidatedPath
			}
			if !cmd.Flags().Changed("domain") {
				domain = cfg.EmailDomain
			}
			log := logger.WithComponent("store")

			st, err := store.Open(cfg.DatabasePath, log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer st.Close()

			if n, err := st.Count(); err == nil && n == 0 {
				seeded, err := st.Seed(outPath)
				if err != nil {
					return fmt.Errorf("seed from %s: %w", outPath, err)
				}
				if seeded > 0 {
					log.Info().Int("rows", seeded).Str("file", outPath).Msg("Seeded database from existing master list")
				}
			}

			res, err := st.Ingest(dir, domain)
			if err != nil {
				return err
			}
			total, err := st.Export(outPath)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d file(s): %d new, %d rejected. %d emails in %s\n",
				res.Files, res.Added, res.Rejected, total, outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Folder of per-query CSVs (default from config)")
	cmd.Flags().StringVar(&outPath, "out", "", "Master CSV path (default from config)")
	cmd.Flags().StringVar(&domain, "domain", "", "Keep only addresses at this domain; empty keeps all")
	return cmd
}

func newProxiesCmd() *cobra.Command {
	proxies := &cobra.Command{
		Use:   "proxies",
		Short: "Proxy pool utilities",
	}
	proxies.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Check every configured proxy against the health endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := buildPool(cfg)
			if err != nil {
				return err
			}
			if pool.Len() == 0 {
				return errors.New("no proxies configured (set proxy_list_file or proxy_server)")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			pool.CheckAll(ctx, cfg.HealthTimeout())

			stats := pool.Stats()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SERVER\tHEALTHY\tFAILURES\tLAST USED")
			for _, p := range stats.Proxies {
				last := "-"
				if !p.LastUsed.IsZero() {
					last = p.LastUsed.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%v\t%d\t%s\n", p.Server, p.Healthy, p.Failures, last)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d/%d healthy\n", stats.Healthy, stats.Total)
			return nil
		},
	})
	return proxies
}
