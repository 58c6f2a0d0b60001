package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bsinger98/MHBench/pkg/config"
	"github.com/bsinger98/MHBench/pkg/events"
	"github.com/bsinger98/MHBench/pkg/journal"
	"github.com/bsinger98/MHBench/pkg/logging"
	"github.com/bsinger98/MHBench/pkg/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "mhbench",
	Short:         "Cyber-range environment generator and deployer",
	Long:          "mhbench generates randomized network topologies with attack paths,\nand compiles, deploys, and resets them on an OpenStack cloud.",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "configuration file")
}

// Execute runs the CLI, printing the failure and exiting non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

// app holds everything a command needs: parsed config, logging, the
// topology store, and the optional event bus and deployment journal.
type app struct {
	cfg    *config.Config
	handle *logging.Handle
	store  store.Store
	events events.Publisher
	jrnl   journal.Journal

	closers []func() error
}

// newApp loads the configuration and wires the shared collaborators.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	handle, err := logging.Init(cfg.LogDir, logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		handle: handle,
		events: events.NopPublisher{},
		jrnl:   journal.NopJournal{},
	}
	a.closers = append(a.closers, handle.Shutdown)

	if a.store, err = newStore(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.EventBusAddr != "" {
		bus, err := events.NewBus(cfg.EventBusAddr, handle.Logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.events = bus
		a.closers = append(a.closers, bus.Close)
	}

	if cfg.JournalURL != "" {
		pg, err := journal.NewPGJournal(ctx, cfg.JournalURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.jrnl = pg
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
	}

	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Store.Bucket != "" {
		return store.NewS3Store(ctx, cfg.Store.Region, cfg.Store.Bucket, cfg.Store.Prefix)
	}
	return store.NewLocalStore(cfg.Store.Dir)
}

func (a *app) logger() logging.Logger {
	return a.handle.Logger
}

// Close releases collaborators in reverse acquisition order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			fmt.Fprintln(os.Stderr, "close:", err)
		}
	}
	a.closers = nil
}
