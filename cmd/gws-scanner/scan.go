package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cedadev/gws-scanner/internal/config"
)

var scanViper = viper.New()

var scanCmd = &cobra.Command{
	Use:   "scan config_file gws_path",
	Short: "Scan one GWS volume and index it",
	Long:  `Scan a single GWS volume and write its directory, volume, and aggregate documents to the index (spec §6's single-volume command).`,
	Args:  cobra.ExactArgs(2),
	RunE:  runScan,
}

func init() {
	if err := config.BindFlags(scanViper, scanCmd.Flags()); err != nil {
		panic(fmt.Sprintf("bind scan flags: %v", err))
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	configFile, rawRoot := args[0], args[1]

	cfg, err := config.Load(scanViper, configFile)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(rawRoot)
	if err != nil {
		return fmt.Errorf("resolve root path: %w", err)
	}

	coord, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ncanceling... (press Ctrl+C again to force)")
		cancel()
		<-sigCh
		os.Exit(130)
	}()

	if err := coord.EnsureIndices(ctx); err != nil {
		return fmt.Errorf("ensure indices: %w", err)
	}

	fmt.Printf("scanning %s...\n", root)
	start := time.Now()
	vol, scanErr := coord.Scan(ctx, root, policyFor(cfg, root))
	elapsed := time.Since(start).Round(time.Millisecond)

	if scanErr != nil {
		return scanErr
	}

	fmt.Printf("scan complete in %s\n", elapsed)
	fmt.Printf("  scan id: %s\n", vol.ScanID)
	if vol.Size != nil {
		fmt.Printf("  size: %s\n", humanize.Bytes(uint64(*vol.Size)))
	}
	if vol.Count != nil {
		fmt.Printf("  count: %d\n", *vol.Count)
	}
	return nil
}
