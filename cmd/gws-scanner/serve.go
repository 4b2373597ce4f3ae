package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cedadev/gws-scanner/internal/config"
	"github.com/cedadev/gws-scanner/internal/coordinator"
	gwslog "github.com/cedadev/gws-scanner/internal/log"
)

var serveViper = viper.New()

var (
	serveRunForever bool
	serveInterval   time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve config_file gws_path...",
	Short: "Run the scan loop for one or more GWS volumes",
	Long: `serve wires a ticker that re-scans each named volume once
--interval has passed since its previous scan ended, reading that end
time from the volume index rather than keeping a local cache (spec §6's daemon
command; the daemon's own service-discovery/interval-gating policy
beyond this stays an external collaborator per the Non-goals).`,
	Args: cobra.MinimumNArgs(2),
	RunE: runServe,
}

func init() {
	if err := config.BindFlags(serveViper, serveCmd.Flags()); err != nil {
		panic(fmt.Sprintf("bind serve flags: %v", err))
	}
	serveCmd.Flags().BoolVar(&serveRunForever, "run-forever", true, "keep scanning on --interval until canceled; false runs one pass over every volume and exits")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", time.Hour, "minimum time between scans of the same volume")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, rawRoots := args[0], args[1:]

	cfg, err := config.Load(serveViper, configFile)
	if err != nil {
		return err
	}

	roots := make([]string, len(rawRoots))
	for i, r := range rawRoots {
		abs, err := filepath.Abs(r)
		if err != nil {
			return fmt.Errorf("resolve volume path %s: %w", r, err)
		}
		roots[i] = abs
	}

	coord, err := buildCoordinator(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := coord.EnsureIndices(ctx); err != nil {
		return fmt.Errorf("ensure indices: %w", err)
	}

	log := gwslog.WithComponent("serve")

	runPass := func() {
		for _, root := range roots {
			if ctx.Err() != nil {
				return
			}
			if !dueForScan(ctx, coord, root, serveInterval, log) {
				continue
			}
			log.Info().Str("path", root).Msg("starting scan")
			if _, err := coord.Scan(ctx, root, policyFor(cfg, root)); err != nil {
				log.Error().Err(err).Str("path", root).Msg("scan failed")
			}
		}
	}

	runPass()
	if !serveRunForever {
		return nil
	}

	ticker := time.NewTicker(serveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runPass()
		}
	}
}

// dueForScan reports whether root's last scan, if any, is old enough
// that another one should run now (spec §9's Open Question: gate on
// the index's record of the previous scan, not a process-local cache,
// so a restarted daemon doesn't immediately re-scan everything).
func dueForScan(ctx context.Context, coord *coordinator.Coordinator, root string, interval time.Duration, log zerolog.Logger) bool {
	last, ok, err := coord.LastScan(ctx, root)
	if err != nil {
		log.Warn().Err(err).Str("path", root).Msg("failed to check last scan; scanning anyway")
		return true
	}
	if !ok {
		return true
	}
	if last.EndTimestamp.IsZero() {
		// A prior scan is still in_progress (or crashed mid-scan without
		// reaching failed/complete): let it be; the coordinator doesn't
		// support concurrent scans of the same path.
		return false
	}
	return time.Since(last.EndTimestamp) >= interval
}
