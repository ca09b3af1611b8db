// Command tunnelctl supervises a wireproxy tunnel from the terminal.
//
// Usage:
//
//	tunnelctl [flags] run             start the persisted tunnel and supervise it
//	tunnelctl [flags] select <file>   switch to the endpoint in <file>, then supervise
//	tunnelctl [flags] status          print the persisted config and proxy setting
//	tunnelctl version                 print the library version
//
// While running, press Enter to pick another endpoint. Ctrl-C stops the
// tunnel and clears the proxy setting.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/axondata/go-tunnelctl"
	"github.com/axondata/go-tunnelctl/internal/logging"
	"github.com/rs/zerolog"
)

func main() {
	baseDir := defaultBaseDir()
	settingsPath := flag.String("settings", filepath.Join(baseDir, "tunnelctl.toml"), "Settings file (TOML)")
	envPath := flag.String("env", ".env", "Optional .env file with TUNNELCTL_* overrides")
	flag.Parse()

	if err := run(flag.Args(), *settingsPath, *envPath, baseDir); err != nil {
		fmt.Fprintln(os.Stderr, "tunnelctl:", err)
		os.Exit(1)
	}
}

func run(args []string, settingsPath, envPath, baseDir string) error {
	cmd := "run"
	if len(args) > 0 {
		cmd = args[0]
	}
	if cmd == "version" {
		v := tunnelctl.GetVersion()
		fmt.Printf("tunnelctl %s (%s %s <config>)\n", v.Version, v.Binary, v.ConfigFlag)
		return nil
	}

	cfg, err := loadSettings(settingsPath, envPath, baseDir)
	if err != nil {
		return err
	}
	log := logging.New(logging.ProfileRuntime, os.Stderr, cfg.LogLevel)

	switch cmd {
	case "status":
		return printStatus(os.Stdout, cfg)
	case "run":
		return supervise(log, cfg, "")
	case "select":
		if len(args) < 2 {
			return errors.New("select requires an endpoint file")
		}
		return supervise(log, cfg, args[1])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printStatus(out io.Writer, cfg settings) error {
	store := tunnelctl.NewConfigStore(cfg.ConfigPath)
	sc, ok, err := store.Read()
	if err != nil {
		return err
	}
	proxy, err := tunnelctl.NewFileProxySetting(cfg.HostSettings).Get()
	if err != nil {
		return err
	}

	if !ok {
		p := tunnelctl.Describe(tunnelctl.StateNoConfig, "", uint16(cfg.BindPort))
		fmt.Fprintf(out, "%s\n  %s\n", p.Label, p.Tooltip)
	} else {
		fmt.Fprintf(out, "profile:  %s\nendpoint: %s\nbind:     %s\n", sc.Profile(), sc.EndpointPath, sc.ProxyURL())
	}
	fmt.Fprintf(out, "config:   %s\nproxy:    %q\n", cfg.ConfigPath, proxy)
	return nil
}

func supervise(log zerolog.Logger, cfg settings, endpoint string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	port := uint16(cfg.BindPort)
	store := tunnelctl.NewConfigStore(cfg.ConfigPath)
	sup := tunnelctl.NewSupervisor(context.Background(),
		tunnelctl.WithBinary(cfg.Binary),
		tunnelctl.WithStabilityWindow(cfg.StabilityWindow),
		tunnelctl.WithProxySetting(tunnelctl.NewFileProxySetting(cfg.HostSettings)),
		tunnelctl.WithBindAddress(cfg.BindHost, port),
		tunnelctl.WithLogger(log.With().Str("component", "supervisor").Logger()),
	)

	in := bufio.NewReader(os.Stdin)
	indicator := &terminalIndicator{out: os.Stdout, log: log}
	ctrl := tunnelctl.NewController(
		store,
		sup,
		tunnelctl.NewStatusModel(indicator, port),
		&promptPicker{in: in, out: os.Stdout},
		&logNotifier{out: os.Stderr, log: log},
		tunnelctl.WithControllerLogger(log.With().Str("component", "controller").Logger()),
		tunnelctl.WithControllerBindAddress(cfg.BindHost, port),
	)

	runDone := make(chan error, 1)
	go func() {
		runDone <- ctrl.Run(ctx)
	}()

	if err := ctrl.Activate(ctx, indicator); err != nil {
		log.Error().Err(err).Msg("activation failed")
	}
	if endpoint != "" {
		if err := ctrl.SelectEndpoint(ctx, endpoint); err != nil {
			log.Error().Err(err).Str("path", endpoint).Msg("endpoint selection failed")
		}
	}

	events, stopWatch, err := store.Watch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("config watch unavailable")
	} else {
		go func() {
			for ev := range events {
				if err := ctrl.HandleConfigChange(ctx, ev); err != nil {
					log.Error().Err(err).Msg("applying config change")
				}
			}
		}()
	}

	go func() {
		for {
			if _, err := in.ReadString('\n'); err != nil {
				return
			}
			indicator.activate()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Termination has no timeout; a tunnel that ignores SIGTERM blocks here.
	shutdown := context.Background()
	if err := ctrl.Deactivate(shutdown); err != nil {
		log.Error().Err(err).Msg("stopping tunnel")
	}
	if stopWatch != nil {
		_ = stopWatch()
	}
	if err := sup.Close(shutdown); err != nil {
		return err
	}
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
