package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/app"
	"github.com/dropDatabas3/brokerdisco/internal/broker"
	"github.com/dropDatabas3/brokerdisco/internal/config"
	httpserver "github.com/dropDatabas3/brokerdisco/internal/http"
	"github.com/dropDatabas3/brokerdisco/internal/http/responder"
	"github.com/dropDatabas3/brokerdisco/internal/metrics"
	"github.com/dropDatabas3/brokerdisco/internal/observability/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var version = "dev"

type cli struct {
	configPath string
	envFile    string
	out        string // "json" | "text"
	role       string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "brokerctl",
		Short:         "Descubrimiento del broker activo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.load()
		},
		PersistentPostRun: func(*cobra.Command, []string) { _ = logger.Sync() },
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Archivo YAML de configuración")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Archivo .env opcional")
	root.PersistentFlags().StringVar(&c.out, "out", "text", "Formato de salida: json|text")
	root.PersistentFlags().StringVar(&c.role, "role", "", "Rol del proceso: client|broker (default: app.role)")

	root.AddCommand(
		c.discoverCmd(),
		c.cacheCmd(),
		c.forceLegacyCmd(),
		c.serveCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Versión del binario",
			Run:   func(cmd *cobra.Command, _ []string) { fmt.Fprintln(cmd.OutOrStdout(), version) },
		},
	)
	return root
}

func (c *cli) load() error {
	config.LoadDotEnv(c.envFile)
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.role != "" {
		cfg.App.Role = c.role
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if c.out != "json" && c.out != "text" {
		return fmt.Errorf("--out debe ser json o text")
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "brokerctl", Version: version})
	c.cfg = cfg
	return nil
}

func (c *cli) container(ctx context.Context) (*app.Container, error) {
	role, err := broker.ParseRole(c.cfg.App.Role)
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, c.cfg, role, app.Options{Logger: logger.L()})
}

func (c *cli) print(w io.Writer, v any, text string) error {
	if c.out == "json" {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

type identityOut struct {
	Found              bool   `json:"found"`
	ApplicationID      string `json:"application_id,omitempty"`
	SigningFingerprint string `json:"signing_fingerprint,omitempty"`
}

func (c *cli) printIdentity(w io.Writer, id *broker.Identity) error {
	if id == nil {
		return c.print(w, identityOut{}, "no active broker")
	}
	return c.print(w, identityOut{Found: true, ApplicationID: id.ApplicationID, SigningFingerprint: id.SigningFingerprint}, id.String())
}

func (c *cli) discoverCmd() *cobra.Command {
	var skipCache bool
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Resuelve el broker activo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()

			id, err := ct.Discovery.ActiveBroker(ctx, skipCache)
			if err != nil {
				return err
			}
			return c.printIdentity(cmd.OutOrStdout(), id)
		},
	}
	cmd.Flags().BoolVar(&skipCache, "skip-cache", false, "Ignora el ganador cacheado")
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspecciona el cache del broker activo",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Muestra el ganador cacheado",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()

			id, err := ct.Cache.Get(ctx)
			if err != nil {
				return err
			}
			return c.printIdentity(cmd.OutOrStdout(), id)
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Borra el ganador cacheado",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()

			if err := ct.Cache.Clear(ctx); err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), map[string]bool{"cleared": true}, "cleared")
		},
	})
	return cmd
}

func (c *cli) forceLegacyCmd() *cobra.Command {
	var (
		window   time.Duration
		closeWin bool
	)
	cmd := &cobra.Command{
		Use:   "force-legacy",
		Short: "Abre, consulta o cierra la ventana de resolución legacy (rol client)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()
			if ct.ClientCache == nil {
				return fmt.Errorf("force-legacy solo aplica al rol client")
			}

			switch {
			case closeWin:
				if err := ct.ClientCache.ClearForceLegacy(ctx); err != nil {
					return err
				}
			case window > 0:
				if err := ct.ClientCache.SetForceLegacyFor(ctx, window); err != nil {
					return err
				}
			}

			until, err := ct.ClientCache.ForceLegacyUntil(ctx)
			if err != nil {
				return err
			}
			active, err := ct.ClientCache.ShouldUseLegacy(ctx)
			if err != nil {
				return err
			}
			out := map[string]any{"active": active}
			text := "inactive"
			if active {
				out["until"] = until.UTC().Format(time.RFC3339)
				text = "active until " + until.UTC().Format(time.RFC3339)
			}
			return c.print(cmd.OutOrStdout(), out, text)
		},
	}
	cmd.Flags().DurationVar(&window, "for", 0, "Abre la ventana por esta duración (ej. 60m)")
	cmd.Flags().BoolVar(&closeWin, "clear", false, "Cierra la ventana")
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Atiende broker_discovery por HTTP (rol broker)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c.cfg.App.Role = string(broker.RoleBroker)
			ct, err := c.container(ctx)
			if err != nil {
				return err
			}
			defer ct.Close()

			opts := responder.Options{
				Discoverer: ct.Discovery,
				LegacyOnly: c.cfg.Server.LegacyOnly,
				Logger:     logger.L(),
			}
			if c.cfg.Metrics.Enabled {
				if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
					return err
				}
				opts.Metrics = promhttp.Handler()
			}
			return httpserver.Start(ctx, c.cfg.Server.Addr, responder.New(opts), logger.L())
		},
	}
}
