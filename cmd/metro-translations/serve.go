package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/datamade/la-metro-translations/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the document webhook and translate endpoints",
	RunE:  runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (defaults to :PORT)")

	rootCmd.AddCommand(serveCmd)
}

type pinger interface {
	Ping(ctx context.Context) error
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, log, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	translator, err := rt.NewTranslator(ctx)
	if err != nil {
		return err
	}

	handlers := server.Handlers{
		Webhook:   rt.NewWebhook(),
		Translate: translator,
	}
	if p, ok := rt.Store.(pinger); ok {
		handlers.Health = p.Ping
	}

	addr := serveAddr
	if addr == "" {
		addr = ":" + rt.Config.Port
	}
	return server.Run(ctx, addr, server.NewRouter(handlers, log), log)
}
