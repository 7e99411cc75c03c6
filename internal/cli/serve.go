package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/httpapi"
	"github.com/ppiankov/transferguard/internal/server"
)

var (
	servePort     int
	serveHTTPAddr string
	serveNoReload bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 50051, "gRPC listen port")
	serveCmd.Flags().StringVar(&serveHTTPAddr, "http", "", "Also serve the JSON API on this address (e.g. :8080)")
	serveCmd.Flags().BoolVar(&serveNoReload, "no-reload", false, "Do not watch the policy and denylist for changes")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the transfer guard server",
	Long: "Runs transferguard as a central server over gRPC and, with --http,\n" +
		"a JSON API. Wallets and agents connect as clients for remote checks.\n" +
		"Policy and denylist files are hot-reloaded.",
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, err := guard.Open(guard.Options{PolicyPath: policyPath, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to open guard: %w", err)
	}
	defer svc.Close()

	log := logger.WithField("component", "serve")
	ctx, cancel := signalContext()
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if !serveNoReload {
		reloader, err := server.NewReloader(svc, svc.WatchPaths(), logger)
		if err != nil {
			log.WithError(err).Warn("hot-reload disabled")
		} else {
			g.Go(func() error { return reloader.Run(gctx) })
		}
	}

	srv := server.New(server.Config{Port: servePort}, svc, logger)
	g.Go(func() error {
		return srv.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		srv.GracefulStop()
		return nil
	})

	if serveHTTPAddr != "" {
		httpSrv := &http.Server{
			Addr:              serveHTTPAddr,
			Handler:           httpapi.NewRouter(svc, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
		fmt.Fprintf(cmd.ErrOrStderr(), "transferguard HTTP API listening on %s\n", serveHTTPAddr)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "transferguard server listening on :%d\n", servePort)
	fmt.Fprintf(cmd.ErrOrStderr(), "Policy hash: %s\n", svc.PolicyHash())

	err = g.Wait()
	fmt.Fprintln(cmd.ErrOrStderr(), "transferguard server stopped")
	return err
}
