package cli

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripdraw/tripdraw/internal/server"
	"github.com/tripdraw/tripdraw/pkg/cache"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the lottery HTTP API",
		Long: `Serve the lottery HTTP API.

The server exposes trip lotteries, separation management, graph
rendering, and run records over HTTP. Rendered artifacts and run
records are cached in Redis when it is reachable; without Redis the
server still works, just uncached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	st, err := c.newStore(ctx, "")
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	responseCache, err := cache.NewRedisCache(ctx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		printWarning("Redis unreachable (%v); serving uncached", err)
		responseCache = cache.NewNullCache()
	}
	defer responseCache.Close()

	srv := server.New(server.Options{
		Store:  st,
		Cache:  responseCache,
		Keys:   cache.NewScopedKeyer(cache.NewDefaultKeyer(), appName),
		Logger: c.Logger,
		TTL:    cfg.CacheTTL(),
		Secret: cfg.Lottery.SeedSecret,
	})

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	display := addr
	if strings.HasPrefix(display, ":") {
		display = "localhost" + display
	}
	printInfo("Lottery API: %s", StyleLink.Render("http://"+display))
	c.Logger.Infof("Listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		c.Logger.Info("Server stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
