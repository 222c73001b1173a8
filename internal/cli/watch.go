package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lwoollett/FrameHub/internal/catalog"
	"github.com/lwoollett/FrameHub/internal/mastery"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	MetricsAddr string
	NoWatch     bool
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep a session open and apply changes from standard input",
		Long: `Keep a session open, reading one change per line from standard input.
Changes are written after the configured quiet period, so a burst of edits
becomes a single write.

Input lines:
  master <item>           unmaster <item>
  rank <item> <rank>      counter <kind> <value>
  filter <key> <bool>     master-all | unmaster-all
  flush                   status

The catalog file is reloaded when it changes (unless --no-watch). With
--metrics-addr, Prometheus metrics are served on /metrics. The command
stops at the end of input or on SIGINT/SIGTERM, writing pending changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	cmd.Flags().BoolVar(&opts.NoWatch, "no-watch", false, "do not reload the catalog when its file changes")

	return cmd
}

func runWatch(opts *WatchOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	env, err := opts.openEnvironment(cmd)
	if err != nil {
		return out.Fail(err)
	}
	logger := env.logger

	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	metricsAddr := env.cfg.Metrics.Addr
	if opts.MetricsAddr != "" {
		metricsAddr = opts.MetricsAddr
	}
	var srv *http.Server
	if metricsAddr != "" {
		srv, err = startMetricsServer(ctx, metricsAddr)
		if err != nil {
			closeErr := env.close(context.WithoutCancel(ctx))
			return out.Fail(WrapExitError(ExitCommandError, "failed to start metrics server", errors.Join(err, closeErr)))
		}
		logger.Info("metrics server listening", "addr", metricsAddr)
	}

	watchDone := make(chan struct{})
	if env.cfg.Catalog.Watch && !opts.NoWatch {
		go func() {
			defer close(watchDone)
			err := catalog.Watch(ctx, env.cfg.Catalog.Path, env.session.Loader(), func(cat *catalog.Catalog) {
				env.session.Tracker().ReplaceCatalog(cat)
				logger.Info("catalog reloaded", "stamp", env.session.Loader().Stamp(), "items", cat.Len())
			})
			if err != nil {
				logger.Warn("catalog watch stopped", "error", err)
			}
		}()
	} else {
		close(watchDone)
	}

	logger.Info("session open", "document", env.session.Ref().String(), "kind", env.session.Kind())

	lines := make(chan string)
	go readLines(ctx, cmd.InOrStdin(), lines)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if err := applyLine(ctx, env, out, line); err != nil {
				// Rejected lines are reported and the session continues.
				fmt.Fprintf(out.GetErrWriter(), "Error [%s]: %v\n", ErrorCode(err), err)
			}
		}
	}
	cancel()
	<-watchDone

	if srv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
		done()
	}

	if err := env.close(context.Background()); err != nil {
		return out.Fail(saveFailed(err))
	}
	logger.Info("session stopped")
	return nil
}

// startMetricsServer serves the default Prometheus registry on addr until
// the server is shut down.
func startMetricsServer(ctx context.Context, addr string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
		}
	}()
	return srv, nil
}

func readLines(ctx context.Context, r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
}

// applyLine executes one input line against the open session.
func applyLine(ctx context.Context, env *environment, out *OutputFormatter, line string) error {
	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	t := env.session.Tracker()

	switch verb {
	case "master":
		return mutationResult("master", t.MasterItem(rest))
	case "unmaster":
		return mutationResult("unmaster", t.UnmasterItem(rest))
	case "master-all":
		return mutationResult("master-all", t.MasterAll())
	case "unmaster-all":
		return mutationResult("unmaster-all", t.UnmasterAll())

	case "rank":
		name, rankArg, ok := cutLast(rest)
		if !ok {
			return NewExitError(ExitCommandError, "usage: rank <item> <rank>")
		}
		rank, err := strconv.Atoi(rankArg)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid rank %q", rankArg), err)
		}
		return mutationResult("rank", t.SetPartialRank(name, rank, levelCap(t.Catalog(), name)))

	case "counter":
		kind, valueArg, ok := cutLast(rest)
		if !ok {
			return NewExitError(ExitCommandError, "usage: counter <kind> <value>")
		}
		value, err := strconv.Atoi(valueArg)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid counter value %q", valueArg), err)
		}
		return mutationResult("counter", t.SetCounter(mastery.Counter(kind), value))

	case "filter":
		key, valueArg, ok := cutLast(rest)
		if !ok {
			return NewExitError(ExitCommandError, "usage: filter <key> <bool>")
		}
		value, err := strconv.ParseBool(valueArg)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid filter value %q", valueArg), err)
		}
		return mutationResult("filter", t.SetFilter(key, value))

	case "flush":
		if err := t.FlushNow(ctx); err != nil {
			return saveFailed(err)
		}
		return nil

	case "status":
		return out.Success(newStatusView(env.session))

	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown command %q", verb))
	}
}

func mutationResult(op string, err error) error {
	if err != nil {
		return wrapMutationError(op, err)
	}
	return nil
}

// cutLast splits s at its last space, so item names may contain spaces.
func cutLast(s string) (head, last string, ok bool) {
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), s[i+1:], true
}
