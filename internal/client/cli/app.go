package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dmitrijs2005/secretvault/internal/client/adapters/remote"
	"github.com/dmitrijs2005/secretvault/internal/client/config"
	"github.com/dmitrijs2005/secretvault/internal/client/session"
	"github.com/dmitrijs2005/secretvault/internal/logging"
)

type App struct {
	config   *config.Config
	manager  *session.Manager
	backends *backends
	log      logging.Logger
	reader   *bufio.Reader

	outMu sync.Mutex
	out   io.Writer
}

// NewApp opens the configured backends and builds the session manager.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, err := logging.New(c.LogBackend, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	b, err := openBackends(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("open backends: %w", err)
	}
	log.Info(ctx, "backends ready", "drivers", describeBackends(c))

	a := &App{config: c, backends: b, log: log, reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	a.manager, err = newManager(ctx, c, b, log, a.printPhase)
	if err != nil {
		_ = b.close(ctx)
		return nil, err
	}
	return a, nil
}

// Run serves metrics if configured and blocks in the REPL until the user
// exits.
func (a *App) Run(ctx context.Context) error {
	defer a.Close(ctx)

	if a.config.MetricsAddr != "" {
		serveMetrics(ctx, a.config.MetricsAddr, a.log)
	}
	a.Root(ctx)
	return nil
}

func (a *App) Close(ctx context.Context) {
	a.manager.Close()
	if a.backends != nil {
		if err := a.backends.close(ctx); err != nil {
			a.log.Warn(ctx, "closing backends", "err", err)
		}
	}
}

// Root resumes a persisted session, if any, and runs the REPL.
func (a *App) Root(ctx context.Context) {
	a.println("Welcome to SecretVault (type 'help' for commands)")

	s, err := a.manager.Restore(ctx)
	switch {
	case err != nil:
		a.println("Could not resume session:", err)
	case s != nil:
		a.printf("Resumed session for %s (%s)\n", s.Identity().Email, s.Backend())
	}

	runREPL(ctx, a, a.status, a.reader)
}

func (a *App) status() string {
	s := a.manager.Current()
	if s == nil {
		return fmt.Sprintf("(%s)", a.manager.Backend())
	}
	label := s.CounterLabel()
	if label == "" {
		label = "empty"
	}
	return fmt.Sprintf("(%s %s, %s)", s.Identity().DisplayName, s.Backend(), label)
}

func (a *App) printPhase(ev remote.PhaseEvent) {
	result := "ok"
	if ev.Err != nil {
		result = "failed: " + ev.Err.Error()
	}
	a.printf("  %-8s %s %s\n", ev.Phase, ev.Name, result)
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) println(args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintln(a.out, args...)
}
