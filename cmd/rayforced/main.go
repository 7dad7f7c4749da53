// Command rayforced is RayforceDB's process entry point (spec §6): parse
// the one flag the core is visible to, build a heap and worker pool, and
// listen for IPC connections when a port is given; without one it logs
// that no listener is exposed and exits (the REPL front-end itself is
// out of scope, per spec §1).
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fagongzi/goetty/v2"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/internal/config"
	"github.com/rayforcedb/rayforce/internal/logutil"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/reactor"
	"github.com/rayforcedb/rayforce/pkg/sched"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/vm"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "rayforced:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	logger := logutil.New(logutil.Config{Level: zapDefaultLevel})
	defer logger.Sync()

	mainHeap, err := heap.New(0, heap.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("heap init: %w", err)
	}
	defer mainHeap.Close()

	pool, err := sched.Create(runtime.NumCPU(), mainHeap, logger)
	if err != nil {
		return fmt.Errorf("scheduler init: %w", err)
	}
	defer pool.Close()

	syms := symtab.New()
	machine := vm.New(syms, pool)

	r := reactor.New(mainHeap, syms, machine.Eval,
		reactor.WithReactorLogger(logger),
		reactor.WithOpenHook(func(id int64) {
			logger.Info("connection ready", zap.Int64("conn", id))
		}),
		reactor.WithCloseHook(func(id int64) {
			logger.Info("connection closed", zap.Int64("conn", id))
		}),
	)

	if cfg.Port == 0 {
		logger.Info("no --port given; rayforced exposes no listener in this mode")
		return nil
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	app, err := goetty.NewApplication(addr, nil,
		goetty.WithAppLogger(logger),
		goetty.WithAppHandleSessionFunc(func(rs goetty.IOSession) error {
			return serveSession(r, rs)
		}),
		goetty.WithAppSessionOptions(
			goetty.WithSessionCodec(rawCodec{}),
			goetty.WithSessionLogger(logger),
		),
	)
	if err != nil {
		return fmt.Errorf("listener init: %w", err)
	}

	logger.Info("rayforced listening", zap.String("addr", addr))
	return app.Start()
}

const zapDefaultLevel = zap.InfoLevel
