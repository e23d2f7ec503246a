package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SafeExit runs the registered funcs on the first stop signal. A second
// signal exits immediately.
type SafeExit struct {
	funcs []func()
	mu    sync.Mutex
	once  sync.Once
}

// InitSafeExit 开始监听系统信号, returning a context cancelled on the first
// stop signal.
func InitSafeExit(parent context.Context) (context.Context, *SafeExit) {
	ctx, cancel := context.WithCancel(parent)
	s := new(SafeExit)
	s.Register(cancel)
	go s.ListenSignal()
	return ctx, s
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

func (s *SafeExit) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range s.funcs {
		f()
	}
}

func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	for sig := range sigs {
		stopped := false
		s.once.Do(func() {
			fmt.Fprintf(os.Stderr, "收到系统信号 %s, 正在停止任务, 请稍后\n", sig)
			s.stop()
			stopped = true
		})
		if !stopped {
			os.Exit(1)
		}
	}
}
