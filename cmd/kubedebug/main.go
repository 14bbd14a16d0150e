/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
kubedebug - interactive Kubernetes debugging assistant

Usage:

	kubedebug                          # use ./config.yaml if present
	kubedebug --config ~/kubedebug.yaml
	kubedebug --provider anthropic --input-mode single
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/osagberg/kube-debug-assistant/internal/ai"
	"github.com/osagberg/kube-debug-assistant/internal/config"
	"github.com/osagberg/kube-debug-assistant/internal/history"
	"github.com/osagberg/kube-debug-assistant/internal/kubectl"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	var configPath string
	var provider string
	var model string
	var inputMode string
	var metricsAddr string
	flag.StringVar(&configPath, "config", config.DefaultPath,
		"Path to the YAML configuration file. The default is skipped if it does not exist.")
	flag.StringVar(&provider, "provider", "", "AI provider to use: openai or anthropic (overrides config).")
	flag.StringVar(&model, "model", "", "Model to use (overrides config).")
	flag.StringVar(&inputMode, "input-mode", "", "Input mode: multiline or single (overrides config).")
	flag.StringVar(&metricsAddr, "metrics-bind-address", "",
		"The address the /metrics endpoint binds to, e.g. :8080. Empty disables it.")
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicitConfig = true
		}
	})

	cfg, err := loadConfig(configPath, explicitConfig, provider, model, inputMode)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}

	zapOpts := []zap.Opts{zap.UseFlagOptions(&opts)}
	if cfg.Debug {
		zapOpts = append(zapOpts, zap.Level(zapcore.DebugLevel))
	}
	ctrl.SetLogger(zap.New(zapOpts...))

	if err := run(cfg, metricsAddr); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies flag overrides. The
// default path is optional; an explicit one must exist.
func loadConfig(path string, explicit bool, provider, model, inputMode string) (*config.Config, error) {
	if !explicit {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if provider == "" && model == "" && inputMode == "" {
		return cfg, nil
	}
	if provider != "" {
		cfg.Provider = provider
	}
	if model != "" {
		cfg.Model = model
	}
	if inputMode != "" {
		cfg.InputMode = config.InputMode(inputMode)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config, metricsAddr string) error {
	kopts, err := cfg.KubectlOptions()
	if err != nil {
		return err
	}
	commands := history.NewCommandLog(history.DefaultCapacity)
	executor := history.NewRecordingExecutor(kubectl.NewExecutor(kopts), commands)

	cluster, err := kubectl.ResolveContext(cfg.Kubectl.Kubeconfig, cfg.Kubectl.Context)
	if err != nil {
		setupLog.Info("unable to resolve kubeconfig context, commands use kubectl defaults", "error", err.Error())
	}

	if metricsAddr != "" && metricsAddr != "0" {
		srv := startMetricsServer(metricsAddr)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	out := newRenderer(os.Stdout, isTerminal(os.Stdout))
	pending := startAssistant(func() (assistant, error) {
		return newSession(cfg, executor, out)
	})

	term := newTerminal()
	defer func() { _ = term.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sh := &shell{
		input:    newInputReader(term, cfg.InputMode),
		out:      out,
		pending:  pending,
		commands: commands,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go handleSignals(sigCh, sh, func() {
		cancel()
		_ = term.Close()
		os.Exit(0)
	})

	printBanner(out, cfg, cluster)
	return sh.Run(ctx)
}

// handleSignals cancels the query in flight on every signal. SIGTERM then
// calls terminate; SIGINT at the prompt is handled by liner itself.
func handleSignals(sigs <-chan os.Signal, sh *shell, terminate func()) {
	for sig := range sigs {
		sh.Interrupt()
		if sig == syscall.SIGTERM {
			terminate()
			return
		}
	}
}

func newSession(cfg *config.Config, executor ai.CommandExecutor, out *renderer) (*ai.Session, error) {
	adapter, err := ai.NewAdapter(cfg.AIConfig(), executor)
	if err != nil {
		return nil, err
	}

	name := adapter.Name()
	breaker := ai.NewCircuitBreaker(
		cfg.CircuitBreaker.FailureThreshold,
		cfg.CircuitBreaker.ResetTimeout.Duration,
		ai.WithOnStateChange(func(_, to ai.CircuitState) {
			ai.RecordCircuitState(name, to)
		}),
	)

	opts := []ai.SessionOption{
		ai.WithCircuitBreaker(breaker),
		ai.WithTokenBudget(ai.NewTokenBudget(cfg.SessionTokenBudget)),
		ai.WithEventHandler(out.Event),
	}
	if cfg.MaxIterations > 0 {
		opts = append(opts, ai.WithMaxIterations(cfg.MaxIterations))
	}
	if cfg.RequestsPerSecond > 0 {
		opts = append(opts, ai.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)))
	}

	session := ai.NewSession(adapter, opts...)
	setupLog.Info("AI session ready", "provider", name, "session", session.ID())
	return session, nil
}

func startMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		setupLog.Info("starting metrics server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			setupLog.Error(err, "metrics server failed")
		}
	}()
	return srv
}

func printBanner(out *renderer, cfg *config.Config, cluster kubectl.ClusterContext) {
	fmt.Fprintln(out.out, promptStyle.Render("kubedebug")+dimStyle.Render(" - Kubernetes debugging assistant"))
	out.Notice(fmt.Sprintf("provider %s, %s", cfg.Provider, cluster))
	if cfg.InputMode == config.InputModeMultiline {
		out.Notice("End a query with two empty lines. Commands: exit, reset, history, usage, commands.")
	} else {
		out.Notice("Commands: exit, reset, history, usage, commands.")
	}
}
