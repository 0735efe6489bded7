package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/emailscope/pkg/config"
	"github.com/Sriram-PR/emailscope/pkg/events"
	"github.com/Sriram-PR/emailscope/pkg/orchestrate"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
	"github.com/Sriram-PR/emailscope/pkg/storage"
)

// setupLogger creates a configured logrus.Logger writing to out
func setupLogger(logLevelStr string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", logLevelStr, err)
	} else {
		log.SetLevel(level)
		log.Debugf("Setting log level to: %s", level.String())
	}
	return log
}

// loadConfig returns the defaults overlaid with the YAML file at path.
// An empty path yields the defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	cfg := config.Default()
	if path == "" {
		return &cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// addCrawlFlags registers the flags that override crawl and verification settings
func addCrawlFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-pages", 0, "Maximum pages crawled per domain")
	cmd.Flags().Int("max-depth", 0, "Maximum link depth from the home page")
	cmd.Flags().Bool("bypass-robots", false, "Ignore robots.txt")
	cmd.Flags().Bool("mock-dns", false, "Skip MX lookups and assume every domain has mail servers")
	cmd.Flags().String("nameserver", "", "DNS server for MX lookups (host:port)")
	cmd.Flags().Int("workers", 0, "Concurrent verification tasks per domain")
	cmd.Flags().Int("parallel", 0, "Domains processed in parallel")
	cmd.Flags().String("state-dir", "", "Directory of the result store (enables persistence)")
}

// applyCrawlFlags copies explicitly set flags over cfg
func applyCrawlFlags(cmd *cobra.Command, cfg *config.AppConfig) {
	flags := cmd.Flags()
	if flags.Changed("max-pages") {
		cfg.Crawl.MaxPages, _ = flags.GetInt("max-pages")
	}
	if flags.Changed("max-depth") {
		cfg.Crawl.MaxDepth, _ = flags.GetInt("max-depth")
	}
	if flags.Changed("bypass-robots") {
		cfg.Crawl.BypassExclusion, _ = flags.GetBool("bypass-robots")
	}
	if flags.Changed("mock-dns") {
		cfg.Verification.MockDNS, _ = flags.GetBool("mock-dns")
	}
	if flags.Changed("nameserver") {
		cfg.Verification.Nameserver, _ = flags.GetString("nameserver")
	}
	if flags.Changed("workers") {
		cfg.MaxWorkers, _ = flags.GetInt("workers")
	}
	if flags.Changed("parallel") {
		cfg.MaxParallelDomains, _ = flags.GetInt("parallel")
	}
	if flags.Changed("state-dir") {
		cfg.StateDir, _ = flags.GetString("state-dir")
	}
}

// prepare builds the logger and the validated config of a command
func prepare(cmd *cobra.Command, logOut io.Writer) (*logrus.Logger, *config.AppConfig, error) {
	configPath, _ := cmd.Flags().GetString("config")
	logLevel, _ := cmd.Flags().GetString("loglevel")
	log := setupLogger(logLevel, logOut)

	if configPath != "" {
		log.Infof("Loading configuration from %s", configPath)
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cmd.Flags().Lookup("max-pages") != nil {
		applyCrawlFlags(cmd, cfg)
	}

	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		log.Warn(w)
	}
	logAppConfig(cfg, log)
	return log, cfg, nil
}

// logAppConfig logs the effective configuration
func logAppConfig(cfg *config.AppConfig, log *logrus.Logger) {
	log.Debugf("Crawl Config: MaxPages:%d, MaxDepth:%d, Pacing:%v, RequestDelay:%v, Timeout:%v, BypassRobots:%t",
		cfg.Crawl.MaxPages, cfg.Crawl.MaxDepth, cfg.Crawl.PacingInterval, cfg.Crawl.RequestDelay,
		cfg.Crawl.Timeout, cfg.Crawl.BypassExclusion)
	log.Debugf("Verification Config: Timeout:%v, MockDNS:%t, Nameserver:'%s'",
		cfg.Verification.Timeout, cfg.Verification.MockDNS, cfg.Verification.Nameserver)
	log.Debugf("Limits: Workers:%d, ParallelDomains:%d, PerHost:%d, PerPageEmails:%d, TotalEmails:%d",
		cfg.MaxWorkers, cfg.MaxParallelDomains, cfg.MaxRequestsPerHost, cfg.MaxEmailsPerPage, cfg.MaxTotalEmails)
	log.Debugf("Outputs: StateDir:'%s', OutputDir:'%s', Kafka:%v, Redis:'%s'",
		cfg.StateDir, cfg.OutputDir, cfg.Kafka.Brokers, cfg.Redis.Addr)
}

// app holds the components shared by the discovery commands
type app struct {
	cfg       *config.AppConfig
	log       *logrus.Logger
	pipeline  *pipeline.Pipeline
	store     *storage.BadgerStore
	publisher *events.KafkaPublisher
	status    *events.RedisStatusSink
}

// newApp wires the pipeline and the sinks enabled in cfg
func newApp(cfg *config.AppConfig, log *logrus.Logger) (*app, error) {
	tables, err := config.LoadTables(cfg.TablesFile)
	if err != nil {
		return nil, fmt.Errorf("loading tables: %w", err)
	}
	p, err := pipeline.New(*cfg, tables, log.WithField("component", "pipeline"), nil)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, pipeline: p}

	if cfg.PersistenceEnabled() {
		store, err := storage.NewBadgerStore(cfg.StateDir, log.WithField("component", "store"))
		if err != nil {
			return nil, err
		}
		a.store = store
	}
	if len(cfg.Kafka.Brokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.Kafka, log.WithField("component", "kafka"))
		log.Infof("Publishing results to Kafka topic '%s'", cfg.Kafka.Topic)
	}
	if cfg.Redis.Addr != "" {
		a.status = events.NewRedisStatusSink(cfg.Redis, log.WithField("component", "redis"))
		log.Infof("Writing job status to Redis at %s", cfg.Redis.Addr)
	}
	return a, nil
}

// sinks returns the orchestrator sinks for the enabled components.
// Nil components are left as nil interfaces.
func (a *app) sinks() orchestrate.Sinks {
	var s orchestrate.Sinks
	if a.store != nil {
		s.Store = a.store
	}
	if a.publisher != nil {
		s.Publisher = a.publisher
	}
	if a.publisher != nil || a.status != nil {
		s.Observers = func(sessionID, domain string) []pipeline.Observer {
			var obs []pipeline.Observer
			if a.publisher != nil {
				obs = append(obs, a.publisher)
			}
			if a.status != nil {
				obs = append(obs, a.status.Tracker(sessionID, domain))
			}
			return obs
		}
	}
	return s
}

func (a *app) orchestrator() *orchestrate.Orchestrator {
	return orchestrate.NewOrchestrator(a.pipeline, a.cfg.MaxParallelDomains, a.sinks(), a.log.WithField("component", "orchestrate"))
}

// Close releases the sinks; errors are logged
func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Errorf("Error closing Kafka writer: %v", err)
		}
	}
	if a.status != nil {
		if err := a.status.Close(); err != nil {
			a.log.Errorf("Error closing Redis client: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Errorf("Error closing result store: %v", err)
		}
	}
}

// interruptHandler turns the first signal into a stop request and the
// second into context cancellation
type interruptHandler struct {
	sigChan     chan os.Signal
	done        chan struct{}
	closeOnce   sync.Once
	interrupted atomic.Bool
}

func handleInterrupts(stop *pipeline.StopToken, cancel context.CancelFunc, log *logrus.Logger) *interruptHandler {
	h := &interruptHandler{
		sigChan: make(chan os.Signal, 2),
		done:    make(chan struct{}),
	}
	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM)
	go h.loop(stop, cancel, log)
	return h
}

func (h *interruptHandler) loop(stop *pipeline.StopToken, cancel context.CancelFunc, log *logrus.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("PANIC in signal handler: %v", r)
		}
	}()

	select {
	case sig := <-h.sigChan:
		h.interrupted.Store(true)
		log.Warnf("Received signal: %v. Finishing in-flight work (send again to abort)...", sig)
		stop.Stop()
	case <-h.done:
		return
	}

	select {
	case sig := <-h.sigChan:
		log.Warnf("Received second signal: %v. Aborting.", sig)
		cancel()
	case <-h.done:
	}
}

// Interrupted reports whether a signal was received
func (h *interruptHandler) Interrupted() bool {
	return h.interrupted.Load()
}

// Release stops signal delivery and ends the handler goroutine
func (h *interruptHandler) Release() {
	h.closeOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done)
	})
}
