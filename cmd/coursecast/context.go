package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"coursecast/internal/capability"
	"coursecast/internal/catalog"
	"coursecast/internal/command"
	"coursecast/internal/config"
	"coursecast/internal/database"
	"coursecast/internal/logging"
	"coursecast/internal/pipeline"
	"coursecast/internal/queue"
)

type commandContext struct {
	configFlag *string

	configOnce  sync.Once
	config      *config.Config
	configPath  string
	configFound bool
	configErr   error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, found, err := config.Load(path)
		c.configPath = resolved
		c.configFound = found
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// session bundles the stores and services a command works with. Commands open
// one per invocation and close it before returning.
type session struct {
	cfg          *config.Config
	db           *database.DB
	logger       *slog.Logger
	assets       *catalog.Store
	jobs         *queue.Store
	runner       command.Runner
	probe        *capability.Probe
	dispatcher   *pipeline.Dispatcher
	orchestrator *pipeline.Orchestrator
}

// openSession opens the database and builds the pipeline services. Logs go to
// the log file; echoLogs also writes them to stdout.
func (c *commandContext) openSession(echoLogs bool) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg, echoLogs)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		logger.Error("open database", logging.Error(err))
		return nil, fmt.Errorf("open database: %w", err)
	}

	assets := catalog.NewStore(db)
	jobs := queue.NewStore(db)
	runner := command.NewRunner(cfg)
	dispatcher := pipeline.NewDispatcher(assets, jobs, logger)
	return &session{
		cfg:          cfg,
		db:           db,
		logger:       logger,
		assets:       assets,
		jobs:         jobs,
		runner:       runner,
		probe:        capability.NewProbe(cfg, capability.NewStoreCache(db), runner, logger),
		dispatcher:   dispatcher,
		orchestrator: pipeline.NewOrchestrator(assets, dispatcher, logger),
	}, nil
}

func (s *session) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (c *commandContext) withSession(fn func(*session) error) error {
	sess, err := c.openSession(false)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
