package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"splicer/internal/config"
	"splicer/internal/journal"
	"splicer/internal/logging"
	"splicer/internal/services"
	"splicer/internal/stageexec"
	"splicer/internal/workspace"
)

const keyJournal = "scheduler.journal"

type commandContext struct {
	configFlag *string
	dirFlag    *string
	verbose    bool

	configOnce sync.Once
	engine     *config.Engine
	configErr  error
}

func newCommandContext(configFlag, dirFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		dirFlag:    dirFlag,
	}
}

// dir is the workspace directory and the innermost level of the config
// cascade.
func (c *commandContext) dir() (string, error) {
	dir := "."
	if c.dirFlag != nil && strings.TrimSpace(*c.dirFlag) != "" {
		dir = strings.TrimSpace(*c.dirFlag)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}
	return abs, nil
}

func (c *commandContext) ensureConfig() (*config.Engine, error) {
	c.configOnce.Do(func() {
		dir, err := c.dir()
		if err != nil {
			c.configErr = err
			return
		}
		opts := config.Options{Dir: dir}
		if c.configFlag != nil {
			switch path := strings.TrimSpace(*c.configFlag); path {
			case "-":
				opts.DefaultsOnly = true
			default:
				opts.Override = path
			}
		}
		engine, err := config.Load(opts)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		c.engine = engine
	})
	return c.engine, c.configErr
}

// logger builds the command logger from the logging directives. --verbose
// forces debug output.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	engine, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	level := engine.String(config.KeyLogLevel)
	if c.verbose {
		level = "debug"
	}
	opts := logging.Options{
		Level:  level,
		Format: engine.String(config.KeyLogFormat),
		Writer: cmd.ErrOrStderr(),
	}
	if file := engine.String(config.KeyLogFile); file != "" {
		opts.Writer = nil
		opts.OutputPaths = []string{"stderr", file}
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "logging", "init", "", err)
	}
	return logger, nil
}

// session is one journaled run of a workspace command. It holds the
// workspace lock until finish.
type session struct {
	ctx     context.Context
	command string
	runID   string
	engine  *config.Engine
	logger  *slog.Logger
	ws      workspace.Workspace
	lock    *workspace.Lock
	journal *journal.Journal
}

func (c *commandContext) startSession(cmd *cobra.Command, name string) (*session, error) {
	engine, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return nil, err
	}
	dir, err := c.dir()
	if err != nil {
		return nil, err
	}
	ws := workspace.New(dir, engine.RawFormat())
	lock, err := ws.Acquire()
	if err != nil {
		if errors.Is(err, workspace.ErrLocked) {
			return nil, services.Wrap(services.ErrValidation, name, "lock", "another splicer command is using "+dir, err)
		}
		return nil, err
	}

	runID := uuid.NewString()
	ctx := services.WithRunID(cmd.Context(), runID)
	s := &session{
		ctx:     ctx,
		command: name,
		runID:   runID,
		engine:  engine,
		logger:  logger,
		ws:      ws,
		lock:    lock,
	}
	if engine.Bool(keyJournal, "") {
		s.openJournal(dir)
	}
	logger.InfoContext(ctx, "run started",
		logging.String("command", name),
		logging.String("dir", dir),
		logging.String("config", strings.Join(engine.Sources(), ", ")),
	)
	return s, nil
}

// openJournal records the run. A journal that cannot be opened is logged and
// the run proceeds without one.
func (s *session) openJournal(dir string) {
	j, err := journal.Open(s.ctx, s.ws.JournalPath())
	if err != nil {
		s.logger.WarnContext(s.ctx, "run journal unavailable", logging.Error(err))
		return
	}
	if err := j.BeginRun(s.ctx, journal.Run{ID: s.runID, Command: s.command, Dir: dir}); err != nil {
		s.logger.WarnContext(s.ctx, "run journal unavailable", logging.Error(err))
		_ = j.Close()
		return
	}
	s.journal = j
}

// recorder returns the journal as a stage recorder, or nil without one.
func (s *session) recorder() stageexec.Recorder {
	if s.journal == nil {
		return nil
	}
	return s.journal
}

// finish closes the run, releases the workspace, and returns runErr.
func (s *session) finish(runErr error) error {
	if runErr != nil {
		s.logger.ErrorContext(s.ctx, "run failed",
			logging.String("command", s.command),
			logging.String("error_category", services.Category(runErr)),
			logging.Error(runErr),
		)
	} else {
		s.logger.InfoContext(s.ctx, "run finished", logging.String("command", s.command))
	}
	if s.journal != nil {
		// the outcome is recorded even when the command context was cancelled
		ctx := context.WithoutCancel(s.ctx)
		if err := s.journal.FinishRun(ctx, s.runID, runErr); err != nil {
			s.logger.WarnContext(ctx, "journal update failed", logging.Error(err))
		}
		_ = s.journal.Close()
	}
	if err := s.lock.Release(); err != nil {
		s.logger.WarnContext(s.ctx, "workspace unlock failed", logging.Error(err))
	}
	return runErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func addVerboseFlag(cmd *cobra.Command, ctx *commandContext) {
	cmd.Flags().BoolVarP(&ctx.verbose, "verbose", "v", false, "Enable debug logging")
}
