package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danhigham/quickchat/internal/api"
	"github.com/danhigham/quickchat/internal/chatsync"
	"github.com/danhigham/quickchat/internal/config"
	"github.com/danhigham/quickchat/internal/credential"
	"github.com/danhigham/quickchat/internal/domain"
	"github.com/danhigham/quickchat/internal/realtime"
	"github.com/danhigham/quickchat/internal/session"
	"github.com/danhigham/quickchat/internal/state"
	"github.com/danhigham/quickchat/internal/ui"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "quickchat",
	Short:         "Terminal client for QuickChat",
	Long:          "Chat with QuickChat users from the terminal. Run without a subcommand to start the interactive client.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default "+filepath.Join(config.Dir(), "config.yaml")+")")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", api.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

// env holds the components every command shares.
type env struct {
	cfg    *config.Config
	dir    string
	logger *zap.Logger
	mgr    *session.Manager
}

func setup() (*env, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(config.Dir(), "config.yaml")
	}
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load config from %s", path)
	}

	dir := config.Dir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create config dir")
	}

	// Logging goes to a file so it never corrupts the terminal UI.
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log_level")
	}
	logPath := filepath.Join(dir, "quickchat.log")
	logCfg := zap.NewDevelopmentConfig()
	logCfg.Level = level
	logCfg.OutputPaths = []string{logPath}
	logCfg.ErrorOutputPaths = []string{logPath}
	logger, err := logCfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "create logger")
	}

	base := api.New(cfg.Server.BaseURL, api.WithTimeout(cfg.Timeouts.Request))
	creds := credential.NewFile(filepath.Join(dir, "credential.json"))

	return &env{
		cfg:    cfg,
		dir:    dir,
		logger: logger,
		mgr:    session.New(base, creds, logger.Named("session")),
	}, nil
}

func (e *env) channel() *realtime.Channel {
	return realtime.New(realtime.Config{
		URL:            e.cfg.Server.SocketURL,
		ConnectTimeout: e.cfg.Timeouts.Connect,
		BaseDelay:      e.cfg.Reconnect.BaseDelay,
		MaxDelay:       e.cfg.Reconnect.MaxDelay,
		MaxAttempts:    e.cfg.Reconnect.MaxAttempts,
	}, e.logger.Named("realtime"))
}

// restore signs in from the stored credential and fails if there is none.
func (e *env) restore(ctx context.Context) error {
	if err := e.mgr.Restore(ctx); err != nil {
		return err
	}
	if e.mgr.Session().Status != domain.StatusAuthenticated {
		return errNotLoggedIn
	}
	return nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.logger.Sync()

	app, coord := prepareTUI(ctx, e)
	defer coord.Shutdown()

	e.logger.Info("Starting quickchat", zap.String("server", e.cfg.Server.BaseURL))
	return app.Run()
}

// prepareTUI wires the interactive client and restores the stored session
// before returning, so the first frame already shows the right screen.
func prepareTUI(ctx context.Context, e *env) (*ui.App, *chatsync.Coordinator) {
	store := state.New(e.logger.Named("state"))
	coord := chatsync.New(e.mgr, e.channel(), store, e.cfg.Timeouts.Request, e.logger.Named("sync"))

	app := ui.NewApp(ctx, e.mgr, coord, e.cfg.Timeouts.Request, e.logger.Named("ui"))
	store.SetOnChange(app.DrawFunc())
	coord.OnError(app.ReportError)
	e.mgr.Subscribe(coord)
	e.mgr.Subscribe(app)

	if err := e.mgr.Restore(ctx); err != nil {
		e.logger.Info("Session not restored", zap.Error(err))
	}
	return app, coord
}
