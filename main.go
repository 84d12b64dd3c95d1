package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/term"

	"parley/internal/avatar"
	"parley/internal/backend"
	"parley/internal/botgate"
	"parley/internal/bridge"
	"parley/internal/config"
	"parley/internal/localstore"
	"parley/internal/session"
	"parley/internal/snowflake"
	"parley/internal/ui"
)

// setupLogger writes to app.log only, stdout belongs to the terminal UI.
func setupLogger(dataDir string, level string) (*zap.SugaredLogger, error) {
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{filepath.Join(dataDir, "app.log")}
	cfg.Level = parsed
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.Sugar(), nil
}

func dataDir(cfg config.ConfigFile) (string, error) {
	if cfg.DataDir != "" {
		return cfg.DataDir, os.MkdirAll(cfg.DataDir, 0o700)
	}

	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "parley")
	return dir, os.MkdirAll(dir, 0o700)
}

// setupBackend picks the storage and realtime transport the config asks
// for: sqlite with an in-process bus when self-contained, otherwise mysql
// with redis or a websocket gateway for the event stream.
func setupBackend(cfg config.ConfigFile, dir string, sugar *zap.SugaredLogger) (backend.Service, backend.Realtime, error) {
	if cfg.SelfContained {
		bus := backend.NewLocalBus(sugar)
		store, err := backend.OpenSQLite(filepath.Join(dir, "parley.db"), bus, sugar)
		if err != nil {
			return nil, nil, err
		}
		return store, bus, nil
	}

	var rt backend.Realtime
	var err error
	if cfg.GatewayURL != "" {
		rt, err = backend.DialGateway(cfg.GatewayURL, sugar)
	} else {
		rt, err = backend.DialRedis(cfg.RedisAddress, sugar)
	}
	if err != nil {
		return nil, nil, err
	}

	store, err := backend.OpenMySQL(cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase, rt, sugar)
	if err != nil {
		return nil, nil, err
	}
	return store, rt, nil
}

func setupAvatars(cfg config.ConfigFile, dir string) (avatar.Store, error) {
	if cfg.MinioEndpoint != "" {
		return avatar.NewMinioStore(context.Background(), cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return avatar.NewDirStore(filepath.Join(dir, "avatars"))
}

func run() error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("parley needs an interactive terminal")
	}

	cfg, err := config.Load("config.json")
	if err != nil {
		return err
	}

	dir, err := dataDir(cfg)
	if err != nil {
		return err
	}

	sugar, err := setupLogger(dir, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer sugar.Sync()

	store, err := localstore.Open(dir)
	if err != nil {
		return err
	}

	gen, err := snowflake.NewGenerator(store.WorkerID())
	if err != nil {
		return err
	}

	svc, rt, err := setupBackend(cfg, dir, sugar)
	if err != nil {
		return err
	}
	defer svc.Close()

	avatars, err := setupAvatars(cfg, dir)
	if err != nil {
		return err
	}

	br := bridge.New(rt, sugar)

	sess := session.New(svc, br, store, avatars, gen, sugar)
	err = sess.Bootstrap(context.Background())
	if err != nil && !errors.Is(err, localstore.ErrNoIdentity) {
		return err
	}

	var bot <-chan botgate.Response
	if cfg.BotGateAddress != "" {
		gate := botgate.New(cfg.BotGateAddress, sugar)
		go func() {
			err := gate.Start()
			if err != nil {
				sugar.Errorf("Bot gate stopped: %v", err)
			}
		}()
		defer gate.Close()
		bot = gate.Responses()
	}

	program := tea.NewProgram(ui.New(sess, br, bot, sugar), tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
