// Package cli implements the sheetsync command-line client: local CRUD over
// the sheet database plus the sync control surface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aryklein/sheetsync/internal/config"
	"github.com/aryklein/sheetsync/internal/logging"
	"github.com/aryklein/sheetsync/internal/remote"
	"github.com/aryklein/sheetsync/internal/storage"
	"github.com/aryklein/sheetsync/internal/syncer"
)

// App wires configuration, storage, and the sync engine for the commands.
type App struct {
	cfg    config.AppConfig
	repos  *storage.Repositories
	engine *syncer.Engine
	log    logging.Logger
}

// NewRootCommand builds the sheetsync command tree.
func NewRootCommand() *cobra.Command {
	app := &App{}
	v := config.NewViper()

	root := &cobra.Command{
		Use:           "sheetsync",
		Short:         "Offline-first character sheet client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(cmd, v)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.close()
		},
	}

	root.PersistentFlags().String("config", "", "path to a config file")
	root.PersistentFlags().String("db", "", "path to the local database")
	root.PersistentFlags().String("api-url", "", "base URL of the record API")
	root.PersistentFlags().String("owner", "", "owner id used to scope all operations")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("token", "", "bearer token (overrides the saved one)")

	bindFlag(root, v, "database.path", "db")
	bindFlag(root, v, "api.base_url", "api-url")
	bindFlag(root, v, "owner.id", "owner")
	bindFlag(root, v, "log.level", "log-level")

	root.AddCommand(
		newAddCommand(app),
		newListCommand(app),
		newGetCommand(app),
		newUpdateCommand(app),
		newDeleteCommand(app),
		newSyncCommand(app),
		newStatusCommand(app),
		newWatchCommand(app),
		newLoginCommand(app),
	)

	return root
}

func bindFlag(cmd *cobra.Command, v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func (a *App) init(cmd *cobra.Command, v *viper.Viper) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if err := config.ReadFile(v, cfgPath); err != nil {
		return err
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	zl, err := logging.NewZap(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	a.log = logging.NewZapLogger(zl)

	repos, err := storage.InitDatabase(cmd.Context(), cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize local database: %w", err)
	}
	a.repos = repos

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = a.loadSavedToken()
	}

	client := remote.NewHTTPClient(cfg.APIBaseURL,
		func() string { return a.engine.AuthToken() },
		remote.WithTimeout(cfg.HTTPTimeout))
	a.engine = syncer.New(repos.DB, client, cfg.OwnerID, a.log)
	a.engine.SetOnlineStatus(true)
	a.engine.SetAuthToken(token)

	return nil
}

func (a *App) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	if a.repos != nil {
		_ = a.repos.DB.Close()
	}
}

// tokenPath is where login stores the bearer credential: next to the
// database, readable only by the owner.
func (a *App) tokenPath() string {
	return filepath.Join(filepath.Dir(a.cfg.DatabasePath), ".sheetsync-token")
}

func (a *App) loadSavedToken() string {
	data, err := os.ReadFile(a.tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (a *App) saveToken(token string) error {
	return os.WriteFile(a.tokenPath(), []byte(token+"\n"), 0o600)
}
