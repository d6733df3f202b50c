// Package cli implements the molplace command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/molplace/pkg/buildinfo"
	"github.com/matzehuels/molplace/pkg/cache"
	"github.com/matzehuels/molplace/pkg/pipeline"
	"github.com/matzehuels/molplace/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "molplace"

	envRedisAddr  = "MOLPLACE_REDIS_ADDR"
	envMongoURI   = "MOLPLACE_MONGO_URI"
	envCacheScope = "MOLPLACE_CACHE_SCOPE"
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "molplace",
		Short: "molplace builds starting structures for coarse-grained simulations",
		Long: `molplace places molecules (linear or branched bead chains and rigid proteins)
into a periodic box, inside or on the surface of spheres and slabs, without overlaps.

Compositions are described in TOML or JSON files; results are written as JSON or XYZ.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	var verbose, quiet bool
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")
	root.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log warnings and errors only")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		c.SetLogLevel(logLevel(verbose, quiet))
	}

	root.AddCommand(c.placeCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.topologyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// backendOpts selects where placements are cached and runs are recorded.
type backendOpts struct {
	noCache   bool
	redisAddr string
	scope     string
	mongoURI  string
}

// addBackendFlags registers the cache and store flags on cmd.
func addBackendFlags(cmd *cobra.Command, b *backendOpts) {
	cmd.Flags().BoolVar(&b.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&b.redisAddr, "redis-addr", os.Getenv(envRedisAddr), "cache placements in Redis at this address (env "+envRedisAddr+")")
	cmd.Flags().StringVar(&b.scope, "cache-scope", os.Getenv(envCacheScope), "prefix cache keys with this scope (env "+envCacheScope+")")
	cmd.Flags().StringVar(&b.mongoURI, "mongo-uri", os.Getenv(envMongoURI), "record runs in MongoDB (env "+envMongoURI+")")
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, b backendOpts) (*pipeline.Runner, error) {
	cc, err := c.newCache(ctx, b)
	if err != nil {
		return nil, err
	}
	runs, err := c.newStore(ctx, b.mongoURI)
	if err != nil {
		cc.Close()
		return nil, err
	}
	return pipeline.NewRunner(cc, cache.Scoped(nil, b.scope), runs, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, b backendOpts) (cache.Cache, error) {
	switch {
	case b.noCache:
		return cache.NewNullCache(), nil
	case b.redisAddr != "":
		c.Logger.Debug("using redis cache", "addr", b.redisAddr)
		return cache.NewRedisCache(ctx, cache.RedisConfig{Addr: b.redisAddr})
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

func (c *CLI) newStore(ctx context.Context, mongoURI string) (store.Store, error) {
	if mongoURI != "" {
		c.Logger.Debug("using mongo run store")
		return store.NewMongoStore(ctx, store.MongoConfig{URI: mongoURI})
	}
	dir, err := runsDir()
	if err != nil {
		c.Logger.Warn("run history disabled", "err", err)
		return store.NewMemoryStore(), nil
	}
	return store.NewFileStore(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/molplace/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// runsDir returns the run history directory (~/.config/molplace/runs/).
func runsDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "runs"), nil
	}
	return store.DefaultDir()
}
