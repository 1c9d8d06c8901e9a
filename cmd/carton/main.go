// Package main implements the carton command line tool: resolve a
// workspace against a package index, inspect the resulting graph, and
// verify that the checked-in lock is still exact.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	carton "github.com/cartonpkg/go-carton"
	"github.com/cartonpkg/go-carton/index"
	"github.com/cartonpkg/go-carton/lockfile"
	"github.com/cartonpkg/go-carton/manifest"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli holds the flag state shared by every subcommand.
type cli struct {
	dir       string
	indexURL  string
	indexDir  string
	offline   bool
	dev       bool
	verbose   bool
	features  []string
	noDefault bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "carton",
		Short:         "Resolve and inspect carton package dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.dir, "dir", "C", ".", "workspace directory containing "+manifest.Filename)
	flags.StringVar(&c.indexURL, "index", "", "base URL of a sparse HTTP package index")
	flags.StringVar(&c.indexDir, "index-dir", "", "path to a local package index")
	flags.BoolVar(&c.offline, "offline", false, "resolve from cached index entries only")
	flags.BoolVar(&c.dev, "dev", false, "include workspace members' dev dependencies")
	flags.StringSliceVar(&c.features, "features", nil, "extra features to activate on workspace members")
	flags.BoolVar(&c.noDefault, "no-default-features", false, "do not activate members' default features")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "log resolution progress to stderr")

	root.AddCommand(c.newResolveCmd())
	root.AddCommand(c.newTreeCmd())
	root.AddCommand(c.newVerifyCmd())
	return root
}

func (c *cli) newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the workspace and update " + lockfile.Filename,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.resolve(cmd.Context())
			if err != nil {
				return err
			}
			if err := res.Lock.WriteFile(c.lockPath()); err != nil {
				return err
			}
			if res.Diff.IsEmpty() {
				fmt.Fprintln(cmd.OutOrStdout(), "lockfile up to date")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Diff)
			return nil
		},
	}
}

func (c *cli) newTreeCmd() *cobra.Command {
	var dot bool
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the resolved dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.resolve(cmd.Context())
			if err != nil {
				return err
			}
			if dot {
				fmt.Fprint(cmd.OutOrStdout(), res.Graph.ToDOT())
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Graph.ToTree())
			return nil
		},
	}
	cmd.Flags().BoolVar(&dot, "dot", false, "emit Graphviz DOT instead of a tree")
	return cmd
}

func (c *cli) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Fail if resolving would change " + lockfile.Filename,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := c.resolve(cmd.Context(), carton.WithFrozen())
			var mismatch *lockfile.MismatchError
			if errors.As(err, &mismatch) {
				return fmt.Errorf("%s is out of date:%s", lockfile.Filename, mismatch.Diff)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "lockfile verified")
			return nil
		},
	}
}

// resolve loads the workspace and previous lock, builds the index from the
// flags, and runs a full resolution.
func (c *cli) resolve(ctx context.Context, extra ...carton.Option) (*carton.Resolution, error) {
	ws, err := manifest.LoadWorkspace(c.dir)
	if err != nil {
		return nil, err
	}

	idx, err := c.index()
	if err != nil {
		return nil, err
	}

	prev, err := lockfile.ReadFile(c.lockPath())
	if err != nil {
		return nil, err
	}

	opts := []carton.Option{}
	if prev != nil {
		opts = append(opts, carton.WithLockfile(prev))
	}
	if c.offline {
		opts = append(opts, carton.WithOffline())
	}
	if c.dev {
		opts = append(opts, carton.WithDevDeps())
	}
	if len(c.features) > 0 {
		opts = append(opts, carton.WithFeatures(c.features...))
	}
	if c.noDefault {
		opts = append(opts, carton.WithoutDefaultFeatures())
	}
	if c.verbose {
		opts = append(opts, carton.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))))
	}
	opts = append(opts, extra...)

	return carton.Resolve(ctx, ws, idx, opts...)
}

func (c *cli) index() (index.Index, error) {
	switch {
	case c.indexURL != "" && c.indexDir != "":
		return nil, errors.New("--index and --index-dir are mutually exclusive")
	case c.indexDir != "":
		return index.NewLocal(c.indexDir)
	case c.indexURL != "":
		return index.NewClient(c.indexURL), nil
	default:
		return nil, errors.New("an index is required: pass --index or --index-dir")
	}
}

func (c *cli) lockPath() string {
	return filepath.Join(c.dir, lockfile.Filename)
}
