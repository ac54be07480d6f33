package cli

import (
	"context"
	"io"
	"os"

	"github.com/aliceout/nodea/internal/client/config"
	"github.com/aliceout/nodea/internal/logging"
	"github.com/spf13/cobra"
)

// AppFactory builds the App once the configuration is known.
type AppFactory func(ctx context.Context, c *config.Config, log logging.Logger, in io.Reader, out, prompt io.Writer) (*App, error)

type Options struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	NewApp AppFactory
}

func (o *Options) defaults() {
	if o.In == nil {
		o.In = os.Stdin
	}
	if o.Out == nil {
		o.Out = os.Stdout
	}
	if o.Err == nil {
		o.Err = os.Stderr
	}
	if o.NewApp == nil {
		o.NewApp = NewApp
	}
}

// runner holds the state shared by the command tree of one invocation.
// The App is created lazily so help and usage never touch the cache.
type runner struct {
	opts Options
	cfg  *config.Config
	log  logging.Logger
	app  *App
}

func (r *runner) appFor(cmd *cobra.Command) (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	app, err := r.opts.NewApp(cmd.Context(), r.cfg, r.log, r.opts.In, r.opts.Out, r.opts.Err)
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

func (r *runner) withApp(fn func(ctx context.Context, a *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := r.appFor(cmd)
		if err != nil {
			return err
		}
		return fn(cmd.Context(), a, args)
	}
}

func (r *runner) close(ctx context.Context) error {
	if r.app == nil {
		return nil
	}
	err := r.app.Close(ctx)
	r.app = nil
	return err
}

func (r *runner) addCommands(root *cobra.Command) {
	root.AddCommand(
		r.registerCommand(),
		r.pingCommand(),
		r.modulesCommand(),
		r.prefsCommand(),
		r.recordsCommand(),
		r.exportCommand(),
		r.importCommand(),
		r.backupCommand(),
	)
}

func newRootCommand(r *runner) *cobra.Command {
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:   "nodea",
		Short: "Nodea encrypted journal client",
		Long: `Nodea keeps journal modules (mood, goals, passage) end-to-end encrypted.

Entries are sealed on this machine with a key derived from your password.
The server stores ciphertext and checks per-entry capabilities, never the
content.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
				return err
			}
			level := cfg.LogLevel
			if verbose {
				level = "debug"
			}
			r.cfg = cfg
			r.log = logging.New(r.opts.Err, "text", level)
			return nil
		},
	}

	defaults := &config.Config{}
	defaults.LoadDefaults()

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a JSON or YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	defaults.BindFlags(root.PersistentFlags())

	r.addCommands(root)
	root.AddCommand(r.shellCommand())

	root.SetIn(r.opts.In)
	root.SetOut(r.opts.Out)
	root.SetErr(r.opts.Err)
	return root
}

// Run executes the nodea command line with args and closes whatever the
// command opened.
func Run(ctx context.Context, args []string, opts Options) error {
	opts.defaults()
	r := &runner{opts: opts}

	root := newRootCommand(r)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)

	if cerr := r.close(ctx); err == nil {
		err = cerr
	}
	return err
}
