package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/jrsteele09/school-portal/apiclient"
	"github.com/jrsteele09/school-portal/internal/config"
	errs "github.com/jrsteele09/school-portal/internal/errors"
	"github.com/spf13/cobra"
)

const Version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hint := errorHint(err); hint != "" {
			fmt.Fprintln(os.Stderr, hint)
		}
		os.Exit(1)
	}
}

// execute runs the CLI with the given arguments and streams.
func execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Recovered from panic: %v\n%s\n", r, debug.Stack())
			returnError = errors.New("panic recovered")
		}
	}()

	c := &cli{stderr: stderr}
	defer c.close()

	root := c.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func errorHint(err error) string {
	var reqErr *apiclient.RequestError
	switch {
	case errs.Is(err, errs.ErrSessionExpired):
		return "Your session has expired. Run `portal login` to sign in again."
	case errs.Is(err, errs.ErrNotAuthenticated):
		return "You are not logged in. Run `portal login` first."
	case errs.Is(err, errs.ErrNetwork):
		return "The portal API could not be reached. Check API_BASE_URL."
	case errs.As(err, &reqErr):
		return fmt.Sprintf("The portal API rejected %s with status %d.", reqErr.Operation, reqErr.StatusCode)
	default:
		return ""
	}
}

// cli carries state shared by all commands of one invocation.
type cli struct {
	stderr       io.Writer
	printMetrics bool

	cfg config.Config
	app *app
}

func (c *cli) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "portal",
		Short:         "School portal staff client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			c.cfg = cfg
			setupLogging(cfg, c.stderr)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if c.printMetrics && c.app != nil {
				return writeMetrics(cmd.ErrOrStderr(), c.app.registry)
			}
			return nil
		},
	}
	cmd.PersistentFlags().BoolVar(&c.printMetrics, "metrics", false, "Print client metrics to stderr after the command")

	cmd.AddCommand(
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.watchCmd(),
		c.projectsCmd(),
		c.achievementsCmd(),
		c.versionCmd(),
	)
	return cmd
}

// App wires the session store and API client on first use.
func (c *cli) App(ctx context.Context) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := newApp(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() {
	if c.app != nil {
		c.app.Close()
	}
}
