package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// execIface is the part of App the shell drives directly. Everything else
// goes through dispatch.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF, "exit" or "quit".
//
// The prompt shows the current status (from statusFn). "login", "logout"
// and "help" are handled here; any other line is split into arguments and
// handed to dispatch, which runs it as a nodea subcommand within the same
// session. Errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, dispatch func(ctx context.Context, args []string) error, statusFn func() string, reader *bufio.Reader, w io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(w, "nodea%s> ", statusFn())

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			fmt.Fprintln(w)
			return
		}

		args, perr := splitArgs(line)
		if perr != nil {
			printError(w, perr)
			continue
		}
		if len(args) == 0 {
			continue
		}

		var cmdErr error
		switch args[0] {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(w, "Available commands: modules, records (r), export, import, backup, ping, logout, exit")
			} else {
				fmt.Fprintln(w, "Available commands: register, login, ping, exit (other commands log in first)")
			}
			fmt.Fprintln(w, "Add --help to any command for details.")
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "exit", "quit":
			fmt.Fprintln(w, "Bye!")
			return
		default:
			cmdErr = dispatch(ctx, args)
		}
		if cmdErr != nil {
			printError(w, cmdErr)
		}
	}
}

// splitArgs splits a shell line on blanks, honoring single and double
// quotes so JSON payloads can be typed inline.
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, c := range line {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else {
				cur.WriteRune(c)
			}
		case c == '\'' || c == '"':
			quote = c
			inArg = true
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(c)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

func printError(w io.Writer, err error) {
	fmt.Fprintln(w, color.RedString("error:"), err)
}

func (a *App) status() string {
	if a.session == nil {
		return ""
	}
	return fmt.Sprintf(" (%s)", a.session.Username)
}

func (r *runner) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run commands interactively within one session",
		Long: `Starts an interactive prompt. You log in once and the key stays in
memory until "logout" or "exit".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := r.appFor(cmd)
			if err != nil {
				return err
			}

			a.printf("Welcome to Nodea (type 'help' for commands)\n")
			if err := a.Login(cmd.Context()); err != nil {
				printError(a.out, err)
			}

			dispatch := func(ctx context.Context, args []string) error {
				sub := &cobra.Command{Use: "nodea", SilenceUsage: true, SilenceErrors: true}
				r.addCommands(sub)
				sub.SetIn(r.opts.In)
				sub.SetOut(r.opts.Out)
				sub.SetErr(r.opts.Err)
				sub.SetArgs(args)
				return sub.ExecuteContext(ctx)
			}
			runREPL(cmd.Context(), a, dispatch, a.status, a.reader, a.out)
			return nil
		},
	}
}
