package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/ChristosG/finsmart-client/app"
	"github.com/ChristosG/finsmart-client/internal/config"
	"github.com/ChristosG/finsmart-client/internal/logging"
	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
)

const usage = `usage: newsdash <command> [flags]

commands:
  login            -user NAME -password PW
  signup           -user NAME -email EMAIL -password PW
  logout           [-all]
  whoami
  sources
  scrape           -url URL [-name NAME] [-max N]
  refresh-source   -id ID [-max N]
  delete-source    -id ID
  articles         [-source ID] [-page N] [-limit N]
  article          -id ID [-summary] [-analysis] [-audio FILE]
  delete-articles  ID [ID...]
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(out, usage)
		return nil
	}

	cfg := config.New()
	logging.Setup(cfg.GetLogLevel(), cfg.GetEnv())

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	// Validation errors are not fatal here: commands that need a session
	// report it themselves.
	if err := <-a.Start(ctx); err != nil {
		log.Debug().Err(err).Msg("Stored session could not be validated")
	}

	fs := flag.NewFlagSet(args[0], flag.ContinueOnError)
	fs.SetOutput(out)
	return cmd(ctx, &env{app: a, out: out, cfg: cfg}, fs, args[1:])
}

type env struct {
	app *app.App
	out io.Writer
	cfg config.Config
}

func (e *env) printf(format string, a ...any) {
	fmt.Fprintf(e.out, format, a...)
}

func (e *env) banner() {
	fmt.Fprintln(e.out, figure.NewFigure(e.cfg.GetAppName(), "cybermedium", true).String())
}
