// Command omx inspects, creates and repacks OMX matrix files.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"
)

const VERSION = "v0.2.0"

func init() {
	// -v is --verbose.
	cli.VersionFlag = &cli.BoolFlag{
		Name:               "version",
		Usage:              "print the version",
		DisableDefaultText: true,
	}
}

func makeApp(stdin io.Reader, stdout, stderr io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = "omx"
	app.Version = VERSION
	app.Usage = "Inspect and maintain OMX matrix files."
	app.Description = heredoc.Doc(`
		OMX files hold named matrices of one shared shape, plus lookups
		that index their rows and columns. Files are HDF5 on disk.

		Settings come from a YAML file named by --config or $OMX_CONFIG.
		Flags given on the command line take precedence.
	`)
	app.Writer = stdout
	app.ErrWriter = stderr
	app.Reader = stdin
	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Log at debug level",
		},
		&cli.StringFlag{
			Name:      "config",
			Usage:     "Read settings from `FILE`",
			EnvVars:   []string{"OMX_CONFIG"},
			TakesFile: true,
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Backing store: hdf5 or memory",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "color",
			Usage: "Color output: auto, always or never",
		},
	}
	app.Before = setup
	app.ExitErrHandler = exitErrHandler
	app.Commands = []*cli.Command{
		&infoCmdDef,
		&summaryCmdDef,
		&createDemoCmdDef,
		&repackCmdDef,
		&dumpCmdDef,
		&inspectCmdDef,
	}
	return app
}

// Called after a command returns a non-nil error value.
// Prints the error, and its code when it has one, to stderr.
func exitErrHandler(c *cli.Context, err error) {
	if err == nil {
		return
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		fmt.Fprintf(c.App.ErrWriter, "error: %s (%s)\n", err, coded.Code())
		return
	}
	fmt.Fprintf(c.App.ErrWriter, "error: %s\n", err)
}

func main() {
	err := makeApp(os.Stdin, os.Stdout, os.Stderr).Run(os.Args)
	if err != nil {
		os.Exit(1)
	}
}
