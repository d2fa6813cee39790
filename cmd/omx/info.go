package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/robert-malhotra/go-omx/omx"
)

var infoCmdDef = cli.Command{
	Name:      "info",
	Usage:     "Print the shape, version and entry counts of a file",
	ArgsUsage: "FILE",
	Action:    cmdInfo,
}

var summaryCmdDef = cli.Command{
	Name:      "summary",
	Usage:     "List the matrices and lookups of a file",
	ArgsUsage: "FILE",
	Action:    cmdSummary,
}

func oneArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("%s takes exactly one FILE argument", c.Command.Name)
	}
	return c.Args().First(), nil
}

// readSummary opens path read-only just long enough to summarize it.
func readSummary(c *cli.Context, path string) (s omx.Summary, err error) {
	f := omx.New(path, getEnv(c).options()...)
	if err := f.OpenReadOnly(); err != nil {
		return s, err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return f.Summary()
}

func cmdInfo(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	s, err := readSummary(c, path)
	if err != nil {
		return err
	}
	w := c.App.Writer
	fmt.Fprintf(w, "file:     %s\n", s.Path)
	fmt.Fprintf(w, "version:  %s\n", s.Version)
	fmt.Fprintf(w, "shape:    %d x %d\n", s.Shape[0], s.Shape[1])
	fmt.Fprintf(w, "matrices: %d\n", len(s.Matrices))
	fmt.Fprintf(w, "lookups:  %d\n", len(s.Lookups))
	if title, ok := s.Attributes[omx.TitleKey]; ok {
		fmt.Fprintf(w, "title:    %v\n", title)
	}
	return nil
}

func cmdSummary(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	s, err := readSummary(c, path)
	if err != nil {
		return err
	}
	fmtBold := color.New(color.Bold)
	fmtName := color.New(color.FgCyan)

	w := c.App.Writer
	fmtBold.Fprintf(w, "%s", s.Path)
	fmt.Fprintf(w, " (OMX %s, %d x %d)\n", s.Version, s.Shape[0], s.Shape[1])
	for _, section := range []struct {
		title   string
		entries []omx.Entry
	}{
		{"Matrices", s.Matrices},
		{"Lookups", s.Lookups},
	} {
		fmtBold.Fprintf(w, "\n%s:\n", section.title)
		if len(section.entries) == 0 {
			fmt.Fprintf(w, "  (none)\n")
			continue
		}
		for _, e := range section.entries {
			fmtName.Fprintf(w, "  %-16s", e.Name)
			fmt.Fprintf(w, " %-8s %-10s", e.Kind, shapeString(e.Shape))
			if e.Missing != nil {
				fmt.Fprintf(w, " NA=%v", e.Missing)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return strings.Join(parts, "x")
}
