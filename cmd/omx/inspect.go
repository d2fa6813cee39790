package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/robert-malhotra/go-omx/hdf5"
)

var inspectCmdDef = cli.Command{
	Name:      "inspect",
	Usage:     "Walk the raw HDF5 objects of a file",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "attrs",
			Usage: "Also print attribute values",
		},
	},
	Action: cmdInspect,
}

func cmdInspect(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	f, err := hdf5.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	w := c.App.Writer
	fmt.Fprintf(w, "%s: superblock version %d\n", path, f.Version())
	if err := hdf5.Walk(f.Root(), inspectObject(w)); err != nil {
		return err
	}
	if !c.Bool("attrs") {
		return nil
	}
	fmt.Fprintln(w)
	return f.WalkAttrs(func(info hdf5.AttrInfo) error {
		if info.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", info.Path, info.Err)
			return nil
		}
		fmt.Fprintf(w, "%s = %v\n", info.Path, info.Value)
		return nil
	})
}

func depth(p string) string {
	if p == "/" {
		return ""
	}
	return strings.Repeat("  ", strings.Count(p, "/"))
}

func inspectObject(w io.Writer) hdf5.WalkFunc {
	fmtGroup := color.New(color.Bold)
	fmtWarning := color.New(color.FgHiRed)
	return func(p string, obj any, err error) error {
		indent := depth(p)
		if err != nil {
			fmtWarning.Fprintf(w, "%s%s: %v\n", indent, p, err)
			return nil
		}
		switch o := obj.(type) {
		case *hdf5.Group:
			fmtGroup.Fprintf(w, "%sgroup %s", indent, p)
			fmt.Fprintf(w, " attrs=%v\n", o.Attrs())
		case *hdf5.Dataset:
			typ := "unknown"
			if t, err := o.ElementType(); err == nil {
				typ = t.String()
			}
			fmt.Fprintf(w, "%sdataset %s %s %v", indent, p, typ, o.Shape())
			if filters := o.Filters(); len(filters) > 0 {
				fmt.Fprintf(w, " filters=%v", filters)
			}
			fmt.Fprintf(w, " attrs=%v\n", o.Attrs())
		case hdf5.Link:
			fmt.Fprintf(w, "%s%s link %s -> %s\n", indent, o.Kind, p, o.Target)
		default:
			fmt.Fprintf(w, "%sobject %s\n", indent, p)
		}
		return nil
	}
}
