package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/urfave/cli/v2"

	"github.com/robert-malhotra/go-omx/omx"
)

var createDemoCmdDef = cli.Command{
	Name:      "create-demo",
	Usage:     "Write a small example file",
	ArgsUsage: "FILE",
	Description: heredoc.Doc(`
		Writes a new file, replacing any existing one, holding:

		  time   float64 matrix, row + column, missing value -1
		  dist   int32 matrix, |row - column|
		  zones  int32 lookup numbering the rows from 100
	`),
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "shape",
			Usage: "Matrix shape as `ROWS,COLS`",
			Value: "5,5",
		},
		&cli.StringFlag{
			Name:  "title",
			Usage: "Root title attribute",
			Value: "omx demo",
		},
	},
	Action: cmdCreateDemo,
}

func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("shape %q is not ROWS,COLS", s)
	}
	shape := make([]int, 2)
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("shape %q is not two positive integers", s)
		}
		shape[i] = n
	}
	return shape, nil
}

func cmdCreateDemo(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	shape, err := parseShape(c.String("shape"))
	if err != nil {
		return err
	}
	e := getEnv(c)

	f := omx.New(path, e.options()...)
	if err := f.OpenNew(shape); err != nil {
		return err
	}
	if err := fillDemo(f, shape[0], shape[1], c.String("title")); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	e.logger.Info("wrote demo file", "path", path, "shape", shape)
	return nil
}

func fillDemo(f *omx.File, rows, cols int, title string) error {
	timeRows := make([][]float64, rows)
	distRows := make([][]int32, rows)
	for i := range rows {
		timeRows[i] = make([]float64, cols)
		distRows[i] = make([]int32, cols)
		for j := range cols {
			timeRows[i][j] = float64(i + j)
			distRows[i][j] = int32(max(i-j, j-i))
		}
	}
	na := -1.0
	tm, err := omx.NewMatrix("time", timeRows, &na)
	if err != nil {
		return err
	}
	if err := tm.SetAttribute("units", "minutes"); err != nil {
		return err
	}
	dist, err := omx.NewMatrix("dist", distRows, nil)
	if err != nil {
		return err
	}
	zoneIDs := make([]int32, rows)
	for i := range zoneIDs {
		zoneIDs[i] = int32(100 + i)
	}
	zones, err := omx.NewLookup("zones", zoneIDs, nil)
	if err != nil {
		return err
	}

	if err := f.SetAttribute(omx.TitleKey, title); err != nil {
		return err
	}
	if err := f.AddMatrix(tm); err != nil {
		return err
	}
	if err := f.AddMatrix(dist); err != nil {
		return err
	}
	return f.AddLookup(zones)
}
