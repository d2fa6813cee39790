package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/robert-malhotra/go-omx/omx"
)

var repackCmdDef = cli.Command{
	Name:      "repack",
	Usage:     "Rewrite a file without the space left by deleted entries",
	ArgsUsage: "SRC [DST]",
	Action:    cmdRepack,
}

func cmdRepack(c *cli.Context) error {
	e := getEnv(c)
	switch c.NArg() {
	case 1:
		src := c.Args().Get(0)
		if err := omx.RepackInPlace(src, e.options()...); err != nil {
			return err
		}
		e.logger.Info("repacked", "path", src)
	case 2:
		src, dst := c.Args().Get(0), c.Args().Get(1)
		if err := omx.Repack(src, dst, e.options()...); err != nil {
			return err
		}
		e.logger.Info("repacked", "from", src, "to", dst)
	default:
		return fmt.Errorf("repack takes SRC and an optional DST")
	}
	return nil
}
