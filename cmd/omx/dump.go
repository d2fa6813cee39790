package main

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/fxamacker/cbor/v2"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-omx/omx"
)

var dumpCmdDef = cli.Command{
	Name:      "dump",
	Usage:     "Write a structured summary of a file to stdout",
	ArgsUsage: "FILE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output format: yaml, json or cbor",
		},
	},
	Action: cmdDump,
}

// cborEncMode sorts map keys so a file always dumps to the same bytes.
var cborEncMode cbor.EncMode

func init() {
	var err error
	cborEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("dump: CBOR encoder initialization failed: " + err.Error())
	}
}

func cmdDump(c *cli.Context) error {
	path, err := oneArg(c)
	if err != nil {
		return err
	}
	format := getEnv(c).cfg.DumpFormat
	if c.IsSet("format") {
		format = c.String("format")
	}
	s, err := readSummary(c, path)
	if err != nil {
		return err
	}

	w := c.App.Writer
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(jsonSummary(s))
	case "cbor":
		data, err := cborEncMode.Marshal(s)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		return fmt.Errorf("unknown dump format %q", format)
	}
}

// jsonSummary spells NaN and the infinities, which JSON has no numbers
// for, as the strings "NaN", "Infinity" and "-Infinity".
func jsonSummary(s omx.Summary) omx.Summary {
	s.Attributes = jsonAttributes(s.Attributes)
	for _, entries := range [][]omx.Entry{s.Matrices, s.Lookups} {
		for i := range entries {
			entries[i].Missing = jsonValue(entries[i].Missing)
			entries[i].Attributes = jsonAttributes(entries[i].Attributes)
		}
	}
	return s
}

func jsonAttributes(attrs map[string]any) map[string]any {
	for k, v := range attrs {
		attrs[k] = jsonValue(v)
	}
	return attrs
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case float32:
		if f, ok := jsonFloat(float64(x)); ok {
			return f
		}
	case float64:
		if f, ok := jsonFloat(x); ok {
			return f
		}
	case []float32:
		return jsonFloats(x)
	case []float64:
		return jsonFloats(x)
	}
	return v
}

func jsonFloats[T float32 | float64](xs []T) any {
	var out []any
	for i, x := range xs {
		f, ok := jsonFloat(float64(x))
		if !ok {
			if out != nil {
				out[i] = x
			}
			continue
		}
		if out == nil {
			out = make([]any, len(xs))
			for j := range i {
				out[j] = xs[j]
			}
		}
		out[i] = f
	}
	if out == nil {
		return xs
	}
	return out
}

// jsonFloat returns the string for a non-finite f.
func jsonFloat(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "Infinity", true
	case math.IsInf(f, -1):
		return "-Infinity", true
	}
	return "", false
}
