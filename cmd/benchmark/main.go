package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/delaneyj/cellparty/cells"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	profileKey = "profile"
)

var (
	widths  = []int{1, 10, 100, 1_000}
	heights = []int{1, 10, 100, 1_000}
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "measure cascade latency over cell grids",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  itersKey,
				Usage: "iterations per grid shape",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "write a CPU profile to this path",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Uint(itersKey))

	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create profile %s: %w", path, err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	tbl := table.NewWriter()
	tbl.SetTitle("Cellparty Cascade")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max"})

	for _, w := range widths {
		for _, h := range heights {
			calc, err := runGrid(w, h, iters)
			if err != nil {
				return err
			}
			tbl.AppendRow(table.Row{
				fmt.Sprintf("propagate %dw x %dh", w, h),
				calc.Time.Avg,
				calc.Time.Min,
				calc.Time.P75,
				calc.Time.P99,
				calc.Time.Max,
			})
		}
	}
	tbl.Render()
	return nil
}

// runGrid builds width parallel chains of height transform cells off a single
// source, then times full cascades triggered by source assignments.
func runGrid(width, height, iters int) (*tachymeter.Metrics, error) {
	tach := tachymeter.New(&tachymeter.Config{Size: iters})

	rt := cells.NewRuntime(func(from *cells.Cell, err error) {
		log.Panic(err)
	})
	src := cells.NewCell(rt, 0)

	sink := 0
	for i := 0; i < width; i++ {
		last := src
		for j := 0; j < height; j++ {
			last = last.Transform(func(v any) any { return v.(int) + 1 })
		}
		_, err := last.Subscribe(cells.GroupUpdate, func(v any) error {
			sink += v.(int)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	for i := 1; i <= iters; i++ {
		start := time.Now()
		if err := src.SetValue(i); err != nil {
			return nil, err
		}
		tach.AddTime(time.Since(start))
	}
	if sink == 0 {
		return nil, fmt.Errorf("grid %dx%d never cascaded", width, height)
	}
	return tach.Calc(), nil
}
