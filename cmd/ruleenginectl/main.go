// Command ruleenginectl is a small demo/ops CLI around a driver.Driver:
// "demo" runs a single instance through a handful of ticks printing
// diagnostics, and "simulate" fans out N independent instances
// concurrently to show the engine has no shared mutable state across
// Driver values. Subcommand dispatch follows the teacher's cmd/funxy
// main.go style: os.Args switched by hand, no flag-parsing library.
package main

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/ruleshard/ruleengine/driver"
	"github.com/ruleshard/ruleengine/internal/accumulator"
	"github.com/ruleshard/ruleengine/internal/dispatcher"
	"github.com/ruleshard/ruleengine/internal/expr"
	"github.com/ruleshard/ruleengine/internal/hashkey"
	"github.com/ruleshard/ruleengine/internal/reservoir"
	"github.com/ruleshard/ruleengine/internal/statusvalue"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "demo":
		runDemo(os.Stdout)
	case "simulate":
		n := 4
		if len(os.Args) >= 3 {
			v, err := strconv.Atoi(os.Args[2])
			if err != nil || v <= 0 {
				fmt.Fprintf(os.Stderr, "simulate: invalid worker count %q\n", os.Args[2])
				os.Exit(1)
			}
			n = v
		}
		if err := runSimulate(os.Stdout, n); err != nil {
			fmt.Fprintf(os.Stderr, "simulate: %v\n", err)
			os.Exit(1)
		}
	case "-help", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: ruleenginectl <command>")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  demo                 run one Driver through a few ticks of a countdown")
	fmt.Fprintln(os.Stderr, "  simulate [n]         run n independent Drivers concurrently (default 4)")
}

// newCountdown builds a single Driver with one chunk holding a "counter"
// status and a handler that fires when the counter reaches zero.
func newCountdown(out *int) *driver.Driver {
	d := driver.New(0, 0, 0, 0, nil)
	d.RegisterStatus("clock", "counter", statusvalue.NewUnsigned(3), 8)

	chunk := d.Key("clock")
	counter := d.Key("counter")
	atZero := d.Key("counter-at-zero")

	d.Evaluator().RegisterStatusComparison(chunk, atZero, expr.And, []reservoir.Comparison{
		{Target: counter, Op: statusvalue.CmpEqual, Value: statusvalue.NewUnsigned(0)},
	})
	d.RegisterHandler(chunk, atZero, dispatcher.FalseToTrue, func(hashkey.Key, statusvalue.Ternary, statusvalue.Ternary) {
		*out++
	}, 0)
	return d
}

func runDemo(w *os.File) {
	fires := 0
	d := newCountdown(&fires)
	d.Out = w
	d.Verbose = true

	counter := d.Key("counter")
	for i := 0; i < 4; i++ {
		d.Accumulate(reservoir.Assignment{Target: counter, Op: statusvalue.OpSub, Value: statusvalue.NewUnsigned(1)}, accumulator.Nonblock)
		d.Tick()
	}
	fmt.Fprintf(w, "countdown handler fired %d time(s) across %d ticks\n", fires, d.Ticks())
}

// runSimulate runs n independent countdowns concurrently to demonstrate
// that a Driver carries no shared mutable state: each goroutine owns its
// own Driver end to end.
func runSimulate(w *os.File, n int) error {
	results := make([]int, n)
	g := new(errgroup.Group)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fires := 0
			d := newCountdown(&fires)
			counter := d.Key("counter")
			for t := 0; t < 4; t++ {
				d.Accumulate(reservoir.Assignment{Target: counter, Op: statusvalue.OpSub, Value: statusvalue.NewUnsigned(1)}, accumulator.Nonblock)
				d.Tick()
			}
			results[i] = fires
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, fires := range results {
		fmt.Fprintf(w, "worker %d: handler fired %d time(s)\n", i, fires)
	}
	return nil
}
