// Command heap-inspect drives a heapcore allocator from the command
// line: it runs a small scripted allocation workload against a real
// system Region Provider and reports Validate/Classify/
// LargestUsedBlockSize results, for manual inspection and for
// smoke-testing a platform's regionprovider.NewSystem() wiring.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/orizon-lang/heapcore/internal/allocator"
	"github.com/orizon-lang/heapcore/internal/cli"
	"github.com/orizon-lang/heapcore/internal/regionprovider"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version information")
		showHelp    = flag.Bool("help", false, "show help information")
		jsonOutput  = flag.Bool("json", false, "output version in JSON format")
		verbose     = flag.Bool("verbose", false, "log every allocator event")
		allocSize   = flag.Int("size", 64, "payload size in bytes for the probe allocation")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Exercises a heapcore allocator and reports its diagnostic state.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s --size 256 --verbose   # probe with a 256-byte allocation, logging events\n", os.Args[0])
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		cli.PrintVersion("heap-inspect", *jsonOutput)
		os.Exit(0)
	}

	if *allocSize < 1 {
		cli.ExitWithError("--size must be >= 1, got %d", *allocSize)
	}

	logger := cli.NewLogger(*verbose)

	provider, err := regionprovider.NewSystem()
	if err != nil {
		cli.ExitWithError("could not create region provider: %v", err)
	}

	a := allocator.New(provider, allocator.WithLogger(func(event string, fields map[string]any) {
		logger.Info("%s %v", event, fields)
	}))

	if err := a.Setup(); err != nil {
		cli.ExitWithError("setup failed: %v", err)
	}
	defer a.Clean()

	if code := a.Validate(); code != allocator.ValidateOK {
		cli.ExitWithError("heap failed initial validation: %s", code)
	}

	fmt.Printf("setup ok, heap ready for allocation\n")

	p := a.Allocate(uintptr(*allocSize))
	if p == nil {
		cli.ExitWithError("allocate(%d) failed: %v", *allocSize, a.LastError())
	}

	fmt.Printf("allocate(%d) -> %p, classify=%s\n", *allocSize, p, a.Classify(p))

	zeroed := a.ZeroAllocate(4, 16)
	if zeroed == nil {
		cli.ExitWithError("zero-allocate(4, 16) failed: %v", a.LastError())
	}

	fmt.Printf("zero-allocate(4, 16) -> %p, classify=%s\n", zeroed, a.Classify(zeroed))

	grown := a.Reallocate(p, uintptr(*allocSize)*2)
	if grown == nil {
		cli.ExitWithError("reallocate failed: %v", a.LastError())
	}

	fmt.Printf("reallocate(%d) -> %p, classify=%s\n", *allocSize*2, grown, a.Classify(grown))

	fmt.Printf("largest used block: %d bytes\n", a.LargestUsedBlockSize())
	fmt.Printf("validate: %s\n", a.Validate())

	a.Free(zeroed)
	a.Free(grown)

	fmt.Printf("after freeing both blocks: validate=%s, largest used=%d\n", a.Validate(), a.LargestUsedBlockSize())
}
