// Command harness drives the buddy page allocator through an
// init/alloc/free/reserve workload against a simulated physical address
// space, the same role biscuit's kernel/chentry.go plays as a small
// standalone diagnostic command built from the kernel's own packages.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/pprof"

	"github.com/google/pprof/profile"
	"golang.org/x/sys/unix"
	"golang.org/x/text/message"

	"archcfg"
	"palloc"
	"pfn"
	"registry"
)

var (
	cpuprofile = flag.String("cpuprofile", "", "write a CPU profile to this file and summarize it")
	pages      = flag.Int("pages", 1<<16, "number of page frames to simulate (metadata tables included), split across four memory-class areas")
)

func main() {
	flag.Parse()

	checkHostPageSize()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	cfg := archcfg.DefaultConfig
	pm := archcfg.IdentityMap{PageShift: cfg.PageShift}

	// Quarter the simulated range into Lowest/Low/Normal/High, the same
	// four-class layout alloc_page.c's page_alloc_init_area routes by
	// cutoff, and let InitArea(archcfg.Any, ...) carve all four in one
	// call instead of initializing a single area by hand.
	top := pfn.PFN(*pages)
	quarter := top / 4
	cutoffs := cfg.Cutoffs(3*quarter, 2*quarter, quarter, 0, true, true, true)
	palloc.Configure(cfg, pm, cutoffs)

	palloc.InitArea(archcfg.Any, 0, top)
	palloc.OpsEnable()

	runWorkload()

	if *cpuprofile != "" {
		pprof.StopCPUProfile()
		summarizeProfile(*cpuprofile)
	}
}

// runWorkload exercises a representative sequence of allocator
// operations: bulk order-0 allocation, a handful of higher-order
// allocations that force split cascades, frees that force coalescing,
// and a reservation round-trip.
func runWorkload() {
	const batch = 64
	ptrs := make([]uintptr, 0, batch)
	for i := 0; i < batch; i++ {
		p, ok := palloc.AllocPages(0)
		if !ok {
			log.Fatalf("harness: unexpected OOM at allocation %d", i)
		}
		ptrs = append(ptrs, p)
	}

	big, ok := palloc.AllocPagesArea(registry.AllAreas, 4)
	if !ok {
		log.Fatal("harness: unexpected OOM allocating order-4 block")
	}

	for _, p := range ptrs {
		palloc.FreePages(p)
	}
	palloc.FreePages(big)

	if err := palloc.ReservePages(8<<archcfg.DefaultConfig.PageShift, 4); err != nil {
		log.Fatalf("harness: reservation failed: %v", err)
	}
	palloc.UnreservePages(8<<archcfg.DefaultConfig.PageShift, 4)

	printSummary(batch + 1)
}

func printSummary(ops int) {
	p := message.NewPrinter(message.MatchLanguage("en"))
	p.Printf("harness: completed %d allocate/free cycles over a %d-page range\n",
		ops, *pages)
}

func checkHostPageSize() {
	hostPageSize := unix.Getpagesize()
	if uint(hostPageSize) != archcfg.DefaultConfig.PageSize {
		fmt.Printf("harness: host page size %d differs from configured page size %d (informational only)\n",
			hostPageSize, archcfg.DefaultConfig.PageSize)
	}
}

// summarizeProfile loads the just-written CPU profile and prints the
// function with the most captured samples, using google/pprof's own
// profile-format library rather than re-deriving the parser.
func summarizeProfile(path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Printf("harness: cannot reopen profile: %v", err)
		return
	}
	defer f.Close()

	prof, err := profile.Parse(f)
	if err != nil {
		log.Printf("harness: cannot parse profile: %v", err)
		return
	}

	samplesByFn := make(map[string]int64)
	for _, sample := range prof.Sample {
		if len(sample.Location) == 0 || len(sample.Location[0].Line) == 0 {
			continue
		}
		fn := sample.Location[0].Line[0].Function.Name
		if len(sample.Value) > 0 {
			samplesByFn[fn] += sample.Value[0]
		}
	}

	var topFn string
	var topSamples int64
	for fn, v := range samplesByFn {
		if v > topSamples {
			topSamples = v
			topFn = fn
		}
	}
	if topFn != "" {
		fmt.Printf("harness: hottest sampled function: %s (%d samples)\n", topFn, topSamples)
	}
}
