// Package main runs reproducible line-operation latency and LSP memory stability
// measurements for Line Weaver.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kpumuk/line-weaver/internal/lsp"
	itext "github.com/kpumuk/line-weaver/internal/text"
	"github.com/kpumuk/line-weaver/internal/transform"
)

const (
	setSmall   = "small"
	setTypical = "typical"
	setLarge   = "large"

	smallLines   = 64
	typicalLines = 2_000
	largeLines   = 50_000
)

type config struct {
	seed            uint64
	iterations      int
	warmup          int
	locale          string
	jsonPath        string
	memIters        int
	memSampleEvery  int
	memFreeOSMemory bool
}

type corpusBuffer struct {
	Set   string `json:"set"`
	Lines int    `json:"lines"`
	Bytes int    `json:"bytes"`

	src []byte
}

type sampleStats struct {
	Samples int     `json:"samples"`
	P50MS   float64 `json:"p50_ms"`
	P95MS   float64 `json:"p95_ms"`
	MinMS   float64 `json:"min_ms"`
	MaxMS   float64 `json:"max_ms"`
	MeanMS  float64 `json:"mean_ms"`
}

type benchReport struct {
	Operation    string      `json:"operation"`
	Set          string      `json:"set"`
	Iterations   int         `json:"iterations"`
	Inapplicable int         `json:"inapplicable,omitempty"`
	Stats        sampleStats `json:"stats"`
}

type memSample struct {
	Iteration int    `json:"iteration"`
	HeapAlloc uint64 `json:"heap_alloc"`
	HeapInuse uint64 `json:"heap_inuse"`
	HeapSys   uint64 `json:"heap_sys"`
	NumGC     uint32 `json:"num_gc"`
}

type memoryReport struct {
	Iterations          int         `json:"iterations"`
	SampleEvery         int         `json:"sample_every"`
	DocCount            int         `json:"doc_count"`
	Samples             []memSample `json:"samples"`
	HeapAllocGrowth     int64       `json:"heap_alloc_growth"`
	HeapInuseGrowth     int64       `json:"heap_inuse_growth"`
	UnboundedGrowthHint bool        `json:"unbounded_growth_hint"`
}

type report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	GoVersion   string         `json:"go_version"`
	GOOS        string         `json:"goos"`
	GOARCH      string         `json:"goarch"`
	CPUs        int            `json:"cpus"`
	Config      map[string]any `json:"config"`
	Corpus      []corpusBuffer `json:"corpus"`
	Operations  []benchReport  `json:"operations"`
	Memory      memoryReport   `json:"memory"`
}

func main() {
	cfg := parseFlags(os.Args[1:])
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "perf-report: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) config {
	var cfg config
	fs := pflag.NewFlagSet("perf-report", pflag.ExitOnError)
	fs.Uint64Var(&cfg.seed, "seed", 1, "seed for the synthetic corpus")
	fs.IntVar(&cfg.iterations, "iterations", 15, "benchmark iterations per operation and buffer")
	fs.IntVar(&cfg.warmup, "warmup", 2, "warmup iterations per operation and buffer")
	fs.StringVar(&cfg.locale, "locale", "", "BCP 47 locale for sort-lines")
	fs.StringVar(&cfg.jsonPath, "json", "", "optional JSON report output path")
	fs.IntVar(&cfg.memIters, "memory-iterations", 300, "LSP open/change/execute/close loop iterations")
	fs.IntVar(&cfg.memSampleEvery, "memory-sample-every", 25, "memory sample cadence")
	fs.BoolVar(&cfg.memFreeOSMemory, "memory-free-os", false, "call debug.FreeOSMemory before memory samples (slower, less noisy)")
	_ = fs.Parse(args)
	return cfg
}

func run(cfg config) error {
	if cfg.iterations <= 0 {
		return errors.New("iterations must be > 0")
	}
	if cfg.warmup < 0 {
		return errors.New("warmup must be >= 0")
	}
	if cfg.memIters <= 0 {
		return errors.New("memory-iterations must be > 0")
	}
	if cfg.memSampleEvery <= 0 {
		return errors.New("memory-sample-every must be > 0")
	}
	tag, err := transform.ParseLocale(cfg.locale)
	if err != nil {
		return err
	}

	ctx := context.Background()
	corpus := buildCorpus(cfg.seed)
	ops, err := runOperationBench(corpus, transform.Options{Locale: tag}, cfg)
	if err != nil {
		return err
	}
	mem, err := runLSPMemoryLoop(ctx, corpus, cfg)
	if err != nil {
		return err
	}

	rep := report{
		GeneratedAt: time.Now().UTC(),
		GoVersion:   runtime.Version(),
		GOOS:        runtime.GOOS,
		GOARCH:      runtime.GOARCH,
		CPUs:        runtime.NumCPU(),
		Config:      configJSON(cfg),
		Corpus:      corpus,
		Operations:  ops,
		Memory:      mem,
	}

	printReport(rep)
	if cfg.jsonPath != "" {
		if err := writeJSON(cfg.jsonPath, rep); err != nil {
			return err
		}
		fmt.Printf("\nJSON report written to %s\n", cfg.jsonPath)
	}
	return nil
}

// buildCorpus generates one buffer per size set. Lines mix duplicates, trailing
// whitespace and non-ASCII text so that every operation has work to do.
func buildCorpus(seed uint64) []corpusBuffer {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	words := []string{"alpha", "Beta", "gamma", "d\u00e9lta", "epsilon", "Zeta", "\u0113ta", "theta", "iota", "\u65e5\u672c", "kappa", "\u03bb"}

	gen := func(set string, lines int) corpusBuffer {
		var b strings.Builder
		for range lines {
			n := 1 + rng.IntN(6)
			for j := range n {
				if j > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(words[rng.IntN(len(words))])
			}
			switch rng.IntN(8) {
			case 0:
				b.WriteString("  ")
			case 1:
				b.WriteByte('\t')
			}
			b.WriteByte('\n')
		}
		src := []byte(b.String())
		return corpusBuffer{Set: set, Lines: lines, Bytes: len(src), src: src}
	}
	return []corpusBuffer{
		gen(setSmall, smallLines),
		gen(setTypical, typicalLines),
		gen(setLarge, largeLines),
	}
}

// benchSelections places a caret on the middle line and a selection over the middle
// half of the buffer, so that move operations apply and sort/reverse have a block.
func benchSelections(src []byte) []itext.Span {
	li := itext.NewLineIndex(src)
	mid := li.LineCount() / 2
	caret, err := li.PointToOffset(itext.Point{Line: mid})
	if err != nil {
		return nil
	}
	quarter, _ := li.PointToOffset(itext.Point{Line: li.LineCount() / 4})
	three, _ := li.PointToOffset(itext.Point{Line: 3 * li.LineCount() / 4})
	return []itext.Span{{Start: quarter, End: three}, itext.Caret(caret)}
}

func runOperationBench(corpus []corpusBuffer, opts transform.Options, cfg config) ([]benchReport, error) {
	var out []benchReport
	for _, op := range transform.Operations() {
		for _, buf := range corpus {
			selections := benchSelections(buf.src)
			samples := make([]time.Duration, 0, cfg.iterations)
			inapplicable := 0
			for i := 0; i < cfg.warmup+cfg.iterations; i++ {
				start := time.Now()
				plan, ok, err := op.Apply(buf.src, selections, opts)
				if err != nil {
					return nil, fmt.Errorf("%s on %s buffer: %w", op.Name, buf.Set, err)
				}
				if ok {
					if _, err := plan.Apply(buf.src); err != nil {
						return nil, fmt.Errorf("%s on %s buffer: apply plan: %w", op.Name, buf.Set, err)
					}
				}
				elapsed := time.Since(start)
				if i < cfg.warmup {
					continue
				}
				if !ok {
					inapplicable++
				}
				samples = append(samples, elapsed)
			}
			out = append(out, benchReport{
				Operation:    op.Name,
				Set:          buf.Set,
				Iterations:   cfg.iterations,
				Inapplicable: inapplicable,
				Stats:        durationStats(samples),
			})
		}
	}
	return out, nil
}

// runLSPMemoryLoop drives the server through open, incremental change, command and
// close cycles and samples the heap to spot snapshot leaks.
func runLSPMemoryLoop(ctx context.Context, corpus []corpusBuffer, cfg config) (memoryReport, error) {
	type memDoc struct {
		uri  string
		text string
	}
	docs := make([]memDoc, 0, len(corpus))
	for i, buf := range corpus {
		docs = append(docs, memDoc{uri: fmt.Sprintf("file:///perf/memory/%d/%s.txt", i, buf.Set), text: string(buf.src)})
	}

	server := lsp.NewServer()

	samples := make([]memSample, 0, max(1, cfg.memIters/cfg.memSampleEvery))
	recordSample := func(iter int) {
		if cfg.memFreeOSMemory {
			debug.FreeOSMemory()
		} else {
			runtime.GC()
		}
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		samples = append(samples, memSample{
			Iteration: iter,
			HeapAlloc: ms.HeapAlloc,
			HeapInuse: ms.HeapInuse,
			HeapSys:   ms.HeapSys,
			NumGC:     ms.NumGC,
		})
	}

	recordSample(0)
	for iter := 1; iter <= cfg.memIters; iter++ {
		for _, d := range docs {
			if err := server.DidOpen(ctx, lsp.DidOpenParams{TextDocument: lsp.TextDocumentItem{URI: d.uri, Version: 1, Text: d.text}}); err != nil {
				return memoryReport{}, fmt.Errorf("memory loop open: %w", err)
			}
			if err := server.DidChange(ctx, lsp.DidChangeParams{
				TextDocument: lsp.VersionedTextDocumentIdentifier{URI: d.uri, Version: 2},
				ContentChanges: []lsp.TextDocumentContentChangeEvent{{
					Range: &lsp.Range{},
					Text:  "perf ",
				}},
			}); err != nil {
				return memoryReport{}, fmt.Errorf("memory loop change: %w", err)
			}
			args, err := json.Marshal(lsp.LineCommandArgs{
				TextDocument: lsp.TextDocumentIdentifier{URI: d.uri},
				Selections:   []lsp.Range{{Start: lsp.Position{Line: 1}, End: lsp.Position{Line: 1}}},
			})
			if err != nil {
				return memoryReport{}, err
			}
			if _, err := server.ExecuteCommand(ctx, lsp.ExecuteCommandParams{
				Command:   lsp.CommandPrefix + "move-line-down",
				Arguments: []json.RawMessage{args},
			}); err != nil {
				return memoryReport{}, fmt.Errorf("memory loop command: %w", err)
			}
			if err := server.DidClose(ctx, lsp.DidCloseParams{TextDocument: lsp.TextDocumentIdentifier{URI: d.uri}}); err != nil {
				return memoryReport{}, fmt.Errorf("memory loop close: %w", err)
			}
		}
		if iter%cfg.memSampleEvery == 0 || iter == cfg.memIters {
			recordSample(iter)
		}
	}

	rep := memoryReport{
		Iterations:  cfg.memIters,
		SampleEvery: cfg.memSampleEvery,
		DocCount:    len(docs),
		Samples:     samples,
	}
	if len(samples) >= 2 {
		first := samples[0]
		last := samples[len(samples)-1]
		rep.HeapAllocGrowth = int64Diff(last.HeapAlloc, first.HeapAlloc)
		rep.HeapInuseGrowth = int64Diff(last.HeapInuse, first.HeapInuse)
		rep.UnboundedGrowthHint = isUnboundedGrowthHint(samples)
	}
	return rep, nil
}

func isUnboundedGrowthHint(samples []memSample) bool {
	if len(samples) < 4 {
		return false
	}
	base := samples[0]
	last := samples[len(samples)-1]
	const maxExpectedGrowth = 16 << 20 // 16 MiB after forced GC samples
	return int64Diff(last.HeapAlloc, base.HeapAlloc) > maxExpectedGrowth ||
		int64Diff(last.HeapInuse, base.HeapInuse) > maxExpectedGrowth
}

func durationStats(samples []time.Duration) sampleStats {
	if len(samples) == 0 {
		return sampleStats{}
	}
	ns := make([]int64, len(samples))
	var sum int64
	for i, d := range samples {
		ns[i] = d.Nanoseconds()
		sum += ns[i]
	}
	slices.Sort(ns)
	return sampleStats{
		Samples: len(samples),
		P50MS:   nanosToMS(quantile(ns, 0.50)),
		P95MS:   nanosToMS(quantile(ns, 0.95)),
		MinMS:   nanosToMS(ns[0]),
		MaxMS:   nanosToMS(ns[len(ns)-1]),
		MeanMS:  nanosToMS(sum / int64(len(ns))),
	}
}

func quantile(sorted []int64, q float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	return sorted[int(float64(len(sorted)-1)*q)]
}

func nanosToMS(ns int64) float64 {
	return float64(ns) / float64(time.Millisecond)
}

func printReport(rep report) {
	fmt.Printf("Line Weaver Performance Report\n")
	fmt.Printf("Generated: %s\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Printf("Go: %s | %s/%s | CPUs=%d\n", rep.GoVersion, rep.GOOS, rep.GOARCH, rep.CPUs)
	fmt.Println()
	fmt.Println("Corpus buffers")
	for _, c := range rep.Corpus {
		fmt.Printf("- %-8s lines=%6d total=%8d bytes\n", c.Set, c.Lines, c.Bytes)
	}
	fmt.Println()
	fmt.Println("Operations (warm, plan + apply)")
	fmt.Println("operation                 set      samples  p50(ms)  p95(ms)  mean(ms)    min     max  inapplicable")
	for _, r := range rep.Operations {
		fmt.Printf("%-25s %-8s %7d %8.3f %8.3f %9.3f %6.3f %7.3f %13d\n",
			r.Operation, r.Set, r.Stats.Samples, r.Stats.P50MS, r.Stats.P95MS, r.Stats.MeanMS, r.Stats.MinMS, r.Stats.MaxMS, r.Inapplicable)
	}
	fmt.Println()
	printMemoryReport(rep.Memory)
}

func printMemoryReport(rep memoryReport) {
	fmt.Println("LSP memory loop (open/change/execute/close)")
	fmt.Printf("iterations=%d sample_every=%d docs=%d\n", rep.Iterations, rep.SampleEvery, rep.DocCount)
	if len(rep.Samples) == 0 {
		fmt.Println("no samples")
		return
	}
	last := rep.Samples[len(rep.Samples)-1]
	fmt.Printf("final heap_alloc=%d heap_inuse=%d heap_sys=%d num_gc=%d\n", last.HeapAlloc, last.HeapInuse, last.HeapSys, last.NumGC)
	fmt.Printf("growth heap_alloc=%d heap_inuse=%d unbounded_growth_hint=%v\n", rep.HeapAllocGrowth, rep.HeapInuseGrowth, rep.UnboundedGrowthHint)
}

func writeJSON(path string, rep report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o600)
}

func configJSON(cfg config) map[string]any {
	return map[string]any{
		"seed":                cfg.seed,
		"iterations":          cfg.iterations,
		"warmup":              cfg.warmup,
		"locale":              cfg.locale,
		"json":                cfg.jsonPath,
		"memory_iterations":   cfg.memIters,
		"memory_sample_every": cfg.memSampleEvery,
		"memory_free_os":      cfg.memFreeOSMemory,
	}
}

func int64Diff(a, b uint64) int64 {
	const maxInt64AsUint64 = (^uint64(0)) >> 1
	if a >= b {
		d := a - b
		if d > maxInt64AsUint64 {
			return int64(maxInt64AsUint64)
		}
		return int64(d)
	}
	d := b - a
	if d > maxInt64AsUint64 {
		return -int64(maxInt64AsUint64)
	}
	return -int64(d)
}
