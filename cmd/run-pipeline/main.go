// Command run-pipeline executes a configured processing pipeline over a
// timestream archive.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/traitcapture/timestream/internal/archive"
	"github.com/traitcapture/timestream/internal/config"
	"github.com/traitcapture/timestream/internal/monitor"
	"github.com/traitcapture/timestream/internal/pipeline"
	"github.com/traitcapture/timestream/internal/stages"
	"github.com/traitcapture/timestream/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to the JSON run configuration")
		inputPath  = flag.String("input", "", "override the configured input archive")
		outputPath = flag.String("output", "", "override the configured output archive")
		listenAddr = flag.String("listen", "", "serve run status and charts on this address (e.g. :8080)")
		showDoc    = flag.Bool("doc", false, "print the documented contracts of all components and exit")
		verbose    = flag.Bool("v", false, "enable diagnostic logging")
		trace      = flag.Bool("vv", false, "enable per-frame trace logging")
	)
	flag.Parse()

	if *showDoc {
		fmt.Print(stages.Describe())
		return
	}

	var diagW, traceW io.Writer
	if *verbose || *trace {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	pipeline.SetLogWriters(os.Stderr, diagW, traceW)

	if *configPath == "" {
		log.Fatal("a -config file is required")
	}
	cfg, err := config.Load(*configPath, nil)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *inputPath != "" {
		cfg.General.Input = *inputPath
	}
	if *outputPath != "" {
		cfg.General.Output = *outputPath
	}

	if err := run(cfg, *listenAddr); err != nil {
		log.Fatalf("run-pipeline: %v", err)
	}
}

func run(cfg *config.Config, listen string) error {
	input, err := archive.Load(cfg.General.Input, archive.LoadOptions{})
	if err != nil {
		return fmt.Errorf("input archive: %w", err)
	}

	ctx := pipeline.NewContext()
	ctx.Set(pipeline.KeyInput, input)

	if cfg.General.Output != "" {
		output, err := openOutput(cfg.General.Output, input)
		if err != nil {
			return fmt.Errorf("output archive: %w", err)
		}
		ctx.Set(pipeline.KeyOutput, output)
	}

	var db *store.Store
	if cfg.General.Store != "" {
		db, err = store.Open(cfg.General.Store)
		if err != nil {
			return err
		}
		defer db.Close()
		ctx.Set(pipeline.KeyStore, db)
	}

	built := make([]pipeline.Stage, 0, len(cfg.Pipeline))
	for _, sc := range cfg.Pipeline {
		st, err := stages.Build(sc.Name, sc.Args)
		if err != nil {
			return err
		}
		built = append(built, st)
	}
	exec, err := pipeline.NewExecutor(built...)
	if err != nil {
		return err
	}

	window, err := cfg.Window()
	if err != nil {
		return err
	}
	trav := archive.NewTraverser(input, window)
	if trav.Len() == 0 {
		return fmt.Errorf("no frames to process in %s", input.Path())
	}

	driver := pipeline.NewDriver(exec, trav, nil)
	ctx.Set(pipeline.KeyRunID, driver.RunID)

	started := time.Now()
	if db != nil {
		if err := db.CreateRun(driver.RunID, input.Path(), started); err != nil {
			return err
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Print("interrupt: stopping after the current frame")
		driver.Stop()
	}()

	if listen != "" {
		ws := monitor.NewWebServer(db, driver, input.Path(), trav.Len())
		go func() {
			if err := http.ListenAndServe(listen, ws); err != nil {
				log.Printf("monitor server: %v", err)
			}
		}()
	}

	go printProgress(driver.Progress(), driver.Done(), trav.Len(), os.Stdout)

	go driver.Run(ctx)
	<-driver.Done()

	done := driver.FramesDone.Load()
	status := "complete"
	if int(done) < trav.Len() {
		status = "partial"
	}
	if db != nil {
		if err := db.FinishRun(driver.RunID, time.Now(), int(done), status); err != nil {
			return err
		}
	}
	fmt.Printf("processed %d/%d frames (%s) in %s\n",
		done, trav.Len(), status, time.Since(started).Round(time.Millisecond))
	return nil
}

// printProgress echoes per-frame notifications until the run completes.
// The progress channel is never closed, so completion is signalled by
// done.
func printProgress(progress <-chan int, done <-chan struct{}, total int, w io.Writer) {
	for {
		select {
		case i := <-progress:
			fmt.Fprintf(w, "frame %d/%d\n", i+1, total)
		case <-done:
			return
		}
	}
}

// openOutput loads an existing output archive or creates a fresh one
// inheriting the input's extension and interval.
func openOutput(path string, input *archive.TimeStream) (*archive.TimeStream, error) {
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		if out, err := archive.Load(path, archive.LoadOptions{}); err == nil {
			return out, nil
		}
		// A directory with no images yet: fall through and initialise.
	}
	// Underscores are reserved in archive names; keep the leading field.
	name, _, _ := strings.Cut(filepath.Base(path), "_")
	return archive.Create(path, archive.CreateOptions{
		Name:      name,
		Extension: input.Extension,
		Interval:  input.Interval,
		Start:     input.Start,
		End:       input.End,
	})
}
