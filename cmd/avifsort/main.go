package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ah-its-andy/avifsort/internal/batch"
	"github.com/ah-its-andy/avifsort/internal/config"
	"github.com/ah-its-andy/avifsort/internal/converter"
	"github.com/ah-its-andy/avifsort/internal/worker"
)

const (
	exitOK          = 0
	exitFailures    = 1
	exitFatal       = 2
	exitInterrupted = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return exitFatal
	}
	log.Printf("starting avifsort root=%s workers=%d encoder=%s watch=%v", cfg.Root, cfg.MaxWorkers, cfg.Encoder, cfg.Watch)

	converter.RegisterBuiltinConverters()
	if err := converter.DisableAll(cfg.DisabledEncoders); err != nil {
		log.Printf("AVIF_DISABLE: %v", err)
		return exitFatal
	}
	conv, err := converter.FindConverter(cfg.Encoder, "")
	if err != nil {
		log.Printf("%v (registered: %s)", err, converter.Describe())
		return exitFatal
	}
	log.Printf("using converter %s; registered: %s", conv.Name(), converter.Describe())

	job := worker.NewJob(worker.JobConfig{
		Converter:    conv,
		Options:      converter.DefaultOptions(),
		MD5ChunkSize: cfg.MD5ChunkSize,
		Debug:        cfg.Debug(),
	})
	orch := batch.New(cfg.MaxWorkers, job)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if in := job.Live().Describe(cfg.Debug()); in != "" {
			log.Printf("interrupt received, finishing in-flight files:\n%s", in)
		}
	}()

	res, err := orch.Run(ctx, cfg.Root)
	if err != nil {
		log.Printf("cannot process %s: %v", cfg.Root, err)
		return exitFatal
	}

	if cfg.Watch && !res.Interrupted {
		wres, err := orch.Watch(ctx, cfg.Root, cfg.MetadataStabilityDelay)
		if err != nil {
			log.Printf("watch mode failed: %v", err)
		} else {
			res.Merge(wres)
		}
	}

	res.Print(os.Stdout, os.Stderr)
	switch {
	case res.Interrupted:
		return exitInterrupted
	case res.Failed > 0:
		return exitFailures
	default:
		return exitOK
	}
}
