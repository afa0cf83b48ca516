// Command mobi is the study's pipeline tool: it converts raw XDF
// recordings into the standardized dataset, inspects raw files, runs
// preprocessing passes, renders dataset reports, and exports channels as
// audio for auditory QC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/JVHannila/MoBI-project/internal/bids"
	"github.com/JVHannila/MoBI-project/internal/config"
	"github.com/JVHannila/MoBI-project/internal/convert"
	"github.com/JVHannila/MoBI-project/internal/inspect"
	"github.com/JVHannila/MoBI-project/internal/logger"
	"github.com/JVHannila/MoBI-project/internal/preprocess"
	"github.com/JVHannila/MoBI-project/internal/registry"
	"github.com/JVHannila/MoBI-project/internal/sonify"
	"github.com/JVHannila/MoBI-project/internal/study"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var cmdErr error
	switch os.Args[1] {
	case "convert":
		cmdErr = runConvert(cfg, log)
	case "inspect":
		cmdErr = runInspect()
	case "preprocess":
		cmdErr = runPreprocess(cfg, log)
	case "report":
		cmdErr = runReport(cfg)
	case "sonify":
		cmdErr = runSonify(cfg)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if cmdErr != nil {
		log.Error("command failed", zap.Error(cmdErr))
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`mobi - XDF to BIDS conversion and EEG preprocessing

Usage:
  mobi convert    [-study file] [-overwrite]        batch-convert raw recordings
  mobi inspect    <file.xdf>                        show the stream table of a raw file
  mobi preprocess -subject S -task T [-mode m]      run a preprocessing pass (findings|apply)
  mobi report                                       summarize the standardized dataset
  mobi sonify     -subject S -task T -channel C -out f.wav
                                                    export one channel as audio

Environment (MOBI_*) selects directories; see internal/config.
`)
}

func loadManifest(path string) (*study.Manifest, error) {
	if path == "" {
		return study.Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return study.Default(), nil
	}
	return study.Load(path)
}

func runConvert(cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	studyFile := fs.String("study", cfg.StudyFile, "study manifest YAML")
	overwrite := fs.Bool("overwrite", false, "replace entries that already exist")
	fs.Parse(os.Args[2:])

	manifest, err := loadManifest(*studyFile)
	if err != nil {
		return err
	}
	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	conv := convert.New(cfg, manifest, reg, log)
	conv.Overwrite = *overwrite
	summary, err := conv.Run(ctx)
	if summary != nil {
		printSummary(summary)
	}
	return err
}

func printSummary(s *convert.Summary) {
	fmt.Println("\nCONVERSION SUMMARY")
	fmt.Println("==================")
	for _, r := range s.Results {
		switch {
		case r.Skipped:
			fmt.Printf("  skip  sub-%s task-%s\n", r.Subject, r.Task)
		case r.Err != nil:
			fmt.Printf("  FAIL  sub-%s task-%s: %v\n", r.Subject, r.Task, r.Err)
		default:
			fmt.Printf("  ok    sub-%s task-%s\n", r.Subject, r.Task)
		}
	}
	total := s.Succeeded + s.Failed
	fmt.Printf("\n%d processed: %d succeeded, %d failed, %d skipped\n",
		total, s.Succeeded, s.Failed, s.Skipped)
	if total > 0 {
		fmt.Printf("Success rate: %.1f%%\n", float64(s.Succeeded)/float64(total)*100)
	}
}

func runInspect() error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(os.Args[2:])
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mobi inspect <file.xdf>")
	}
	out, err := inspect.XDFReport(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runPreprocess(cfg *config.Config, log *zap.Logger) error {
	fs := flag.NewFlagSet("preprocess", flag.ExitOnError)
	subject := fs.String("subject", "", "subject ID, e.g. P01")
	session := fs.String("session", bids.DefaultSession, "session label")
	task := fs.String("task", "", "BIDS task label, e.g. NaturalWalk")
	mode := fs.String("mode", preprocess.ModeFindings, "findings or apply")
	fs.Parse(os.Args[2:])

	if *subject == "" || *task == "" {
		return fmt.Errorf("preprocess requires -subject and -task")
	}
	if *mode != preprocess.ModeFindings && *mode != preprocess.ModeApply {
		return fmt.Errorf("mode must be %q or %q", preprocess.ModeFindings, preprocess.ModeApply)
	}

	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	p := &preprocess.Pipeline{
		BIDSRoot:  cfg.BIDSRoot,
		DerivRoot: cfg.DerivativesDir,
		Registry:  reg,
		Log:       log,
	}
	rep, err := p.Run(*subject, *session, *task, *mode)
	if err != nil {
		return err
	}
	fmt.Print(rep.Render())
	return nil
}

func runReport(cfg *config.Config) error {
	reg, err := registry.Open(cfg.RegistryPath)
	if err != nil {
		return err
	}
	defer reg.Close()

	out, err := inspect.DatasetReport(cfg.BIDSRoot, reg)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}

func runSonify(cfg *config.Config) error {
	fs := flag.NewFlagSet("sonify", flag.ExitOnError)
	subject := fs.String("subject", "", "subject ID")
	session := fs.String("session", bids.DefaultSession, "session label")
	task := fs.String("task", "", "BIDS task label")
	channel := fs.String("channel", "Cz", "channel to export")
	out := fs.String("out", "", "output WAV path")
	rate := fs.Int("rate", sonify.DefaultPlaybackRate, "playback sample rate")
	fs.Parse(os.Args[2:])

	if *subject == "" || *task == "" || *out == "" {
		return fmt.Errorf("sonify requires -subject, -task and -out")
	}

	rec, err := bids.LoadEntry(cfg.BIDSRoot, *subject, *session, *task)
	if err != nil {
		return err
	}
	if err := sonify.Channel(rec, *channel, *out, *rate); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s, %d Hz playback)\n", *out, *channel, *rate)
	return nil
}
