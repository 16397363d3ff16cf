// Command inspect runs one inspection cycle on a captured frame and reports
// the verdict. Intended for bench use and station bring-up; the production
// line drives the engine through the library API.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/frame"
	"chipaoi/internal/inspect"
	"chipaoi/internal/symbol"
	"chipaoi/internal/version"
)

func main() {
	_ = godotenv.Load()

	framePath := flag.String("frame", "", "Path to captured frame (TIFF, PNG or JPEG)")
	configPath := flag.String("config", envOr("CHIPAOI_CONFIG", ""), "Path to station config JSON")
	teachPath := flag.String("teach", envOr("CHIPAOI_TEACH", ""), "Path to taught geometry JSON")
	station := flag.String("station", "chip", "Station kind: chip or feed")
	templateDir := flag.String("templates", "", "Symbol template directory (optional)")
	overlayPath := flag.String("overlay", "", "Write annotated overlay image here (optional)")
	useOCR := flag.Bool("ocr", false, "Cross-check recognized marks with Tesseract")
	stepMode := flag.Bool("step", false, "Interactive step mode: review failing checks on stdin")
	verbose := flag.Bool("v", false, "Debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("chipaoi %s (%s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
		return
	}
	if *framePath == "" || *configPath == "" || *teachPath == "" {
		fmt.Println("Usage: inspect -frame <path> -config <path> -teach <path> [-station chip|feed] [-templates <dir>] [-step]")
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	cfg, err := config.LoadInspection(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	teach, err := config.LoadTeach(*teachPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load teach data")
	}

	kind := config.StationChip
	if *station == "feed" {
		kind = config.StationFeed
	}

	opts := []inspect.Option{inspect.WithLogger(log)}
	if *templateDir != "" {
		lib, err := symbol.LoadLibrary(*templateDir)
		if err != nil {
			log.Fatal().Err(err).Msg("load symbol templates")
		}
		defer lib.Close()
		opts = append(opts, inspect.WithSymbolLibrary(lib))
	}
	if *useOCR {
		reader, err := symbol.NewTesseractReader()
		if err != nil {
			log.Fatal().Err(err).Msg("init ocr reader")
		}
		defer reader.Close()
		opts = append(opts, inspect.WithSymbolReader(reader))
	}
	if *stepMode {
		opts = append(opts, inspect.WithCalibrator(consoleCalibrator{}))
	}

	engine, err := inspect.NewEngine(*cfg, teach, kind, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("build engine")
	}

	f, err := frame.Load(*framePath)
	if err != nil {
		log.Fatal().Err(err).Msg("load frame")
	}
	defer f.Close()

	res := engine.Inspect(f)
	defer res.Close()

	fmt.Printf("Verdict: %s\n", res.Verdict)
	if res.FailedCheck != "" {
		fmt.Printf("Failed check: %s\n", res.FailedCheck)
	}
	if res.Message != "" {
		fmt.Printf("Detail: %s\n", res.Message)
	}
	fmt.Printf("Package: detected=%v rect=%+v confidence=%d method=%s\n",
		res.Package.Detected, res.Package.Rect, res.Package.Confidence, res.Package.Method)
	if kind == config.StationFeed {
		fmt.Printf("Pocket: detected=%v rect=%+v\n", res.Pocket.Detected, res.Pocket.Rect)
		fmt.Printf("Shift: %s\n", shiftSummary(engine))
	}
	for _, chk := range res.Checks {
		status := "PASS"
		if chk.Skipped {
			status = "SKIP"
		} else if !chk.Pass {
			status = "FAIL"
		}
		fmt.Printf("  %-22s %s  %s\n", chk.Name, status, chk.Detail)
	}

	if *overlayPath != "" {
		if ok := gocv.IMWrite(*overlayPath, res.Overlay); !ok {
			log.Error().Str("path", *overlayPath).Msg("write overlay failed")
		}
	}

	if res.Verdict != inspect.Pass {
		os.Exit(1)
	}
}

func shiftSummary(e *inspect.Engine) string {
	s := e.Shift()
	return s.Summary()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// consoleCalibrator reviews step-mode suggestions on stdin.
type consoleCalibrator struct{}

func (consoleCalibrator) Review(s inspect.StepSuggestion) bool {
	fmt.Printf("\nCheck %q failed: %s\n", s.Check, s.Reason)
	if s.Parameter != "" {
		fmt.Printf("Suggested adjustment: %s %d -> %d\n", s.Parameter, s.Current, s.Suggested)
	}
	if s.Measured > 0 {
		fmt.Printf("Measured %.1f, expected [%.1f, %.1f]; accepting range [%.1f, %.1f]\n",
			s.Measured, s.ExpectedMin, s.ExpectedMax, s.SuggestedMin, s.SuggestedMax)
	}
	fmt.Print("Continue cycle? [y/N] ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
