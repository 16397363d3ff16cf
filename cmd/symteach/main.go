// Command symteach manages the laser-mark template library: extract mode
// cuts mark character templates out of a reference frame, match mode replays
// recognition against an existing library to tune the accept score.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/frame"
	"chipaoi/internal/imgproc"
	"chipaoi/internal/symbol"
)

func main() {
	framePath := flag.String("frame", "", "Path to reference frame")
	teachPath := flag.String("teach", "", "Path to taught geometry JSON")
	templateDir := flag.String("templates", "", "Template directory")
	extract := flag.Bool("extract", false, "Extract mode: cut mark blobs into the template directory")
	names := flag.String("names", "", "Extract mode: comma-separated character names, left to right")
	contrast := flag.Int("contrast", 20, "Mark blob threshold delta above the body mean")
	minArea := flag.Int("min-area", 10, "Minimum mark blob area in pixels")
	accept := flag.Int("accept", 70, "Match mode: accept score percentage")
	expected := flag.String("expected", "", "Match mode: expected sequence to verify")
	flag.Parse()

	if *framePath == "" || *teachPath == "" || *templateDir == "" {
		fmt.Println("Usage: symteach -frame <path> -teach <path> -templates <dir> [-extract -names A,B,C] [-expected SEQ]")
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	teach, err := config.LoadTeach(*teachPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load teach data")
	}
	if !teach.HasPackage() {
		log.Fatal().Msg("teach data has no package rect")
	}

	f, err := frame.Load(*framePath)
	if err != nil {
		log.Fatal().Err(err).Msg("load frame")
	}
	defer f.Close()

	if *extract {
		if err := extractTemplates(f, teach, *templateDir, *names, *contrast, *minArea); err != nil {
			log.Fatal().Err(err).Msg("extract templates")
		}
		return
	}

	lib, err := symbol.LoadLibrary(*templateDir)
	if err != nil {
		log.Fatal().Err(err).Msg("load template library")
	}
	defer lib.Close()

	cfg := config.SymbolConfig{
		Enabled:     true,
		Expected:    *expected,
		AcceptScore: config.Set(*accept),
		Contrast:    config.Set(*contrast),
		MinArea:     config.Set(*minArea),
	}

	res := symbol.Match(f.Gray(), teach.Package, lib, cfg)
	if !res.Recognized {
		fmt.Printf("No mark recognized: %s\n", res.Message)
		os.Exit(1)
	}
	fmt.Printf("Sequence: %s\n", res.Sequence)
	for _, c := range res.Chars {
		fmt.Printf("  %-4s %.1f%%  at %+v\n", c.Name, c.Score, c.Bounds)
	}
	if *expected != "" {
		if res.Verified {
			fmt.Println("Verification: OK")
		} else {
			fmt.Printf("Verification: MISMATCH (%s)\n", res.Message)
			os.Exit(1)
		}
	}
}

// extractTemplates thresholds the mark window, orders the blobs left to right
// and writes one template image per named character.
func extractTemplates(f *frame.Frame, teach config.TeachData, dir, names string, contrast, minArea int) error {
	nameList := strings.Split(names, ",")
	if names == "" || len(nameList) == 0 {
		return fmt.Errorf("extract mode needs -names")
	}

	gray := f.Gray()
	body := teach.Package.ClampTo(gray.Cols(), gray.Rows())
	roi := gray.Region(body.ToImage())
	defer roi.Close()

	mean := imgproc.MeanLevel(roi)
	threshold := int(mean) + contrast
	if threshold > 255 {
		threshold = 255
	}
	bin := imgproc.Binarize(roi, threshold, imgproc.Light)
	defer bin.Close()
	imgproc.CleanBinary(&bin, 3, 0)

	blobs := imgproc.FilterBlobs(imgproc.FindBlobs(bin), minArea, 0, imgproc.CombineOr)
	if len(blobs) < len(nameList) {
		return fmt.Errorf("found %d mark blobs, need %d", len(blobs), len(nameList))
	}

	// Keep the largest blobs (FindBlobs sorts by area), then order them
	// left to right to pair with the names.
	blobs = blobs[:len(nameList)]
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Bounds.X < blobs[j].Bounds.X })

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for i, b := range blobs {
		bounds := b.Bounds.Inflate(2, 2, 2, 2).ClampTo(roi.Cols(), roi.Rows())
		patch := roi.Region(bounds.ToImage())
		path := filepath.Join(dir, strings.TrimSpace(nameList[i])+".png")
		ok := gocv.IMWrite(path, patch)
		patch.Close()
		if !ok {
			return fmt.Errorf("write template %s", path)
		}
		fmt.Printf("Wrote %s (%dx%d)\n", path, bounds.Width, bounds.Height)
	}
	return nil
}
