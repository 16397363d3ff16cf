// Command teach captures TeachData from a reference frame: the operator
// supplies nominal package (and pocket) rects, the tool refines the package
// location and samples the intensity baselines the drift checks compare
// against in production.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"chipaoi/internal/config"
	"chipaoi/internal/defect"
	"chipaoi/internal/frame"
	"chipaoi/internal/imgproc"
	"chipaoi/internal/locate"
	"chipaoi/pkg/geometry"
)

func main() {
	framePath := flag.String("frame", "", "Path to reference frame of a known-good part")
	outPath := flag.String("out", "", "Teach JSON output path")
	packageSpec := flag.String("package", "", "Nominal package rect as x,y,w,h")
	pocketSpec := flag.String("pocket", "", "Nominal pocket rect as x,y,w,h (feed stations)")
	reversePath := flag.String("reverse-frame", "", "Frame of a flipped part, for the reverse baseline (optional)")
	refine := flag.Bool("refine", true, "Refine the package rect by detection before sampling")
	contrast := flag.Int("contrast", 30, "Detection contrast for the refine pass")
	darkBody := flag.Bool("dark", false, "Body is darker than the tape")
	sealBand := flag.Int("seal-band", 16, "Seal band height above the pocket, for the seal baseline")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *framePath == "" || *outPath == "" || *packageSpec == "" {
		fmt.Println("Usage: teach -frame <path> -out <teach.json> -package x,y,w,h [-pocket x,y,w,h] [-reverse-frame <path>]")
		os.Exit(1)
	}

	pkg, err := parseRect(*packageSpec)
	if err != nil {
		log.Fatal().Err(err).Msg("parse package rect")
	}

	f, err := frame.Load(*framePath)
	if err != nil {
		log.Fatal().Err(err).Msg("load frame")
	}
	defer f.Close()
	gray := f.Gray()

	teach := config.TeachData{Package: pkg}

	if *refine {
		seed := config.TeachData{Package: pkg}
		cfg := config.PackageLocateConfig{
			Contrast: config.Set(*contrast),
			BodyDark: *darkBody,
		}
		res := locate.LocatePackage(gray, seed, cfg, log)
		if res.Detected {
			log.Info().
				Str("method", res.Method).
				Int("confidence", res.Confidence).
				Msg("package rect refined")
			teach.Package = res.Rect
		} else {
			log.Warn().Str("detail", res.Message).Msg("refine failed, keeping nominal rect")
		}
	}

	if *pocketSpec != "" {
		pocket, err := parseRect(*pocketSpec)
		if err != nil {
			log.Fatal().Err(err).Msg("parse pocket rect")
		}
		teach.Pocket = pocket
	}

	sampleBaselines(gray, &teach, *sealBand)

	if *reversePath != "" {
		rf, err := frame.Load(*reversePath)
		if err != nil {
			log.Fatal().Err(err).Msg("load reverse frame")
		}
		center := defect.CenterZone(teach.Package).ClampTo(rf.Width(), rf.Height())
		if center.Valid() {
			teach.ReverseMean = imgproc.MeanLevelRect(rf.Gray(), center.X, center.Y, center.Width, center.Height)
		}
		rf.Close()
	}

	if err := config.SaveTeach(*outPath, teach); err != nil {
		log.Fatal().Err(err).Msg("write teach data")
	}

	fmt.Printf("Package: %+v\n", teach.Package)
	if teach.HasPocket() {
		fmt.Printf("Pocket:  %+v\n", teach.Pocket)
	}
	fmt.Printf("Baselines: body=%.0f terminal=%.0f seal=%.0f reverse=%.0f\n",
		teach.BodyMean, teach.TerminalMean, teach.SealMean, teach.ReverseMean)
	fmt.Printf("Wrote %s\n", *outPath)
}

// sampleBaselines fills the intensity references from the located geometry:
// body mean from the terminal-free center zone, terminal mean averaged over
// both end zones, seal mean from the band above the pocket.
func sampleBaselines(gray gocv.Mat, teach *config.TeachData, sealBand int) {
	w, h := gray.Cols(), gray.Rows()

	center := defect.CenterZone(teach.Package).ClampTo(w, h)
	if center.Valid() {
		teach.BodyMean = imgproc.MeanLevelRect(gray, center.X, center.Y, center.Width, center.Height)
	}

	left, right := defect.TerminalZones(teach.Package)
	left = left.ClampTo(w, h)
	right = right.ClampTo(w, h)
	switch {
	case left.Valid() && right.Valid():
		lm := imgproc.MeanLevelRect(gray, left.X, left.Y, left.Width, left.Height)
		rm := imgproc.MeanLevelRect(gray, right.X, right.Y, right.Width, right.Height)
		teach.TerminalMean = (lm + rm) / 2
	case left.Valid():
		teach.TerminalMean = imgproc.MeanLevelRect(gray, left.X, left.Y, left.Width, left.Height)
	case right.Valid():
		teach.TerminalMean = imgproc.MeanLevelRect(gray, right.X, right.Y, right.Width, right.Height)
	}

	if teach.HasPocket() && sealBand > 0 {
		band := geometry.NewRect(teach.Pocket.X, teach.Pocket.Y-sealBand, teach.Pocket.Width, sealBand).ClampTo(w, h)
		if band.Valid() {
			teach.SealMean = imgproc.MeanLevelRect(gray, band.X, band.Y, band.Width, band.Height)
		}
	}
}

func parseRect(spec string) (geometry.Rect, error) {
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return geometry.Rect{}, fmt.Errorf("rect %q: want x,y,w,h", spec)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return geometry.Rect{}, fmt.Errorf("rect %q: %w", spec, err)
		}
		vals[i] = v
	}
	r := geometry.NewRect(vals[0], vals[1], vals[2], vals[3])
	if !r.Valid() {
		return geometry.Rect{}, fmt.Errorf("rect %q: width and height must be positive", spec)
	}
	return r, nil
}
