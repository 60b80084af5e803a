// Command calibcheck loads a session's calibration and prints per-point
// residuals and a pixel->stage->pixel round-trip grid.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"cellpick/internal/calibration"
	"cellpick/internal/config"
	"cellpick/internal/imageinfo"
	"cellpick/internal/logger"
	"cellpick/internal/project"
)

func main() {
	sessionPath := flag.String("s", "", "Path to session file")
	cfgPath := flag.String("config", "", "Preferences file")
	steps := flag.Int("grid", 5, "Grid points per axis for the round-trip check")
	width := flag.Int("w", 0, "Image width (default: probed from the session image)")
	height := flag.Int("h", 0, "Image height (default: probed from the session image)")
	flag.Parse()

	if *sessionPath == "" {
		fmt.Println("Usage: calibcheck -s <session> [-grid N] [-w W -h H]")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	sess, err := project.Load(*sessionPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load session: %v\n", err)
		os.Exit(1)
	}
	tr, err := sess.Transformer(cfg.CalibrationOptions(), logger.NewStdErrLogger(cfg.Level()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to restore calibration: %v\n", err)
		os.Exit(1)
	}
	if !tr.IsCalibrated() {
		fmt.Fprintf(os.Stderr, "Session is not calibrated (%d/2 points)\n", len(tr.Points()))
		os.Exit(1)
	}

	fwd, _ := tr.Transform()
	q, _ := tr.Quality()
	fmt.Printf("=== Calibration: %s ===\n", sess.Name)
	fmt.Printf("Scale: %.6f um/px\n", fwd.ScaleFactor())
	fmt.Printf("Rotation: %.4f°\n", fwd.RotationDegrees())
	fmt.Printf("Translation: (%.3f, %.3f) um\n", fwd.TX, fwd.TY)
	fmt.Printf("Avg error: %.4f um\n", q.AverageErrorUM)
	fmt.Printf("Max error: %.4f um\n", q.MaxErrorUM)
	fmt.Printf("Confidence: %.3f\n", q.Confidence)

	printResiduals(tr)

	w, h := *width, *height
	if w == 0 || h == 0 {
		if img := sess.GetImagePath(*sessionPath); img != "" {
			if info, err := imageinfo.Probe(img); err == nil {
				w, h = info.Width, info.Height
			}
		}
	}
	if w == 0 || h == 0 {
		fmt.Println("\nNo image size; skipping round-trip grid (use -w/-h).")
		return
	}
	printRoundTrip(tr, w, h, *steps)
}

func printResiduals(tr *calibration.Transformer) {
	fmt.Printf("\nPer-point residuals:\n")
	for i, p := range tr.Points() {
		res, ok := tr.PixelToStage(float64(p.PixelX), float64(p.PixelY))
		if !ok {
			continue
		}
		dx := res.StageX - p.StageX
		dy := res.StageY - p.StageY
		fmt.Printf("  [%d] px=(%5d,%5d) stage=(%10.3f,%10.3f)  err=%.4f um %s\n",
			i, p.PixelX, p.PixelY, p.StageX, p.StageY, math.Hypot(dx, dy), p.Label)
	}
}

func printRoundTrip(tr *calibration.Transformer, w, h, steps int) {
	if steps < 2 {
		steps = 2
	}
	fmt.Printf("\nRound trip over %dx%d grid (%dx%d image):\n", steps, steps, w, h)
	worst := 0.0
	for iy := 0; iy < steps; iy++ {
		for ix := 0; ix < steps; ix++ {
			x := float64(ix) * float64(w-1) / float64(steps-1)
			y := float64(iy) * float64(h-1) / float64(steps-1)
			res, ok := tr.PixelToStage(x, y)
			if !ok {
				continue
			}
			back, ok := tr.StageToPixel(res.StageX, res.StageY)
			if !ok {
				continue
			}
			d := math.Hypot(float64(back.X)-x, float64(back.Y)-y)
			worst = math.Max(worst, d)
			fmt.Printf("  X=%6.0f Y=%6.0f -> (%10.2f,%10.2f) -> (%d,%d)  off=%.2f px\n",
				x, y, res.StageX, res.StageY, back.X, back.Y, d)
		}
	}
	fmt.Printf("Worst round-trip offset: %.2f px\n", worst)
}
