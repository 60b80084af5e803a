package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"cellpick/internal/calibration"
	"cellpick/internal/config"
	"cellpick/internal/extraction"
	"cellpick/internal/imageinfo"
	"cellpick/internal/logger"
	"cellpick/internal/preview"
	"cellpick/internal/project"

	"github.com/pkg/errors"
)

// env is what every command needs after flag parsing.
type env struct {
	cfg config.Config
	log logger.ILogger
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "Preferences file (default: user config dir)")
	level := fs.String("log", "", "Log level override: debug, info, warn, error")
	return fs, cfgPath, level
}

func setup(cfgPath, level string) (*env, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if level != "" {
		cfg.LogLevel = level
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &env{cfg: cfg, log: logger.NewStdErrLogger(cfg.Level())}, nil
}

func fail(stderr io.Writer, err error) int {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return 1
}

func runCalibrate(args []string, stdout, stderr io.Writer) int {
	fs, cfgPath, level := newFlagSet("calibrate", stderr)
	sessionPath := fs.String("session", "", "Session file (created if missing)")
	pixel := fs.String("pixel", "", "Pixel position X,Y")
	stage := fs.String("stage", "", "Stage position X,Y in micrometers")
	label := fs.String("label", "", "Point label")
	reset := fs.Bool("reset", false, "Discard existing calibration points first")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sessionPath == "" || *pixel == "" || *stage == "" {
		fmt.Fprintln(stderr, "Usage: cellpick calibrate -session S -pixel X,Y -stage X,Y [-label L]")
		return 2
	}

	e, err := setup(*cfgPath, *level)
	if err != nil {
		return fail(stderr, err)
	}

	px, py, err := parseIntPair(*pixel)
	if err != nil {
		return fail(stderr, errors.Wrap(err, "-pixel"))
	}
	sx, sy, err := parseFloatPair(*stage)
	if err != nil {
		return fail(stderr, errors.Wrap(err, "-stage"))
	}

	sess, err := project.Load(*sessionPath)
	if os.IsNotExist(errors.Cause(err)) {
		sess = project.New(strings.TrimSuffix(filepath.Base(*sessionPath), project.Extension))
	} else if err != nil {
		return fail(stderr, err)
	}

	tr, err := sess.Transformer(e.cfg.CalibrationOptions(), e.log)
	if err != nil {
		return fail(stderr, err)
	}
	if *reset {
		tr.Clear()
	}
	if err := tr.AddPoint(px, py, sx, sy, *label); err != nil {
		return fail(stderr, err)
	}

	sess.SetCalibration(tr)
	if err := sess.Save(*sessionPath); err != nil {
		return fail(stderr, err)
	}

	printCalibration(stdout, tr.Info())
	return 0
}

func runInfo(args []string, stdout, stderr io.Writer) int {
	fs, cfgPath, level := newFlagSet("info", stderr)
	sessionPath := fs.String("session", "", "Session file")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sessionPath == "" {
		fmt.Fprintln(stderr, "Usage: cellpick info -session S [-json]")
		return 2
	}

	e, err := setup(*cfgPath, *level)
	if err != nil {
		return fail(stderr, err)
	}
	sess, tr, err := openSession(e, *sessionPath)
	if err != nil {
		return fail(stderr, err)
	}

	info := tr.Info()
	if *asJSON {
		return printJSON(stdout, stderr, info)
	}

	fmt.Fprintf(stdout, "Session: %s (%s)\n", sess.Name, sess.ID)
	if img := sess.GetImagePath(*sessionPath); img != "" {
		fmt.Fprintf(stdout, "Image: %s\n", img)
	}
	fmt.Fprintf(stdout, "Cells: %d, selections: %d\n", len(sess.BoundingBoxes), len(sess.Selections))
	printCalibration(stdout, info)
	return 0
}

func runExport(args []string, stdout, stderr io.Writer) int {
	fs, cfgPath, level := newFlagSet("export", stderr)
	sessionPath := fs.String("session", "", "Session file")
	out := fs.String("out", "", "Protocol output path (default: <session>_protocol.txt)")
	imagePath := fs.String("image", "", "Source image (default: the session image)")
	previewPath := fs.String("preview", "", "Write an overlay image of the crops")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sessionPath == "" {
		fmt.Fprintln(stderr, "Usage: cellpick export -session S [-out FILE] [-image PATH] [-preview PNG]")
		return 2
	}

	e, err := setup(*cfgPath, *level)
	if err != nil {
		return fail(stderr, err)
	}
	sess, tr, err := openSession(e, *sessionPath)
	if err != nil {
		return fail(stderr, err)
	}

	img := *imagePath
	if img == "" {
		img = sess.GetImagePath(*sessionPath)
	}
	if img == "" {
		return fail(stderr, errors.New("session has no image; pass -image"))
	}
	info, err := imageinfo.Probe(img)
	if err != nil {
		return fail(stderr, err)
	}

	ex := newExtractor(e)
	bounds := info.Bounds()
	points := ex.CreateExtractionPoints(sess.Selections, sess.BoundingBoxes, tr, &bounds)

	outPath := *out
	if outPath == "" {
		outPath = project.DefaultProtocolPath(*sessionPath)
	}
	backup, err := ex.GenerateProtocolFile(points, outPath, info.ImageInfo)
	if err != nil {
		return fail(stderr, err)
	}

	space := extraction.PixelSpace
	if tr.IsCalibrated() {
		space = extraction.StageSpace
	}
	fmt.Fprintf(stdout, "Wrote %d points (%s space) to %s\n", len(points), space, outPath)
	fmt.Fprintf(stdout, "Backup: %s\n", backup)

	if *previewPath != "" {
		if err := preview.RenderOverlay(img, *previewPath, points); err != nil {
			e.log.Warnf("Preview not written: %v", err)
		} else {
			fmt.Fprintf(stdout, "Preview: %s\n", *previewPath)
		}
	}
	return 0
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	fs, cfgPath, level := newFlagSet("validate", stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Usage: cellpick validate [-json] FILE")
		return 2
	}

	e, err := setup(*cfgPath, *level)
	if err != nil {
		return fail(stderr, err)
	}
	res := newExtractor(e).ValidateProtocolFile(fs.Arg(0))

	if *asJSON {
		if code := printJSON(stdout, stderr, res); code != 0 {
			return code
		}
	} else {
		status := "VALID"
		if !res.IsValid {
			status = "INVALID"
		}
		fmt.Fprintf(stdout, "%s: %d points, %d bytes\n", status, res.PointCount, res.FileSizeBytes)
		for _, msg := range res.Errors {
			fmt.Fprintf(stdout, "  error: %s\n", msg)
		}
		for _, msg := range res.Warnings {
			fmt.Fprintf(stdout, "  warning: %s\n", msg)
		}
	}

	if !res.IsValid {
		return 1
	}
	return 0
}

func runStats(args []string, stdout, stderr io.Writer) int {
	fs, cfgPath, level := newFlagSet("stats", stderr)
	sessionPath := fs.String("session", "", "Session file")
	imagePath := fs.String("image", "", "Source image for crop bounds (default: the session image)")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sessionPath == "" {
		fmt.Fprintln(stderr, "Usage: cellpick stats -session S [-image PATH] [-json]")
		return 2
	}

	e, err := setup(*cfgPath, *level)
	if err != nil {
		return fail(stderr, err)
	}
	sess, tr, err := openSession(e, *sessionPath)
	if err != nil {
		return fail(stderr, err)
	}

	var bounds *extraction.ImageBounds
	img := *imagePath
	if img == "" {
		img = sess.GetImagePath(*sessionPath)
	}
	if img != "" {
		if info, err := imageinfo.Probe(img); err == nil {
			b := info.Bounds()
			bounds = &b
		} else {
			e.log.Warnf("Ignoring image bounds: %v", err)
		}
	}

	ex := newExtractor(e)
	st := ex.Statistics(ex.CreateExtractionPoints(sess.Selections, sess.BoundingBoxes, tr, bounds))
	if *asJSON {
		return printJSON(stdout, stderr, st)
	}

	fmt.Fprintf(stdout, "Points: %d\n", st.TotalPoints)
	fmt.Fprintf(stdout, "Wells: %s\n", strings.Join(st.UniqueWells, ", "))
	for _, w := range st.UniqueWells {
		fmt.Fprintf(stdout, "  %-6s %d\n", w, st.PointsPerWell[w])
	}
	fmt.Fprintf(stdout, "Colors: %s\n", strings.Join(st.UniqueColors, ", "))
	fmt.Fprintf(stdout, "Crop size: mean %.2f, std %.2f, min %.2f, max %.2f\n",
		st.CropSize.Mean, st.CropSize.Std, st.CropSize.Min, st.CropSize.Max)
	return 0
}

func openSession(e *env, path string) (*project.File, *calibration.Transformer, error) {
	sess, err := project.Load(path)
	if err != nil {
		return nil, nil, err
	}
	tr, err := sess.Transformer(e.cfg.CalibrationOptions(), e.log)
	if err != nil {
		return nil, nil, err
	}
	return sess, tr, nil
}

func newExtractor(e *env) *extraction.Extractor {
	ex := extraction.NewExtractor(e.cfg.ExtractionOptions())
	ex.SetLogger(e.log)
	return ex
}

func printCalibration(w io.Writer, info calibration.Info) {
	fmt.Fprintf(w, "Calibration points: %d/2\n", info.PointCount)
	for i, p := range info.Points {
		fmt.Fprintf(w, "  [%d] pixel (%d, %d) -> stage (%.3f, %.3f) %s\n",
			i, p.PixelX, p.PixelY, p.StageX, p.StageY, p.Label)
	}
	if !info.Calibrated {
		fmt.Fprintln(w, "Calibrated: no")
		return
	}
	fmt.Fprintln(w, "Calibrated: yes")
	fmt.Fprintf(w, "Scale: %.6f um/px\n", info.ScaleUMPerPixel)
	fmt.Fprintf(w, "Rotation: %.4f°\n", info.RotationDegrees)
	fmt.Fprintf(w, "Error: avg %.4f um, max %.4f um\n", info.Quality.AverageErrorUM, info.Quality.MaxErrorUM)
	fmt.Fprintf(w, "Confidence: %.3f (target met: %v)\n", info.Quality.Confidence, info.Quality.MeetsAccuracyTarget)
}

func printJSON(stdout, stderr io.Writer, v interface{}) int {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fail(stderr, err)
	}
	return 0
}

func parseIntPair(s string) (int, int, error) {
	a, b, err := splitPair(s)
	if err != nil {
		return 0, 0, err
	}
	x, err := strconv.Atoi(a)
	if err != nil {
		return 0, 0, errors.Errorf("invalid integer %q", a)
	}
	y, err := strconv.Atoi(b)
	if err != nil {
		return 0, 0, errors.Errorf("invalid integer %q", b)
	}
	return x, y, nil
}

func parseFloatPair(s string) (float64, float64, error) {
	a, b, err := splitPair(s)
	if err != nil {
		return 0, 0, err
	}
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, errors.Errorf("invalid number %q", a)
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, errors.Errorf("invalid number %q", b)
	}
	return x, y, nil
}

func splitPair(s string) (string, string, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return "", "", errors.Errorf("expected X,Y, got %q", s)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}
