package chart

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
	"github.com/rs/zerolog"

	"github.com/foundry/releasestats/internal/core/models"
	"github.com/foundry/releasestats/internal/core/services"
	"github.com/foundry/releasestats/internal/metrics"
)

const (
	DefaultWidth            = 960
	DefaultHeight           = 480
	DefaultHeadroom         = 1.1
	DefaultSignaturePattern = `\.sig$`

	xTicks = 6
	yTicks = 8
)

type margin struct {
	top, right, bottom, left int
}

var chartMargin = margin{top: 20, right: 20, bottom: 30, left: 50}

// Options control the chart geometry and which assets are drawn.
type Options struct {
	Width     int
	Height    int
	Headroom  float64
	Signature *regexp.Regexp
}

func DefaultOptions() Options {
	return Options{
		Width:     DefaultWidth,
		Height:    DefaultHeight,
		Headroom:  DefaultHeadroom,
		Signature: regexp.MustCompile(DefaultSignaturePattern),
	}
}

// Renderer draws one SVG line chart per repository series.
type Renderer struct {
	opts    Options
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Renderer. Zero-valued options fall back to the defaults;
// m may be nil.
func New(opts Options, m *metrics.Metrics, logger zerolog.Logger) *Renderer {
	def := DefaultOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.Headroom < 1 {
		opts.Headroom = def.Headroom
	}
	if opts.Signature == nil {
		opts.Signature = def.Signature
	}
	return &Renderer{opts: opts, metrics: m, logger: logger}
}

// FileName derives the chart file name of a repository.
func FileName(repo string) string {
	return strings.ReplaceAll(repo, "/", "-") + ".svg"
}

// Renderable reports whether an asset is drawn, i.e. it is not a signature
// companion file.
func (r *Renderer) Renderable(name string) bool {
	return !r.opts.Signature.MatchString(name)
}

// RenderAll renders every repository in set order and writes the charts to
// out. Failed writes are logged and left out of the result.
func (r *Renderer) RenderAll(set *models.SeriesSet, out services.OutputDir) []models.ChartFile {
	var files []models.ChartFile
	for _, repo := range set.Ordered() {
		name := FileName(repo.Name)

		var buf bytes.Buffer
		if err := r.Render(repo, &buf); err != nil {
			r.fail(err, repo.Name, name, "could not render chart")
			continue
		}

		hash, size, err := out.WriteFile(name, &buf)
		if err != nil {
			r.fail(err, repo.Name, name, "could not write chart")
			continue
		}

		r.logger.Info().
			Str("repo", repo.Name).
			Str("file", name).
			Str("hash", hash).
			Int64("size", size).
			Msg("chart written")
		if r.metrics != nil {
			r.metrics.ChartsRendered.Inc()
		}
		files = append(files, models.ChartFile{FileName: name, Title: repo.Name, Hash: hash, Size: size})
	}
	return files
}

func (r *Renderer) fail(err error, repo, file, msg string) {
	r.logger.Error().Err(err).Str("repo", repo).Str("file", file).Msg(msg)
	if r.metrics != nil {
		r.metrics.RenderFailures.Inc()
	}
}

// Render writes the chart of one repository as SVG to w.
func (r *Renderer) Render(repo *models.RepositorySeries, w io.Writer) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)

	width := r.opts.Width - chartMargin.left - chartMargin.right
	height := r.opts.Height - chartMargin.top - chartMargin.bottom
	x := TimeScale{Min: repo.MinTimestamp, Max: repo.MaxTimestamp, Width: width}
	y := LinearScale{Max: float64(repo.MaxValue) * r.opts.Headroom, Height: height}

	var assets []*models.AssetSeries
	for _, a := range repo.OrderedAssets() {
		if !r.Renderable(a.Name) || len(a.Points) == 0 {
			continue
		}
		assets = append(assets, a)
	}

	canvas.Start(r.opts.Width, r.opts.Height)
	canvas.Translate(chartMargin.left, chartMargin.top)

	drawTimeAxis(canvas, x, height)
	drawValueAxis(canvas, y)

	for _, a := range assets {
		drawAsset(canvas, a, ColorFor(a.Name), x, y, width)
	}

	canvas.Gend()
	canvas.End()

	if ew.err != nil {
		return fmt.Errorf("writing chart for %s: %w", repo.Name, ew.err)
	}
	return nil
}

func drawTimeAxis(canvas *svg.SVG, x TimeScale, height int) {
	canvas.Gtransform(fmt.Sprintf("translate(0,%d)", height))
	canvas.Line(0, 0, x.Width, 0, `stroke="#000"`)
	for _, t := range x.Ticks(xTicks) {
		px := x.Map(t)
		canvas.Line(px, 0, px, 6, `stroke="#000"`)
		canvas.Text(px, 18, x.Format(t), `text-anchor="middle"`, `font-family="sans-serif"`, `font-size="10"`)
	}
	canvas.Gend()
}

func drawValueAxis(canvas *svg.SVG, y LinearScale) {
	canvas.Group(`class="axis axis-y"`)
	canvas.Line(0, 0, 0, y.Height, `stroke="#000"`)
	for _, v := range y.Ticks(yTicks) {
		py := y.Map(v)
		canvas.Line(-6, py, 0, py, `stroke="#000"`)
		canvas.Text(-9, py+3, y.Format(v, yTicks), `text-anchor="end"`, `font-family="sans-serif"`, `font-size="10"`)
	}
	canvas.Text(5, 12, "Downloads", `fill="#000"`, `text-anchor="start"`, `font-family="sans-serif"`, `font-size="10"`)
	canvas.Gend()
}

func drawAsset(canvas *svg.SVG, a *models.AssetSeries, color string, x TimeScale, y LinearScale, width int) {
	xs := make([]int, len(a.Points))
	ys := make([]int, len(a.Points))
	for i, p := range a.Points {
		xs[i] = x.Map(p.Timestamp)
		ys[i] = y.Map(float64(p.Value))
	}

	canvas.Polyline(xs, ys,
		`fill="none"`,
		fmt.Sprintf(`stroke="%s"`, color),
		`stroke-linejoin="round"`,
		`stroke-linecap="round"`,
		`stroke-width="1.5"`,
	)

	for i, p := range a.Points {
		canvas.Translate(xs[i], ys[i])
		canvas.Title(strconv.FormatInt(p.Value, 10))
		canvas.Circle(0, 0, 3, fmt.Sprintf(`fill="%s"`, color))
		canvas.Gend()
	}

	last := len(a.Points) - 1
	canvas.Text(width+3, ys[last], a.Name,
		`dy="-.3em"`,
		`text-anchor="end"`,
		`font-family="sans-serif"`,
		`font-size="80%"`,
		fmt.Sprintf(`fill="%s"`, color),
	)
}

// errWriter keeps the first write error so Render can report it after the
// svg package, which ignores errors, is done.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}
