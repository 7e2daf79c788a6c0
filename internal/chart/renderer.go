package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"time-to-sell/internal/domain"
	"time-to-sell/internal/series"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartPoints     = 1300
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colClose      = color.RGBA{R: 58, G: 64, B: 90, A: 255}
	colMA20       = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colMA60       = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colMA200      = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colCost       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colBand       = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colAbove      = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colBelow      = color.RGBA{R: 18, G: 140, B: 126, A: 255}
)

// Options controls what is drawn on a price chart.
type Options struct {
	Window  series.Window
	AvgCost float64 // horizontal cost line when > 0
	ScoreMA int     // moving average used for the deviation panel
}

// Image is an encoded chart.
type Image struct {
	MimeType string
	Width    int
	Height   int
	Bytes    []byte
}

type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderPriceChart draws close and the 20/60/200-day averages over the
// window, with the close's percentage deviation from the scoring average in
// the lower panel.
func (r *Renderer) RenderPriceChart(points []domain.PricePoint, opts Options) (*Image, error) {
	window := opts.Window
	if window.Name == "" && window.Start.IsZero() {
		window = series.Window1Y
	}
	pts := series.Slice(points, window)
	if len(pts) < 2 {
		return nil, fmt.Errorf("need at least 2 points to render chart")
	}
	if len(pts) > maxChartPoints {
		pts = pts[len(pts)-maxChartPoints:]
	}

	img := image.NewRGBA(image.Rect(0, 0, defaultChartWidth, defaultChartHeight))
	fillRect(img, img.Bounds(), colBackground)

	mainRect := image.Rect(60, 20, defaultChartWidth-20, (defaultChartHeight*72)/100)
	auxRect := image.Rect(60, mainRect.Max.Y+16, defaultChartWidth-20, defaultChartHeight-30)
	drawGrid(img, mainRect, 8, 6)
	drawGrid(img, auxRect, 8, 3)

	closes := extractCloses(pts)
	ma20 := extractMA(pts, 20)
	ma60 := extractMA(pts, 60)
	ma200 := extractMA(pts, 200)

	minV, maxV := combinedBounds(closes, ma20, ma60, ma200)
	if opts.AvgCost > 0 {
		minV = math.Min(minV, opts.AvgCost)
		maxV = math.Max(maxV, opts.AvgCost)
	}
	drawSeries(img, mainRect, ma200, minV, maxV, colMA200)
	drawSeries(img, mainRect, ma60, minV, maxV, colMA60)
	drawSeries(img, mainRect, ma20, minV, maxV, colMA20)
	drawSeries(img, mainRect, closes, minV, maxV, colClose)
	if opts.AvgCost > 0 {
		drawHorizontalValueLine(img, mainRect, opts.AvgCost, minV, maxV, colCost)
	}

	markerX := mapIndexToX(len(pts)-1, len(pts), mainRect)
	drawLine(img, markerX, mainRect.Min.Y, markerX, mainRect.Max.Y, colBand)

	drawDeviation(img, auxRect, closes, extractMA(pts, opts.ScoreMA))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return &Image{
		MimeType: "image/png",
		Width:    defaultChartWidth,
		Height:   defaultChartHeight,
		Bytes:    buf.Bytes(),
	}, nil
}

// drawDeviation renders (close/ma - 1) in percent as bars around zero.
func drawDeviation(img *image.RGBA, rect image.Rectangle, closes, ma []float64) {
	dev := deviationSeries(closes, ma)
	minV, maxV := finiteBounds(dev)
	if minV > 0 {
		minV = 0
	}
	if maxV < 0 {
		maxV = 0
	}
	if minV == maxV {
		maxV = minV + 1
	}
	drawHorizontalValueLine(img, rect, 0, minV, maxV, colBand)

	above := make([]float64, len(dev))
	below := make([]float64, len(dev))
	for i, v := range dev {
		above[i], below[i] = math.NaN(), math.NaN()
		switch {
		case math.IsNaN(v):
		case v >= 0:
			above[i] = v
		default:
			below[i] = v
		}
	}
	drawBars(img, rect, above, minV, maxV, colAbove)
	drawBars(img, rect, below, minV, maxV, colBelow)
}

func deviationSeries(closes, ma []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		out[i] = math.NaN()
		if i >= len(ma) || math.IsNaN(ma[i]) || ma[i] == 0 {
			continue
		}
		out[i] = (closes[i]/ma[i] - 1) * 100
	}
	return out
}

func extractCloses(points []domain.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i := range points {
		out[i] = points[i].Close
	}
	return out
}

// extractMA returns the server-provided average for period, NaN where absent.
func extractMA(points []domain.PricePoint, period int) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		var v *float64
		switch period {
		case 20:
			v = p.MA20
		case 60:
			v = p.MA60
		default:
			v = p.MA200
		}
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	return out
}

func combinedBounds(all ...[]float64) (float64, float64) {
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, values := range all {
		for _, v := range values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
		}
	}
	if math.IsInf(minV, 1) {
		return 0, 1
	}
	if minV == maxV {
		return minV, maxV + 1
	}
	return minV, maxV
}

func drawSeries(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	lastX, lastY := -1, -1
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			lastX, lastY = -1, -1
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		if lastX >= 0 {
			drawLine(img, lastX, lastY, x, y, col)
		}
		lastX, lastY = x, y
	}
}

func drawBars(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	barW := max(1, (rect.Dx()-10)/len(series)-1)
	zeroY := mapValueToY(0, minV, maxV, rect)
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		top := min(y, zeroY)
		bottom := max(y, zeroY)
		fillRect(img, image.Rect(x-barW/2, top, x+barW/2+1, bottom+1), col)
	}
}

func drawGrid(img *image.RGBA, rect image.Rectangle, verticalLines, horizontalLines int) {
	for i := 0; i <= verticalLines; i++ {
		x := rect.Min.X + (rect.Dx()*i)/max(1, verticalLines)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colGrid)
	}
	for i := 0; i <= horizontalLines; i++ {
		y := rect.Min.Y + (rect.Dy()*i)/max(1, horizontalLines)
		drawLine(img, rect.Min.X, y, rect.Max.X, y, colGrid)
	}
}

func drawHorizontalValueLine(img *image.RGBA, rect image.Rectangle, value, minV, maxV float64, col color.RGBA) {
	y := mapValueToY(value, minV, maxV, rect)
	drawLine(img, rect.Min.X, y, rect.Max.X, y, col)
}

func mapIndexToX(idx, total int, rect image.Rectangle) int {
	if total <= 1 {
		return rect.Min.X
	}
	return rect.Min.X + (idx*(rect.Dx()-1))/(total-1)
}

func mapValueToY(value, minV, maxV float64, rect image.Rectangle) int {
	if maxV <= minV {
		return rect.Max.Y
	}
	ratio := (value - minV) / (maxV - minV)
	ratio = math.Max(0, math.Min(1, ratio))
	return rect.Max.Y - int(ratio*float64(rect.Dy()-1))
}

func finiteBounds(values []float64) (float64, float64) {
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if math.IsInf(minV, 1) || math.IsInf(maxV, -1) {
		return 0, 1
	}
	if minV == maxV {
		return minV, maxV + 1
	}
	return minV, maxV
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
