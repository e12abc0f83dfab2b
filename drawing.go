package main

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/grid"
)

const (
	imageWidth  = 800
	imageHeight = 600

	mapLeft = 20
	mapTop  = 70
	mapSize = 510

	legendLeft   = 600
	legendWidth  = 30
	legendTop    = mapTop
	legendHeight = mapSize
)

var parseFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(goregular.TTF)
})

func loadFontFace(size float64) (font.Face, error) {
	f, err := parseFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// drawHeatmap renders g north-up. Colours are normalised to scaleMax so that
// images drawn against the same baseline share a scale.
func drawHeatmap(g *grid.Grid, scaleMax float64, title, subtitle string) (*gg.Context, error) {
	img := image.NewRGBA(image.Rect(0, 0, imageWidth, imageHeight))

	dc := gg.NewContextForRGBA(img)
	dc.SetRGB(1, 1, 1)
	dc.DrawRectangle(0, 0, imageWidth, imageHeight)
	dc.Fill()

	if scaleMax <= 0 {
		scaleMax = g.Max()
	}

	dc.DrawImage(scaleImage(cellImage(g, scaleMax), mapSize, mapSize), mapLeft, mapTop)
	dc.SetHexColor("#444444")
	dc.SetLineWidth(1)
	dc.DrawRectangle(mapLeft, mapTop, mapSize, mapSize)
	dc.Stroke()

	if err := drawImageHeading(dc, title, subtitle); err != nil {
		return nil, err
	}
	if err := drawLegend(dc, scaleMax); err != nil {
		return nil, err
	}
	return dc, nil
}

// cellImage has one pixel per grid cell. Row 0 of the grid is the southern
// edge, so rows are flipped.
func cellImage(g *grid.Grid, scaleMax float64) *image.RGBA {
	rows := len(g.Lats)
	cols := len(g.Lons)
	img := image.NewRGBA(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			img.Set(j, rows-1-i, rampColor(g.Values[i][j]/scaleMax))
		}
	}
	return img
}

func scaleImage(src image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Rect, src, src.Bounds(), draw.Over, nil)
	return dst
}

// rampColor maps [0,1] onto green, yellow, red. Values outside are clamped.
func rampColor(t float64) color.RGBA {
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Max(0, math.Min(1, t))
	var r, g float64
	if t < 0.5 {
		r = t * 2
		g = 1
	} else {
		r = 1
		g = 1 - (t-0.5)*2
	}
	return color.RGBA{
		R: uint8(math.Round(40 + r*215)),
		G: uint8(math.Round(40 + g*180)),
		B: 40,
		A: 255,
	}
}

func drawImageHeading(dc *gg.Context, text string, subtitle string) error {
	dc.SetHexColor("#000000")

	face, err := loadFontFace(22)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	drawStringLeft(dc, text, mapLeft, 10)

	if subtitle == "" {
		return nil
	}
	face, err = loadFontFace(14)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetHexColor("#555555")
	drawStringLeft(dc, subtitle, mapLeft, 42)
	return nil
}

func drawLegend(dc *gg.Context, scaleMax float64) error {
	for y := 0; y < legendHeight; y++ {
		c := rampColor(1 - float64(y)/float64(legendHeight-1))
		dc.SetColor(c)
		dc.DrawRectangle(legendLeft, float64(legendTop+y), legendWidth, 1)
		dc.Fill()
	}
	dc.SetHexColor("#444444")
	dc.DrawRectangle(legendLeft, legendTop, legendWidth, legendHeight)
	dc.Stroke()

	face, err := loadFontFace(13)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetHexColor("#000000")
	for _, f := range []float64{1, 0.75, 0.5, 0.25, 0} {
		y := legendTop + (1-f)*legendHeight
		label := humanize.FormatFloat("#,###.", f*scaleMax)
		_, h := dc.MeasureString(label)
		dc.DrawString(label, legendLeft+legendWidth+8, y+h/2)
	}
	drawStringCentered(dc, "kg CO2/km2/day", legendLeft+legendWidth/2+30, legendTop+legendHeight+15)
	return nil
}

func drawStringCentered(dc *gg.Context, text string, x, y float64) {
	w, h := dc.MeasureString(text)
	dc.DrawString(text, x-w/2, y+h)
}
func drawStringLeft(dc *gg.Context, text string, x, y float64) {
	_, h := dc.MeasureString(text)
	dc.DrawString(text, x, y+h)
}
