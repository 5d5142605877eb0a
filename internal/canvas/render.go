package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"canvasmith/internal/design"
)

// Export formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatSVG  = "svg"
)

// ExportOptions controls the export target. Zero Width/Height keeps the
// document size; Quality only applies to JPEG.
type ExportOptions struct {
	Width   int
	Height  int
	Format  string
	Quality int
}

// Export renders the scene to the requested format.
func Export(s *Scene, assets *Resolved, opts ExportOptions, log zerolog.Logger) ([]byte, error) {
	switch opts.Format {
	case "", FormatPNG, FormatJPEG:
		return renderRaster(s, assets, opts, log)
	case FormatSVG:
		return renderSVG(s, opts)
	default:
		return nil, fmt.Errorf("canvas: unsupported format %q", opts.Format)
	}
}

func renderRaster(s *Scene, assets *Resolved, opts ExportOptions, log zerolog.Logger) ([]byte, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("canvas: scene has no dimensions")
	}
	scale := exportScale(s, opts)
	pw := int(math.Round(float64(s.Width) * scale))
	ph := int(math.Round(float64(s.Height) * scale))

	dc := gg.NewContext(pw, ph)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for _, n := range s.Nodes {
		if err := drawNode(dc, n, assets, scale); err != nil {
			log.Warn().Err(err).Str("operation", n.OperationID).Msg("skipping undrawable node")
		}
	}

	var buf bytes.Buffer
	if opts.Format == FormatJPEG {
		quality := opts.Quality
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		if err := jpeg.Encode(&buf, dc.Image(), &jpeg.Options{Quality: quality}); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// exportScale is the larger of the two axis ratios so the target box is
// fully covered; a smaller target shrinks the output. No target keeps the
// document size.
func exportScale(s *Scene, opts ExportOptions) float64 {
	if opts.Width <= 0 && opts.Height <= 0 {
		return 1
	}
	var scale float64
	if opts.Width > 0 {
		scale = float64(opts.Width) / float64(s.Width)
	}
	if opts.Height > 0 {
		scale = math.Max(scale, float64(opts.Height)/float64(s.Height))
	}
	return scale
}

func drawNode(dc *gg.Context, n Node, assets *Resolved, scale float64) error {
	obj := n.Object
	switch obj.Type {
	case "circle":
		return drawCircle(dc, obj, scale)
	case "text":
		return drawText(dc, obj, scale)
	case "image":
		return drawImage(dc, obj, assets, scale)
	case "svg":
		return drawSVG(dc, obj, assets, scale)
	default:
		// rect and client freehand objects share the box path.
		return drawRect(dc, obj, scale)
	}
}

func drawRect(dc *gg.Context, obj design.Object, scale float64) error {
	w, h := obj.Width*scale, obj.Height*scale
	x0, y0 := topLeft(obj, w, h, scale)

	withRotation(dc, obj, x0+w/2, y0+h/2, func() {
		dc.DrawRectangle(x0, y0, w, h)
		fillPath(dc, obj, x0, y0, w, h)
		strokePath(dc, obj, scale, func() { dc.DrawRectangle(x0, y0, w, h) })
	})
	return nil
}

func drawCircle(dc *gg.Context, obj design.Object, scale float64) error {
	r := obj.Radius * scale
	w := 2 * r
	x0, y0 := topLeft(obj, w, w, scale)
	cx, cy := x0+r, y0+r

	withRotation(dc, obj, cx, cy, func() {
		dc.DrawCircle(cx, cy, r)
		fillPath(dc, obj, x0, y0, w, w)
		strokePath(dc, obj, scale, func() { dc.DrawCircle(cx, cy, r) })
	})
	return nil
}

func drawText(dc *gg.Context, obj design.Object, scale float64) error {
	size := obj.FontSize
	if size <= 0 {
		size = 16
	}
	face, err := textFace(obj.FontWeight, size*scale)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	dc.SetColor(parseColor(obj.Fill, obj.Opacity))

	ax := anchorFraction(obj.OriginX, 0.5)
	ay := anchorFraction(obj.OriginY, 0.5)
	x, y := obj.Left*scale, obj.Top*scale

	withRotation(dc, obj, x, y, func() {
		dc.DrawStringAnchored(obj.Text, x, y, ax, ay)
	})
	return nil
}

func drawImage(dc *gg.Context, obj design.Object, assets *Resolved, scale float64) error {
	img, ok := assets.Images[obj.Src]
	if !ok {
		return fmt.Errorf("image %q not resolved", obj.Src)
	}
	w, h := obj.Width*scale, obj.Height*scale
	x0, y0 := topLeft(obj, w, h, scale)

	bounds := img.Bounds()
	iw, ih := float64(bounds.Dx()), float64(bounds.Dy())
	if iw == 0 || ih == 0 {
		return fmt.Errorf("image %q is empty", obj.Src)
	}

	withRotation(dc, obj, x0+w/2, y0+h/2, func() {
		dc.Push()
		dc.Translate(x0, y0)
		dc.Scale(w/iw, h/ih)
		dc.DrawImage(img, 0, 0)
		dc.Pop()
	})
	return nil
}

func drawSVG(dc *gg.Context, obj design.Object, assets *Resolved, scale float64) error {
	icon, ok := assets.Icons[iconKey(obj.SVGData, obj.Fill)]
	if !ok {
		return fmt.Errorf("svg icon not resolved")
	}
	sx, sy := obj.ScaleX, obj.ScaleY
	if sx <= 0 {
		sx = 1
	}
	if sy <= 0 {
		sy = 1
	}
	w := obj.Width * sx * scale
	h := obj.Height * sy * scale
	x0, y0 := topLeft(obj, w, h, scale)

	pw, ph := int(math.Ceil(w)), int(math.Ceil(h))
	if pw <= 0 || ph <= 0 {
		return fmt.Errorf("svg icon has no area")
	}
	rgba := image.NewRGBA(image.Rect(0, 0, pw, ph))
	icon.SetTarget(0, 0, float64(pw), float64(ph))
	scanner := rasterx.NewScannerGV(pw, ph, rgba, rgba.Bounds())
	icon.Draw(rasterx.NewDasher(pw, ph, scanner), svgOpacity(obj))

	withRotation(dc, obj, x0+w/2, y0+h/2, func() {
		dc.DrawImage(rgba, int(math.Round(x0)), int(math.Round(y0)))
	})
	return nil
}

func svgOpacity(obj design.Object) float64 {
	if obj.Opacity > 0 && obj.Opacity < 1 {
		return obj.Opacity
	}
	return 1
}

// topLeft converts the anchored position into the box's top-left corner in
// pixel space.
func topLeft(obj design.Object, w, h, scale float64) (float64, float64) {
	ax := anchorFraction(obj.OriginX, 0)
	ay := anchorFraction(obj.OriginY, 0)
	return obj.Left*scale - ax*w, obj.Top*scale - ay*h
}

func anchorFraction(origin string, def float64) float64 {
	switch origin {
	case "left", "top":
		return 0
	case "center":
		return 0.5
	case "right", "bottom":
		return 1
	default:
		return def
	}
}

func withRotation(dc *gg.Context, obj design.Object, cx, cy float64, draw func()) {
	if obj.Angle == 0 {
		draw()
		return
	}
	dc.Push()
	dc.RotateAbout(gg.Radians(obj.Angle), cx, cy)
	draw()
	dc.Pop()
}

// fillPath fills the current path with the node's gradient or flat color.
// Gradient coordinates are expressed relative to the shape center.
func fillPath(dc *gg.Context, obj design.Object, x0, y0, w, h float64) {
	if g := obj.Gradient; g != nil && len(g.ColorStops) > 0 {
		cx, cy := x0+w/2, y0+h/2
		var grad gg.Gradient
		if g.Type == "radial" {
			r1, r2 := 0.0, math.Max(w, h)/2
			if g.Coords.R1 != nil {
				r1 = *g.Coords.R1
			}
			if g.Coords.R2 != nil {
				r2 = *g.Coords.R2
			}
			grad = gg.NewRadialGradient(cx+g.Coords.X1, cy+g.Coords.Y1, r1, cx+g.Coords.X2, cy+g.Coords.Y2, r2)
		} else {
			grad = gg.NewLinearGradient(cx+g.Coords.X1, cy+g.Coords.Y1, cx+g.Coords.X2, cy+g.Coords.Y2)
		}
		for _, stop := range g.ColorStops {
			grad.AddColorStop(stop.Offset, parseColor(stop.Color, obj.Opacity))
		}
		dc.SetFillStyle(grad)
		dc.Fill()
		return
	}
	dc.SetColor(parseColor(obj.Fill, obj.Opacity))
	dc.Fill()
}

func strokePath(dc *gg.Context, obj design.Object, scale float64, redraw func()) {
	if obj.Stroke == "" || obj.StrokeWidth <= 0 {
		return
	}
	redraw()
	dc.SetColor(parseColor(obj.Stroke, obj.Opacity))
	dc.SetLineWidth(obj.StrokeWidth * scale)
	dc.Stroke()
}

var textFaces = map[string]*sfnt.Font{}

func init() {
	if f, err := opentype.Parse(goregular.TTF); err == nil {
		textFaces["normal"] = f
	}
	if f, err := opentype.Parse(gobold.TTF); err == nil {
		textFaces["bold"] = f
	}
}

func textFace(weight string, size float64) (font.Face, error) {
	key := "normal"
	if weight == "bold" || weight == "700" || weight == "800" || weight == "900" {
		key = "bold"
	}
	f, ok := textFaces[key]
	if !ok {
		return nil, fmt.Errorf("font %q unavailable", key)
	}
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

var namedColors = map[string]color.RGBA{
	"black":       {0, 0, 0, 255},
	"white":       {255, 255, 255, 255},
	"red":         {255, 0, 0, 255},
	"green":       {0, 128, 0, 255},
	"blue":        {0, 0, 255, 255},
	"transparent": {0, 0, 0, 0},
}

// parseColor understands #rgb, #rrggbb, #rrggbbaa, rgb()/rgba() and a small
// set of names; anything else falls back to opaque black. opacity <= 0 is
// treated as the unset default (fully opaque).
func parseColor(raw string, opacity float64) color.Color {
	if opacity <= 0 || opacity > 1 {
		opacity = 1
	}
	raw = strings.TrimSpace(strings.ToLower(raw))

	c, ok := namedColors[raw]
	if !ok {
		switch {
		case strings.HasPrefix(raw, "#"):
			c, ok = parseHex(raw[1:])
		case strings.HasPrefix(raw, "rgb(") || strings.HasPrefix(raw, "rgba("):
			c, ok = parseRGBFunc(raw)
		}
	}
	if !ok {
		c = color.RGBA{0, 0, 0, 255}
	}
	if opacity < 1 {
		c.A = uint8(math.Round(float64(c.A) * opacity))
	}
	return c
}

func parseHex(hex string) (color.RGBA, bool) {
	parse := func(s string) uint8 {
		v, _ := strconv.ParseUint(s, 16, 8)
		return uint8(v)
	}
	switch len(hex) {
	case 3:
		return color.RGBA{
			R: parse(string([]byte{hex[0], hex[0]})),
			G: parse(string([]byte{hex[1], hex[1]})),
			B: parse(string([]byte{hex[2], hex[2]})),
			A: 255,
		}, true
	case 6:
		return color.RGBA{R: parse(hex[0:2]), G: parse(hex[2:4]), B: parse(hex[4:6]), A: 255}, true
	case 8:
		return color.RGBA{R: parse(hex[0:2]), G: parse(hex[2:4]), B: parse(hex[4:6]), A: parse(hex[6:8])}, true
	default:
		return color.RGBA{}, false
	}
}

func parseRGBFunc(raw string) (color.RGBA, bool) {
	open := strings.Index(raw, "(")
	closeIdx := strings.Index(raw, ")")
	if open < 0 || closeIdx < open {
		return color.RGBA{}, false
	}
	parts := strings.Split(raw[open+1:closeIdx], ",")
	if len(parts) < 3 {
		return color.RGBA{}, false
	}
	channel := func(s string) uint8 {
		v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		return uint8(math.Max(0, math.Min(255, v)))
	}
	c := color.RGBA{R: channel(parts[0]), G: channel(parts[1]), B: channel(parts[2]), A: 255}
	if len(parts) >= 4 {
		a, _ := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		c.A = uint8(math.Max(0, math.Min(1, a)) * 255)
	}
	return c, true
}
