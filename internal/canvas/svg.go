package canvas

import (
	"fmt"
	"strings"

	"canvasmith/internal/design"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// renderSVG writes the scene as standalone SVG markup. Coordinates stay in
// document space; the export size is carried by width/height on the root.
func renderSVG(s *Scene, opts ExportOptions) ([]byte, error) {
	if s.Width <= 0 || s.Height <= 0 {
		return nil, fmt.Errorf("canvas: scene has no dimensions")
	}
	tw, th := opts.Width, opts.Height
	if tw <= 0 {
		tw = s.Width
	}
	if th <= 0 {
		th = s.Height
	}

	var defs, body strings.Builder
	gradients := 0

	for _, n := range s.Nodes {
		obj := n.Object
		fill := svgFill(&defs, &gradients, obj)
		transform := svgTransform(obj)

		switch obj.Type {
		case "circle":
			fmt.Fprintf(&body, `  <circle cx="%g" cy="%g" r="%g" %s%s%s/>`+"\n",
				centerX(obj), centerY(obj), obj.Radius, fill, strokeAttrs(obj), transform)
		case "text":
			fmt.Fprintf(&body, `  <text x="%g" y="%g" font-size="%g" font-family=%q font-weight=%q text-anchor=%q dominant-baseline=%q %s%s>%s</text>`+"\n",
				obj.Left, obj.Top,
				orFloat(obj.FontSize, 16), orString(obj.FontFamily, "Arial"), orString(obj.FontWeight, "normal"),
				textAnchor(obj.OriginX), baseline(obj.OriginY), fill, transform, xmlEscaper.Replace(obj.Text))
		case "image":
			x0, y0 := topLeft(obj, obj.Width, obj.Height, 1)
			fmt.Fprintf(&body, `  <image href=%q x="%g" y="%g" width="%g" height="%g"%s%s/>`+"\n",
				obj.Src, x0, y0, obj.Width, obj.Height, opacityAttr(obj), transform)
		case "svg":
			sx, sy := orFloat(obj.ScaleX, 1), orFloat(obj.ScaleY, 1)
			x0, y0 := topLeft(obj, obj.Width*sx, obj.Height*sy, 1)
			fmt.Fprintf(&body, `  <g transform="translate(%g %g) scale(%g %g)"%s>`+"\n    %s\n  </g>\n",
				x0, y0, sx, sy, opacityAttr(obj), recolorSVG(obj.SVGData, obj.Fill))
		default:
			x0, y0 := topLeft(obj, obj.Width, obj.Height, 1)
			fmt.Fprintf(&body, `  <rect x="%g" y="%g" width="%g" height="%g" %s%s%s/>`+"\n",
				x0, y0, obj.Width, obj.Height, fill, strokeAttrs(obj), transform)
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`+"\n", s.Width, s.Height, tw, th)
	if defs.Len() > 0 {
		out.WriteString("  <defs>\n")
		out.WriteString(defs.String())
		out.WriteString("  </defs>\n")
	}
	fmt.Fprintf(&out, `  <rect width="%d" height="%d" fill="#ffffff"/>`+"\n", s.Width, s.Height)
	out.WriteString(body.String())
	out.WriteString("</svg>\n")
	return []byte(out.String()), nil
}

// svgFill returns the fill attribute, registering a gradient def when the
// node carries one. Gradient coordinates are center-relative in the
// document, so the def uses userSpaceOnUse with absolute coordinates.
func svgFill(defs *strings.Builder, gradients *int, obj design.Object) string {
	g := obj.Gradient
	if g == nil || len(g.ColorStops) == 0 {
		return fmt.Sprintf(`fill=%q%s`, orString(obj.Fill, "#000000"), opacityAttr(obj))
	}

	*gradients++
	id := fmt.Sprintf("grad-%d", *gradients)
	cx, cy := centerX(obj), centerY(obj)

	if g.Type == "radial" {
		r := maxBoxHalf(obj)
		if g.Coords.R2 != nil {
			r = *g.Coords.R2
		}
		fmt.Fprintf(defs, `    <radialGradient id=%q gradientUnits="userSpaceOnUse" cx="%g" cy="%g" r="%g">`+"\n",
			id, cx+g.Coords.X2, cy+g.Coords.Y2, r)
	} else {
		fmt.Fprintf(defs, `    <linearGradient id=%q gradientUnits="userSpaceOnUse" x1="%g" y1="%g" x2="%g" y2="%g">`+"\n",
			id, cx+g.Coords.X1, cy+g.Coords.Y1, cx+g.Coords.X2, cy+g.Coords.Y2)
	}
	for _, stop := range g.ColorStops {
		fmt.Fprintf(defs, `      <stop offset="%g" stop-color=%q/>`+"\n", stop.Offset, stop.Color)
	}
	if g.Type == "radial" {
		defs.WriteString("    </radialGradient>\n")
	} else {
		defs.WriteString("    </linearGradient>\n")
	}
	return fmt.Sprintf(`fill="url(#%s)"%s`, id, opacityAttr(obj))
}

func svgTransform(obj design.Object) string {
	if obj.Angle == 0 {
		return ""
	}
	return fmt.Sprintf(` transform="rotate(%g %g %g)"`, obj.Angle, centerX(obj), centerY(obj))
}

// textAnchor maps originX onto the SVG text-anchor keyword.
func textAnchor(origin string) string {
	switch origin {
	case "left":
		return "start"
	case "right":
		return "end"
	default:
		return "middle"
	}
}

// baseline maps originY onto dominant-baseline so the anchor point matches
// the raster renderer's vertical alignment.
func baseline(origin string) string {
	switch origin {
	case "top":
		return "hanging"
	case "bottom":
		return "auto"
	default:
		return "central"
	}
}

func strokeAttrs(obj design.Object) string {
	if obj.Stroke == "" || obj.StrokeWidth <= 0 {
		return ""
	}
	return fmt.Sprintf(` stroke=%q stroke-width="%g"`, obj.Stroke, obj.StrokeWidth)
}

func opacityAttr(obj design.Object) string {
	if obj.Opacity > 0 && obj.Opacity < 1 {
		return fmt.Sprintf(` opacity="%g"`, obj.Opacity)
	}
	return ""
}

func centerX(obj design.Object) float64 {
	w, _ := boxSize(obj)
	x0, _ := topLeft(obj, w, 0, 1)
	return x0 + w/2
}

func centerY(obj design.Object) float64 {
	_, h := boxSize(obj)
	_, y0 := topLeft(obj, 0, h, 1)
	return y0 + h/2
}

func boxSize(obj design.Object) (float64, float64) {
	if obj.Type == "circle" {
		return 2 * obj.Radius, 2 * obj.Radius
	}
	return obj.Width, obj.Height
}

func maxBoxHalf(obj design.Object) float64 {
	w, h := boxSize(obj)
	if w > h {
		return w / 2
	}
	return h / 2
}

func orFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
