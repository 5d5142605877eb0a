package canvas

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"canvasmith/internal/design"
)

const (
	onePixelPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="
	iconMarkup  = `<svg width="24" height="24" viewBox="0 0 24 24"><rect width="24" height="24" fill="currentColor"/></svg>`
)

func rectOp(id string, zIndex int, fill string) design.Operation {
	return design.Operation{
		ID:   id,
		Type: design.OpShape,
		Object: &design.Object{
			Type: "rect", ShapeType: "rect",
			Left: 50, Top: 50, Width: 100, Height: 100,
			Fill: fill, OriginX: "left", OriginY: "top",
		},
		ZIndex: zIndex,
	}
}

func TestBuildSceneOrdersByZIndex(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			rectOp("op-top", 5, "#ff0000"),
			rectOp("op-bottom", -1, "#00ff00"),
			rectOp("op-mid-a", 0, "#0000ff"),
			rectOp("op-mid-b", 0, "#ffffff"),
		},
	}
	s := BuildScene(d, nil)

	ids := make([]string, len(s.Nodes))
	for i, n := range s.Nodes {
		ids[i] = n.OperationID
	}
	require.Equal(t, []string{"op-bottom", "op-mid-a", "op-mid-b", "op-top"}, ids)
}

func TestBuildSceneIsIdempotent(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			rectOp("op-1", 3, "#ff0000"),
			rectOp("op-2", 1, "#00ff00"),
		},
	}
	require.Equal(t, BuildScene(d, nil), BuildScene(d, nil))
}

func TestZIndexReorderChangesOnlyOrder(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			rectOp("op-1", 0, "#ff0000"),
			rectOp("op-2", 1, "#00ff00"),
		},
	}
	before := BuildScene(d, nil)

	d.Operations[0].ZIndex = 2
	after := BuildScene(d, nil)

	require.Equal(t, []string{"op-1", "op-2"}, []string{before.Nodes[0].OperationID, before.Nodes[1].OperationID})
	require.Equal(t, []string{"op-2", "op-1"}, []string{after.Nodes[0].OperationID, after.Nodes[1].OperationID})

	contents := func(s *Scene) map[string]design.Object {
		out := make(map[string]design.Object)
		for _, n := range s.Nodes {
			out[n.OperationID] = n.Object
		}
		return out
	}
	require.Equal(t, contents(before), contents(after))
}

func TestEraseHidesNodes(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			rectOp("op-1", 0, "#ff0000"),
			rectOp("op-2", 0, "#00ff00"),
			{ID: "op-3", Type: design.OpErase, ObjectIDs: []string{"op-1"}},
		},
	}
	s := BuildScene(d, nil)

	require.Len(t, s.Nodes, 1)
	require.Equal(t, "op-2", s.Nodes[0].OperationID)
}

func TestFillRecolorsTarget(t *testing.T) {
	op := rectOp("op-1", 0, "")
	op.Object.Gradient = &design.Gradient{
		Type:       "linear",
		ColorStops: []design.GradientStop{{Offset: 0, Color: "#000000"}, {Offset: 1, Color: "#ffffff"}},
	}
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			op,
			{ID: "op-2", Type: design.OpFill, ObjectID: "op-1", Fill: "#123456"},
		},
	}
	s := BuildScene(d, nil)

	require.Len(t, s.Nodes, 1)
	require.Equal(t, "#123456", s.Nodes[0].Object.Fill)
	require.Nil(t, s.Nodes[0].Object.Gradient)
}

func TestSelectionSurvivesRebuild(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{rectOp("op-1", 0, "#ff0000"), rectOp("op-2", 0, "#00ff00")},
	}
	prev := BuildScene(d, nil)
	prev.Selected = "op-2"

	s := BuildScene(d, prev)
	require.Equal(t, "op-2", s.Selected)

	d.Operations = d.Operations[:1]
	s = BuildScene(d, prev)
	require.Empty(t, s.Selected)
}

func TestDrawOperationExpandsObjects(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			{
				ID:   "op-draw",
				Type: design.OpDraw,
				Objects: []design.Object{
					{Type: "rect", Left: 0, Top: 0, Width: 10, Height: 10, Fill: "#ff0000"},
					{Type: "rect", Left: 20, Top: 20, Width: 10, Height: 10, Fill: "#00ff00"},
				},
			},
		},
	}
	s := BuildScene(d, nil)
	require.Len(t, s.Nodes, 2)
	require.Equal(t, "op-draw", s.Nodes[0].OperationID)
	require.Equal(t, "op-draw", s.Nodes[1].OperationID)
}

func TestRasterExportPaintsShapes(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{rectOp("op-1", 0, "#ff0000")},
	}
	s := BuildScene(d, nil)

	out, err := Export(s, &Resolved{}, ExportOptions{Format: FormatPNG}, zerolog.Nop())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 200, 200), img.Bounds())

	require.Equal(t, color.RGBA{255, 0, 0, 255}, rgbaAt(img, 100, 100))
	require.Equal(t, color.RGBA{255, 255, 255, 255}, rgbaAt(img, 10, 10))
}

func TestRasterExportScalesToTarget(t *testing.T) {
	d := &design.Design{Width: 200, Height: 100, Operations: []design.Operation{rectOp("op-1", 0, "#ff0000")}}
	s := BuildScene(d, nil)

	out, err := Export(s, &Resolved{}, ExportOptions{Format: FormatPNG, Width: 400, Height: 100}, zerolog.Nop())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	// scale = max(400/200, 100/100) = 2
	require.Equal(t, image.Rect(0, 0, 400, 200), img.Bounds())
}

func TestRasterExportDownscalesToTarget(t *testing.T) {
	d := &design.Design{Width: 200, Height: 200, Operations: []design.Operation{rectOp("op-1", 0, "#ff0000")}}
	s := BuildScene(d, nil)

	out, err := Export(s, &Resolved{}, ExportOptions{Format: FormatPNG, Width: 100, Height: 100}, zerolog.Nop())
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	// scale = max(100/200, 100/200) = 0.5
	require.Equal(t, image.Rect(0, 0, 100, 100), img.Bounds())
	require.Equal(t, color.RGBA{255, 0, 0, 255}, rgbaAt(img, 50, 50))

	// One target axis larger than the document still wins.
	out, err = Export(s, &Resolved{}, ExportOptions{Format: FormatPNG, Width: 100, Height: 400}, zerolog.Nop())
	require.NoError(t, err)
	img, err = png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 400, 400), img.Bounds())
}

func TestJPEGExport(t *testing.T) {
	d := &design.Design{Width: 100, Height: 100, Operations: []design.Operation{rectOp("op-1", 0, "#ff0000")}}
	s := BuildScene(d, nil)

	out, err := Export(s, &Resolved{}, ExportOptions{Format: FormatJPEG, Quality: 80}, zerolog.Nop())
	require.NoError(t, err)
	// JPEG SOI marker
	require.Equal(t, []byte{0xff, 0xd8}, out[:2])
}

func TestSVGExport(t *testing.T) {
	grad := rectOp("op-1", 0, "")
	grad.Object.Gradient = &design.Gradient{
		Type:       "linear",
		Coords:     design.GradientCoords{X1: -50, Y1: 0, X2: 50, Y2: 0},
		ColorStops: []design.GradientStop{{Offset: 0, Color: "#ff0000"}, {Offset: 1, Color: "#0000ff"}},
	}
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			grad,
			{
				ID: "op-2", Type: design.OpText,
				Object: &design.Object{Type: "text", Text: "20% OFF <today>", Left: 100, Top: 100, Fill: "#ffffff", OriginX: "center", OriginY: "center"},
			},
			{
				ID: "op-3", Type: design.OpShape,
				Object: &design.Object{Type: "circle", ShapeType: "circle", Left: 50, Top: 50, Radius: 25, Fill: "#00ff00", OriginX: "center", OriginY: "center"},
			},
		},
	}
	s := BuildScene(d, nil)

	out, err := Export(s, &Resolved{}, ExportOptions{Format: FormatSVG}, zerolog.Nop())
	require.NoError(t, err)
	markup := string(out)

	require.Contains(t, markup, `viewBox="0 0 200 200"`)
	require.Contains(t, markup, `fill="url(#grad-1)"`)
	require.Contains(t, markup, `<linearGradient id="grad-1"`)
	require.Contains(t, markup, `<circle cx="50" cy="50" r="25"`)
	require.Contains(t, markup, "20% OFF &lt;today&gt;")
	require.Contains(t, markup, `text-anchor="middle"`)
	require.Contains(t, markup, `dominant-baseline="central"`)
}

func TestTextAnchorMapping(t *testing.T) {
	require.Equal(t, "start", textAnchor("left"))
	require.Equal(t, "middle", textAnchor("center"))
	require.Equal(t, "end", textAnchor("right"))
	require.Equal(t, "hanging", baseline("top"))
	require.Equal(t, "central", baseline("center"))
	require.Equal(t, "auto", baseline("bottom"))
}

func TestUnsupportedFormat(t *testing.T) {
	s := BuildScene(&design.Design{Width: 10, Height: 10}, nil)
	_, err := Export(s, &Resolved{}, ExportOptions{Format: "bmp"}, zerolog.Nop())
	require.Error(t, err)
}

func TestResolveLoadsDataURIAndSVG(t *testing.T) {
	d := &design.Design{
		Width: 200, Height: 200,
		Operations: []design.Operation{
			{
				ID: "op-img", Type: design.OpImage,
				Object: &design.Object{Type: "image", Src: onePixelPNG, Left: 0, Top: 0, Width: 50, Height: 50},
			},
			{
				ID: "op-svg", Type: design.OpSVG,
				Object: &design.Object{Type: "svg", SVGData: iconMarkup, Fill: "#ff0000", Left: 0, Top: 0, Width: 24, Height: 24, ScaleX: 1, ScaleY: 1},
			},
			{
				ID: "op-bad", Type: design.OpSVG,
				Object: &design.Object{Type: "svg", SVGData: "not markup", Left: 0, Top: 0, Width: 24, Height: 24},
			},
		},
	}
	s := BuildScene(d, nil)

	assets, err := NewAssets(zerolog.Nop())
	require.NoError(t, err)
	resolved := assets.Resolve(context.Background(), s)

	require.Contains(t, resolved.Images, onePixelPNG)
	require.Contains(t, resolved.Icons, iconKey(iconMarkup, "#ff0000"))
	require.NotContains(t, resolved.Icons, iconKey("not markup", ""))

	// Resolved assets render without error.
	out, err := Export(s, resolved, ExportOptions{Format: FormatPNG}, zerolog.Nop())
	require.NoError(t, err)
	require.NotEmpty(t, out)
}

func TestRecolorSVG(t *testing.T) {
	out := recolorSVG(iconMarkup, "#336699")
	require.NotContains(t, out, "currentColor")
	require.Contains(t, out, `fill="#336699"`)

	require.Equal(t, iconMarkup, recolorSVG(iconMarkup, ""))
}

func TestParseColor(t *testing.T) {
	require.Equal(t, color.RGBA{255, 0, 0, 255}, parseColor("#ff0000", 1))
	require.Equal(t, color.RGBA{255, 0, 0, 255}, parseColor("#F00", 1))
	require.Equal(t, color.RGBA{0, 0, 255, 128}, parseColor("#0000ff80", 1))
	require.Equal(t, color.RGBA{1, 2, 3, 255}, parseColor("rgb(1, 2, 3)", 1))
	require.Equal(t, color.RGBA{0, 0, 0, 255}, parseColor("not-a-color", 1))
	require.Equal(t, color.RGBA{255, 0, 0, 128}, parseColor("#ff0000", 0.5))
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}
