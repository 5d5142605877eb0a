package design

import (
	"time"
)

// OperationType tags the DesignOperation variants.
type OperationType string

const (
	OpShape OperationType = "shape"
	OpText  OperationType = "text"
	OpImage OperationType = "image"
	OpSVG   OperationType = "svg"
	OpDraw  OperationType = "draw"
	OpErase OperationType = "erase"
	OpFill  OperationType = "fill"
)

// GradientStop is a single color stop, offset in [0, 1].
type GradientStop struct {
	Offset float64 `json:"offset"`
	Color  string  `json:"color"`
}

// GradientCoords are expressed relative to the shape center.
type GradientCoords struct {
	X1 float64  `json:"x1"`
	Y1 float64  `json:"y1"`
	X2 float64  `json:"x2"`
	Y2 float64  `json:"y2"`
	R1 *float64 `json:"r1,omitempty"`
	R2 *float64 `json:"r2,omitempty"`
}

// Gradient describes a linear or radial fill.
type Gradient struct {
	Type       string         `json:"type"` // "linear" or "radial"
	Coords     GradientCoords `json:"coords"`
	ColorStops []GradientStop `json:"colorStops"`
}

// Object is the drawable property record embedded in shape/text/image/svg
// operations. Variant-specific fields are zero for other variants.
type Object struct {
	Type        string    `json:"type"`
	Left        float64   `json:"left"`
	Top         float64   `json:"top"`
	Opacity     float64   `json:"opacity,omitempty"`
	Angle       float64   `json:"angle,omitempty"`
	OriginX     string    `json:"originX,omitempty"` // left | center | right
	OriginY     string    `json:"originY,omitempty"` // top | center | bottom
	Fill        string    `json:"fill,omitempty"`
	Gradient    *Gradient `json:"gradient,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`

	// shape
	ShapeType string  `json:"shapeType,omitempty"` // rect | circle
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	Radius    float64 `json:"radius,omitempty"`

	// text
	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	FontWeight string  `json:"fontWeight,omitempty"`
	TextAlign  string  `json:"textAlign,omitempty"`

	// image
	Src string `json:"src,omitempty"`

	// svg
	SVGData string  `json:"svgData,omitempty"`
	ScaleX  float64 `json:"scaleX,omitempty"`
	ScaleY  float64 `json:"scaleY,omitempty"`
}

// Operation is one atomic drawable or document-mutating unit of edit history.
// Exactly one variant payload is populated, selected by Type.
type Operation struct {
	ID     string        `json:"id"`
	Type   OperationType `json:"type"`
	Object *Object       `json:"object,omitempty"`

	// draw carries free-form client-drawn objects.
	Objects []Object `json:"objects,omitempty"`
	// erase hides previously drawn objects by id.
	ObjectIDs []string `json:"objectIds,omitempty"`
	// fill recolors a single object by id.
	ObjectID string `json:"objectId,omitempty"`
	Fill     string `json:"fill,omitempty"`

	ZIndex    int       `json:"zIndex"`
	CreatedAt time.Time `json:"createdAt"`
}

// Design is the canvas document: dimensions plus the append-ordered operation
// list. Stacking order is decided by zIndex, ties break by list position.
type Design struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Operations []Operation `json:"operations"`
	CreatedAt  time.Time   `json:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy so callers can hand documents across goroutine
// boundaries without aliasing the store's live copy.
func (d *Design) Clone() *Design {
	if d == nil {
		return nil
	}
	out := *d
	out.Operations = make([]Operation, len(d.Operations))
	for i, op := range d.Operations {
		out.Operations[i] = *op.clone()
	}
	return &out
}

func (op *Operation) clone() *Operation {
	out := *op
	if op.Object != nil {
		obj := *op.Object
		if op.Object.Gradient != nil {
			g := *op.Object.Gradient
			g.ColorStops = append([]GradientStop(nil), op.Object.Gradient.ColorStops...)
			if op.Object.Gradient.Coords.R1 != nil {
				r1 := *op.Object.Gradient.Coords.R1
				g.Coords.R1 = &r1
			}
			if op.Object.Gradient.Coords.R2 != nil {
				r2 := *op.Object.Gradient.Coords.R2
				g.Coords.R2 = &r2
			}
			obj.Gradient = &g
		}
		out.Object = &obj
	}
	out.Objects = append([]Object(nil), op.Objects...)
	out.ObjectIDs = append([]string(nil), op.ObjectIDs...)
	return &out
}

// Clone returns a deep copy of the operation.
func (op *Operation) Clone() *Operation {
	if op == nil {
		return nil
	}
	return op.clone()
}

// VersionInfo is the lightweight listing entry for a saved version.
type VersionInfo struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`
	Name    string    `json:"name"`
}

// Version is an immutable snapshot of a Design at save time.
type Version struct {
	Design  Design    `json:"design"`
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`
}
