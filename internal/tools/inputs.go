package tools

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"canvasmith/internal/design"
)

var (
	originXRule   = validation.In("left", "center", "right")
	originYRule   = validation.In("top", "center", "bottom")
	textAlignRule = validation.In("left", "center", "right")
)

// GradientInput mirrors the gradient spec tools accept at creation time.
type GradientInput struct {
	Type       string                `json:"type"`
	Coords     design.GradientCoords `json:"coords"`
	ColorStops []design.GradientStop `json:"colorStops"`
}

func (g GradientInput) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Type, validation.Required, validation.In("linear", "radial")),
		validation.Field(&g.ColorStops, validation.Required),
	)
}

func (g *GradientInput) toDesign() *design.Gradient {
	if g == nil {
		return nil
	}
	return &design.Gradient{
		Type:       g.Type,
		Coords:     g.Coords,
		ColorStops: append([]design.GradientStop(nil), g.ColorStops...),
	}
}

type SetCanvasSizeInput struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Name   string `json:"name,omitempty"`
}

func (in SetCanvasSizeInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Width, validation.Required, validation.Min(1)),
		validation.Field(&in.Height, validation.Required, validation.Min(1)),
	)
}

type AddRectangleInput struct {
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Width       float64        `json:"width"`
	Height      float64        `json:"height"`
	Fill        string         `json:"fill,omitempty"`
	Gradient    *GradientInput `json:"gradient,omitempty"`
	Stroke      string         `json:"stroke,omitempty"`
	StrokeWidth float64        `json:"strokeWidth,omitempty"`
	Opacity     *float64       `json:"opacity,omitempty"`
	Rotation    float64        `json:"rotation,omitempty"`
	OriginX     string         `json:"originX,omitempty"`
	OriginY     string         `json:"originY,omitempty"`
	ZIndex      int            `json:"zIndex,omitempty"`
}

func (in AddRectangleInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Width, validation.Required, validation.Min(1.0)),
		validation.Field(&in.Height, validation.Required, validation.Min(1.0)),
		validation.Field(&in.Opacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&in.OriginX, originXRule),
		validation.Field(&in.OriginY, originYRule),
		validation.Field(&in.Gradient),
	)
}

type AddCircleInput struct {
	X           float64        `json:"x"`
	Y           float64        `json:"y"`
	Radius      float64        `json:"radius"`
	Fill        string         `json:"fill,omitempty"`
	Gradient    *GradientInput `json:"gradient,omitempty"`
	Stroke      string         `json:"stroke,omitempty"`
	StrokeWidth float64        `json:"strokeWidth,omitempty"`
	Opacity     *float64       `json:"opacity,omitempty"`
	Rotation    float64        `json:"rotation,omitempty"`
	OriginX     string         `json:"originX,omitempty"`
	OriginY     string         `json:"originY,omitempty"`
	ZIndex      int            `json:"zIndex,omitempty"`
}

func (in AddCircleInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Radius, validation.Required, validation.Min(1.0)),
		validation.Field(&in.Opacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&in.OriginX, originXRule),
		validation.Field(&in.OriginY, originYRule),
		validation.Field(&in.Gradient),
	)
}

type AddTextInput struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Text       string   `json:"text"`
	FontSize   float64  `json:"fontSize,omitempty"`
	FontFamily string   `json:"fontFamily,omitempty"`
	FontWeight string   `json:"fontWeight,omitempty"`
	Fill       string   `json:"fill,omitempty"`
	TextAlign  string   `json:"textAlign,omitempty"`
	Opacity    *float64 `json:"opacity,omitempty"`
	Rotation   float64  `json:"rotation,omitempty"`
	OriginX    string   `json:"originX,omitempty"`
	OriginY    string   `json:"originY,omitempty"`
	ZIndex     int      `json:"zIndex,omitempty"`
}

func (in AddTextInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Text, validation.Required),
		validation.Field(&in.Opacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&in.TextAlign, textAlignRule),
		validation.Field(&in.OriginX, originXRule),
		validation.Field(&in.OriginY, originYRule),
	)
}

type AddImageInput struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Src      string   `json:"src"`
	Width    float64  `json:"width,omitempty"`
	Height   float64  `json:"height,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Rotation float64  `json:"rotation,omitempty"`
	OriginX  string   `json:"originX,omitempty"`
	OriginY  string   `json:"originY,omitempty"`
	ZIndex   int      `json:"zIndex,omitempty"`
}

func (in AddImageInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Src, validation.Required),
		validation.Field(&in.Opacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&in.OriginX, originXRule),
		validation.Field(&in.OriginY, originYRule),
	)
}

type AddSVGInput struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	SVGData  string   `json:"svgData"`
	Width    float64  `json:"width,omitempty"`
	Height   float64  `json:"height,omitempty"`
	Fill     string   `json:"fill,omitempty"`
	Opacity  *float64 `json:"opacity,omitempty"`
	Rotation float64  `json:"rotation,omitempty"`
	OriginX  string   `json:"originX,omitempty"`
	OriginY  string   `json:"originY,omitempty"`
	ZIndex   int      `json:"zIndex,omitempty"`
}

func (in AddSVGInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.SVGData, validation.Required),
		validation.Field(&in.Opacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&in.OriginX, originXRule),
		validation.Field(&in.OriginY, originYRule),
	)
}

type RemoveOperationInput struct {
	OperationID string `json:"operationId"`
}

func (in RemoveOperationInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OperationID, validation.Required),
	)
}

type UpdateOperationInput struct {
	OperationID string   `json:"operationId"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Radius      *float64 `json:"radius,omitempty"`
	Fill        *string  `json:"fill,omitempty"`
	Stroke      *string  `json:"stroke,omitempty"`
	StrokeWidth *float64 `json:"strokeWidth,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	Rotation    *float64 `json:"rotation,omitempty"`
	Text        *string  `json:"text,omitempty"`
	FontSize    *float64 `json:"fontSize,omitempty"`
	FontFamily  *string  `json:"fontFamily,omitempty"`
	OriginX     *string  `json:"originX,omitempty"`
	OriginY     *string  `json:"originY,omitempty"`
	ZIndex      *int     `json:"zIndex,omitempty"`
}

func (in UpdateOperationInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OperationID, validation.Required),
		validation.Field(&in.Opacity, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&in.OriginX, originXRule),
		validation.Field(&in.OriginY, originYRule),
	)
}

// command translates the flat update payload into the per-variant command
// applied by the design store. Fields that do not match the target variant
// are dropped there, not here.
func (in UpdateOperationInput) command() design.UpdateCommand {
	return design.UpdateCommand{
		ZIndex: in.ZIndex,
		Common: &design.CommonUpdate{
			Left:        in.X,
			Top:         in.Y,
			Fill:        in.Fill,
			Stroke:      in.Stroke,
			StrokeWidth: in.StrokeWidth,
			Opacity:     in.Opacity,
			Angle:       in.Rotation,
			OriginX:     in.OriginX,
			OriginY:     in.OriginY,
		},
		Shape: &design.ShapeUpdate{Width: in.Width, Height: in.Height, Radius: in.Radius},
		Text:  &design.TextUpdate{Text: in.Text, FontSize: in.FontSize, FontFamily: in.FontFamily},
		Image: &design.ImageUpdate{Width: in.Width, Height: in.Height},
	}
}

type PlanItemInput struct {
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
}

func (in PlanItemInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Description, validation.Required),
	)
}

type CreatePlanInput struct {
	DesignType string          `json:"designType"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Items      []PlanItemInput `json:"items"`
}

func (in CreatePlanInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.DesignType, validation.Required),
		validation.Field(&in.Width, validation.Required, validation.Min(1)),
		validation.Field(&in.Height, validation.Required, validation.Min(1)),
		validation.Field(&in.Items, validation.Required, validation.Each()),
	)
}
