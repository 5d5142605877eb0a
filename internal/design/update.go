package design

// UpdateCommand is a partial edit of an existing operation. Nil fields are
// left untouched. ZIndex applies to every variant; the grouped fields apply
// only to the variants that carry them, so a width sent at a text operation
// is silently ignored.
type UpdateCommand struct {
	ZIndex *int
	Common *CommonUpdate
	Shape  *ShapeUpdate
	Text   *TextUpdate
	Image  *ImageUpdate
}

// CommonUpdate covers the positional and paint properties shared by the
// shape, text and image variants. SVG icons keep their authored geometry.
type CommonUpdate struct {
	Left        *float64
	Top         *float64
	Fill        *string
	Stroke      *string
	StrokeWidth *float64
	Opacity     *float64
	Angle       *float64
	OriginX     *string
	OriginY     *string
}

type ShapeUpdate struct {
	Width  *float64
	Height *float64
	Radius *float64
}

type TextUpdate struct {
	Text       *string
	FontSize   *float64
	FontFamily *string
}

type ImageUpdate struct {
	Width  *float64
	Height *float64
}

func (c UpdateCommand) apply(op *Operation) {
	if c.ZIndex != nil {
		op.ZIndex = *c.ZIndex
	}
	obj := op.Object
	if obj == nil {
		return
	}
	switch op.Type {
	case OpShape, OpText, OpImage:
		if c.Common != nil {
			c.Common.apply(obj)
		}
	}
	switch op.Type {
	case OpShape:
		if c.Shape != nil {
			c.Shape.apply(obj)
		}
	case OpText:
		if c.Text != nil {
			c.Text.apply(obj)
		}
	case OpImage:
		if c.Image != nil {
			c.Image.apply(obj)
		}
	}
}

func (c *CommonUpdate) apply(obj *Object) {
	if c.Left != nil {
		obj.Left = *c.Left
	}
	if c.Top != nil {
		obj.Top = *c.Top
	}
	if c.Fill != nil {
		obj.Fill = *c.Fill
		obj.Gradient = nil
	}
	if c.Stroke != nil {
		obj.Stroke = *c.Stroke
	}
	if c.StrokeWidth != nil {
		obj.StrokeWidth = *c.StrokeWidth
	}
	if c.Opacity != nil {
		obj.Opacity = *c.Opacity
	}
	if c.Angle != nil {
		obj.Angle = *c.Angle
	}
	if c.OriginX != nil {
		obj.OriginX = *c.OriginX
	}
	if c.OriginY != nil {
		obj.OriginY = *c.OriginY
	}
}

func (c *ShapeUpdate) apply(obj *Object) {
	if c.Width != nil {
		obj.Width = *c.Width
	}
	if c.Height != nil {
		obj.Height = *c.Height
	}
	if c.Radius != nil {
		obj.Radius = *c.Radius
	}
}

func (c *TextUpdate) apply(obj *Object) {
	if c.Text != nil {
		obj.Text = *c.Text
	}
	if c.FontSize != nil {
		obj.FontSize = *c.FontSize
	}
	if c.FontFamily != nil {
		obj.FontFamily = *c.FontFamily
	}
}

func (c *ImageUpdate) apply(obj *Object) {
	if c.Width != nil {
		obj.Width = *c.Width
	}
	if c.Height != nil {
		obj.Height = *c.Height
	}
}
