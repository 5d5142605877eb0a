package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"canvasmith/internal/design"
	"canvasmith/internal/plan"
	"canvasmith/internal/wire"
)

// Catalog wires the canvas tool set to its stores.
type Catalog struct {
	designs *design.Store
	plans   *plan.Registry
}

func NewCatalog(designs *design.Store, plans *plan.Registry) *Catalog {
	return &Catalog{designs: designs, plans: plans}
}

// Registry builds the full tool catalogue.
func (c *Catalog) Registry() *Registry {
	r := NewRegistry()
	r.Register(&Tool{
		Spec: Spec{
			Name:        "set-canvas-size",
			Description: "Set the canvas dimensions for the design. Call this FIRST before adding any elements.",
			InputSchema: map[string]any{
				"width":  "Canvas width in pixels",
				"height": "Canvas height in pixels",
				"name":   "Optional name for the design",
			},
		},
		Handler: c.setCanvasSize,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "add-rectangle",
			Description: "Add a rectangle shape to the canvas. Use either fill OR gradient, not both.",
			InputSchema: map[string]any{
				"x": "X position on canvas", "y": "Y position on canvas",
				"width": "Width of the rectangle", "height": "Height of the rectangle",
				"fill":     "Fill color in hex, e.g. #FF0000",
				"gradient": "Gradient fill: {type: linear|radial, coords: {x1,y1,x2,y2,r1?,r2?} relative to shape center, colorStops: [{offset, color}]}",
				"stroke":   "Stroke color", "strokeWidth": "Stroke width",
				"opacity": "Opacity between 0 and 1", "rotation": "Rotation angle in degrees",
				"originX": "left|center|right, default left", "originY": "top|center|bottom, default top",
				"zIndex": "Layer order, higher on top, default 0",
			},
		},
		Handler: c.addRectangle,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "add-circle",
			Description: "Add a circle shape to the canvas. Use either fill OR gradient, not both.",
			InputSchema: map[string]any{
				"x": "X position on canvas", "y": "Y position on canvas",
				"radius": "Radius of the circle",
				"fill":   "Fill color in hex",
				"gradient": "Gradient fill: {type: linear|radial, coords: {x1,y1,x2,y2,r1?,r2?} relative to shape center, colorStops: [{offset, color}]}",
				"stroke": "Stroke color", "strokeWidth": "Stroke width",
				"opacity": "Opacity between 0 and 1", "rotation": "Rotation angle in degrees",
				"originX": "left|center|right, default center", "originY": "top|center|bottom, default center",
				"zIndex": "Layer order, default 0",
			},
		},
		Handler: c.addCircle,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "add-text",
			Description: "Add text to the canvas.",
			InputSchema: map[string]any{
				"x": "X position on canvas", "y": "Y position on canvas",
				"text":     "Text content",
				"fontSize": "Font size, default 16", "fontFamily": "Font family, default Arial",
				"fontWeight": "normal, bold, 400, 600, ...", "fill": "Text color in hex",
				"textAlign": "left|center|right, default left",
				"opacity":   "Opacity between 0 and 1", "rotation": "Rotation angle in degrees",
				"originX": "left|center|right, default center", "originY": "top|center|bottom, default center",
				"zIndex": "Layer order, default 0",
			},
		},
		Handler: c.addText,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "add-image",
			Description: "Add an image to the canvas.",
			InputSchema: map[string]any{
				"x": "X position on canvas", "y": "Y position on canvas",
				"src":   "Image URL or path",
				"width": "Width in pixels, default 200", "height": "Height in pixels, default 200",
				"opacity": "Opacity between 0 and 1", "rotation": "Rotation angle in degrees",
				"originX": "left|center|right, default center", "originY": "top|center|bottom, default center",
				"zIndex": "Layer order, default 0",
			},
		},
		Handler: c.addImage,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "add-svg",
			Description: "Add an SVG icon or graphic to the canvas. Use this for icons instead of images; provide inline SVG markup with viewBox.",
			InputSchema: map[string]any{
				"x": "X position on canvas", "y": "Y position on canvas",
				"svgData": "Inline SVG markup string",
				"width":   "Width in pixels, default 24", "height": "Height in pixels, default 24",
				"fill":    "Optional fill override in hex; recolors the vector markup",
				"opacity": "Opacity between 0 and 1", "rotation": "Rotation angle in degrees",
				"originX": "left|center|right, default center", "originY": "top|center|bottom, default center",
				"zIndex": "Layer order, default 0",
			},
		},
		Handler: c.addSVG,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "update-operation",
			Description: "Update an existing operation by its ID. Provide only the properties to change; fields that do not apply to the operation's type are ignored.",
			InputSchema: map[string]any{
				"operationId": "ID of the operation to update",
				"x":           "New X position", "y": "New Y position",
				"width": "New width", "height": "New height", "radius": "New radius (circles)",
				"fill": "New fill color", "stroke": "New stroke color", "strokeWidth": "New stroke width",
				"opacity": "New opacity", "rotation": "New rotation angle",
				"text": "New text content", "fontSize": "New font size", "fontFamily": "New font family",
				"originX": "left|center|right", "originY": "top|center|bottom",
				"zIndex": "New layer order",
			},
		},
		Handler: c.updateOperation,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "remove-operation",
			Description: "Remove an operation from the design by its ID. Requires user approval.",
			InputSchema: map[string]any{
				"operationId": "ID of the operation to remove",
			},
		},
		NeedsApproval: true,
		Handler:       c.removeOperation,
	})
	r.Register(&Tool{
		Spec: Spec{
			Name:        "create-plan",
			Description: "Create and submit the design plan for user approval. Call this before executing any design work.",
			InputSchema: map[string]any{
				"designType": "Type of design, e.g. \"Instagram Post\"",
				"width":      "Canvas width in pixels",
				"height":     "Canvas height in pixels",
				"items":      "Ordered steps: [{description, details?}]",
			},
		},
		Handler: c.createPlan,
	})
	return r
}

func decode[T any](input json.RawMessage) (T, error) {
	var in T
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return in, fmt.Errorf("invalid tool input: %w", err)
		}
	}
	if v, ok := any(in).(validation.Validatable); ok {
		if err := v.Validate(); err != nil {
			return in, err
		}
	}
	return in, nil
}

// gate rejects mutations when no conversation is bound or when a proposed
// plan is still awaiting the user's decision.
func (c *Catalog) gate(tc Context) (Result, bool) {
	if tc.ConversationID == "" {
		return softFail("No active conversation"), false
	}
	if c.plans.HasProposed(tc.ConversationID) {
		return softFail("A proposed plan is awaiting user approval. Wait for the decision before editing the design."), false
	}
	return Result{}, true
}

func (c *Catalog) setCanvasSize(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[SetCanvasSizeInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	d := c.designs.GetOrCreate(tc.ConversationID)
	d.Width = in.Width
	d.Height = in.Height
	if in.Name != "" {
		d.Name = in.Name
	}
	d = c.designs.Replace(tc.ConversationID, d)
	tc.emit(wire.EventDesignUpdate, wire.DesignUpdate{ConversationID: tc.ConversationID, Design: d})
	msg := fmt.Sprintf("Canvas set to %dx%d", in.Width, in.Height)
	if in.Name != "" {
		msg += fmt.Sprintf(" - %q", in.Name)
	}
	return Result{Success: true, Design: d, Message: msg}, nil
}

func (c *Catalog) addRectangle(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[AddRectangleInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	op := design.Operation{
		ID:   uuid.NewString(),
		Type: design.OpShape,
		Object: &design.Object{
			Type:        "rect",
			ShapeType:   "rect",
			Left:        in.X,
			Top:         in.Y,
			Width:       in.Width,
			Height:      in.Height,
			Fill:        fillOrDefault(in.Fill, in.Gradient),
			Gradient:    in.Gradient.toDesign(),
			Stroke:      in.Stroke,
			StrokeWidth: in.StrokeWidth,
			Opacity:     opacityOrDefault(in.Opacity),
			Angle:       in.Rotation,
			OriginX:     orDefault(in.OriginX, "left"),
			OriginY:     orDefault(in.OriginY, "top"),
		},
		ZIndex:    in.ZIndex,
		CreatedAt: time.Now(),
	}
	return c.append(tc, op, fmt.Sprintf("Added rectangle with ID %s at (%g, %g)", op.ID, in.X, in.Y)), nil
}

func (c *Catalog) addCircle(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[AddCircleInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	op := design.Operation{
		ID:   uuid.NewString(),
		Type: design.OpShape,
		Object: &design.Object{
			Type:        "circle",
			ShapeType:   "circle",
			Left:        in.X,
			Top:         in.Y,
			Radius:      in.Radius,
			Fill:        fillOrDefault(in.Fill, in.Gradient),
			Gradient:    in.Gradient.toDesign(),
			Stroke:      in.Stroke,
			StrokeWidth: in.StrokeWidth,
			Opacity:     opacityOrDefault(in.Opacity),
			Angle:       in.Rotation,
			OriginX:     orDefault(in.OriginX, "center"),
			OriginY:     orDefault(in.OriginY, "center"),
		},
		ZIndex:    in.ZIndex,
		CreatedAt: time.Now(),
	}
	return c.append(tc, op, fmt.Sprintf("Added circle with ID %s at (%g, %g)", op.ID, in.X, in.Y)), nil
}

func (c *Catalog) addText(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[AddTextInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	op := design.Operation{
		ID:   uuid.NewString(),
		Type: design.OpText,
		Object: &design.Object{
			Type:       "text",
			Text:       in.Text,
			Left:       in.X,
			Top:        in.Y,
			FontSize:   floatOrDefault(in.FontSize, 16),
			FontFamily: orDefault(in.FontFamily, "Arial"),
			FontWeight: orDefault(in.FontWeight, "normal"),
			Fill:       orDefault(in.Fill, "#000000"),
			TextAlign:  orDefault(in.TextAlign, "left"),
			Opacity:    opacityOrDefault(in.Opacity),
			Angle:      in.Rotation,
			OriginX:    orDefault(in.OriginX, "center"),
			OriginY:    orDefault(in.OriginY, "center"),
		},
		ZIndex:    in.ZIndex,
		CreatedAt: time.Now(),
	}
	return c.append(tc, op, fmt.Sprintf("Added text with ID %s: %q at (%g, %g)", op.ID, in.Text, in.X, in.Y)), nil
}

func (c *Catalog) addImage(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[AddImageInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	op := design.Operation{
		ID:   uuid.NewString(),
		Type: design.OpImage,
		Object: &design.Object{
			Type:    "image",
			Src:     in.Src,
			Left:    in.X,
			Top:     in.Y,
			Width:   floatOrDefault(in.Width, 200),
			Height:  floatOrDefault(in.Height, 200),
			Opacity: opacityOrDefault(in.Opacity),
			Angle:   in.Rotation,
			OriginX: orDefault(in.OriginX, "center"),
			OriginY: orDefault(in.OriginY, "center"),
		},
		ZIndex:    in.ZIndex,
		CreatedAt: time.Now(),
	}
	return c.append(tc, op, fmt.Sprintf("Added image with ID %s from %s at (%g, %g)", op.ID, in.Src, in.X, in.Y)), nil
}

func (c *Catalog) addSVG(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[AddSVGInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	op := design.Operation{
		ID:   uuid.NewString(),
		Type: design.OpSVG,
		Object: &design.Object{
			Type:    "svg",
			SVGData: in.SVGData,
			Left:    in.X,
			Top:     in.Y,
			Width:   floatOrDefault(in.Width, 24),
			Height:  floatOrDefault(in.Height, 24),
			Fill:    in.Fill,
			Opacity: opacityOrDefault(in.Opacity),
			Angle:   in.Rotation,
			OriginX: orDefault(in.OriginX, "center"),
			OriginY: orDefault(in.OriginY, "center"),
			ScaleX:  1,
			ScaleY:  1,
		},
		ZIndex:    in.ZIndex,
		CreatedAt: time.Now(),
	}
	return c.append(tc, op, fmt.Sprintf("Added SVG with ID %s at (%g, %g)", op.ID, in.X, in.Y)), nil
}

func (c *Catalog) updateOperation(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[UpdateOperationInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	if c.designs.Get(tc.ConversationID) == nil {
		return softFail("No design found"), nil
	}
	d, found := c.designs.Update(tc.ConversationID, in.OperationID, in.command())
	if !found {
		return softFail(fmt.Sprintf("Operation with ID %s not found", in.OperationID)), nil
	}
	var updated *design.Operation
	for i := range d.Operations {
		if d.Operations[i].ID == in.OperationID {
			updated = &d.Operations[i]
			break
		}
	}
	tc.emit(wire.EventDesignUpdate, wire.DesignUpdate{ConversationID: tc.ConversationID, Design: d, LatestOperation: updated})
	return Result{Success: true, Operation: updated, Design: d, Message: fmt.Sprintf("Updated operation %s", in.OperationID)}, nil
}

func (c *Catalog) removeOperation(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[RemoveOperationInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if res, ok := c.gate(tc); !ok {
		return res, nil
	}
	d, removed := c.designs.Remove(tc.ConversationID, in.OperationID)
	if d == nil {
		return softFail("No design found"), nil
	}
	if !removed {
		return softFail(fmt.Sprintf("Operation with ID %s not found", in.OperationID)), nil
	}
	tc.emit(wire.EventDesignUpdate, wire.DesignUpdate{ConversationID: tc.ConversationID, Design: d})
	return Result{Success: true, Design: d, Message: fmt.Sprintf("Removed operation %s", in.OperationID)}, nil
}

func (c *Catalog) createPlan(_ context.Context, tc Context, input json.RawMessage) (Result, error) {
	in, err := decode[CreatePlanInput](input)
	if err != nil {
		return softFail(err.Error()), nil
	}
	if tc.ConversationID == "" {
		return softFail("No active conversation"), nil
	}
	items := make([]plan.Item, len(in.Items))
	for i, item := range in.Items {
		items[i] = plan.Item{Description: item.Description, Details: item.Details}
	}
	p := c.plans.Propose(tc.ConversationID, in.DesignType, plan.Dimensions{Width: in.Width, Height: in.Height}, items)
	tc.emit(wire.EventPlanProposal, wire.PlanProposal{ConversationID: tc.ConversationID, Plan: p})
	return Result{
		Success: true,
		PlanID:  p.ID,
		Message: fmt.Sprintf("Plan proposed with %d items. Waiting for user approval.", len(items)),
	}, nil
}

func (c *Catalog) append(tc Context, op design.Operation, msg string) Result {
	d := c.designs.Append(tc.ConversationID, op)
	tc.emit(wire.EventDesignUpdate, wire.DesignUpdate{ConversationID: tc.ConversationID, Design: d, LatestOperation: &op})
	return Result{Success: true, OperationID: op.ID, Operation: &op, Design: d, Message: msg}
}

func fillOrDefault(fill string, gradient *GradientInput) string {
	if gradient != nil {
		return ""
	}
	if fill == "" {
		return "#000000"
	}
	return fill
}

func opacityOrDefault(v *float64) float64 {
	if v == nil {
		return 1
	}
	return *v
}

func floatOrDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
