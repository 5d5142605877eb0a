package design

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }
func intPtr(v int) *int           { return &v }

func TestGetOrCreateDefaults(t *testing.T) {
	s := NewStore()
	d := s.GetOrCreate("conv-1")
	require.NotNil(t, d)
	assert.Equal(t, DefaultName, d.Name)
	assert.Equal(t, DefaultWidth, d.Width)
	assert.Equal(t, DefaultHeight, d.Height)
	assert.Empty(t, d.Operations)
	assert.NotEmpty(t, d.ID)

	again := s.GetOrCreate("conv-1")
	assert.Equal(t, d.ID, again.ID)
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Get("nope"))
}

func TestAppendReturnsClone(t *testing.T) {
	s := NewStore()
	d := s.Append("conv-1", Operation{
		ID:   "op-1",
		Type: OpShape,
		Object: &Object{
			Type:      "shape",
			ShapeType: "rect",
			Fill:      "#ff0000",
			Width:     100,
			Height:    50,
		},
	})
	require.Len(t, d.Operations, 1)

	// Mutating the returned copy must not leak into the store.
	d.Operations[0].Object.Fill = "#00ff00"
	fresh := s.Get("conv-1")
	assert.Equal(t, "#ff0000", fresh.Operations[0].Object.Fill)
}

func TestRemoveUnknownIDLeavesDesignUnchanged(t *testing.T) {
	s := NewStore()
	s.Append("conv-1", Operation{ID: "op-1", Type: OpShape, Object: &Object{Type: "shape"}})

	d, removed := s.Remove("conv-1", "does-not-exist")
	assert.False(t, removed)
	assert.Len(t, d.Operations, 1)

	d, removed = s.Remove("conv-1", "op-1")
	assert.True(t, removed)
	assert.Empty(t, d.Operations)
}

func TestUpdateZIndexAppliesToAnyVariant(t *testing.T) {
	s := NewStore()
	s.Append("conv-1", Operation{ID: "svg-1", Type: OpSVG, Object: &Object{Type: "svg", SVGData: "<svg/>"}})

	d, ok := s.Update("conv-1", "svg-1", UpdateCommand{ZIndex: intPtr(7)})
	require.True(t, ok)
	assert.Equal(t, 7, d.Operations[0].ZIndex)
}

func TestUpdateCommonSkipsSVG(t *testing.T) {
	s := NewStore()
	s.Append("conv-1", Operation{ID: "svg-1", Type: OpSVG, Object: &Object{Type: "svg", Left: 10, Fill: "#111111"}})

	d, ok := s.Update("conv-1", "svg-1", UpdateCommand{
		Common: &CommonUpdate{Left: floatPtr(99), Fill: strPtr("#ffffff")},
	})
	require.True(t, ok)
	assert.Equal(t, float64(10), d.Operations[0].Object.Left)
	assert.Equal(t, "#111111", d.Operations[0].Object.Fill)
}

func TestUpdateVariantScoping(t *testing.T) {
	s := NewStore()
	s.Append("conv-1", Operation{ID: "txt-1", Type: OpText, Object: &Object{Type: "text", Text: "hello", FontSize: 16}})

	// Shape-only fields do not touch a text operation.
	d, ok := s.Update("conv-1", "txt-1", UpdateCommand{
		Common: &CommonUpdate{Left: floatPtr(42)},
		Shape:  &ShapeUpdate{Width: floatPtr(500)},
		Text:   &TextUpdate{Text: strPtr("bye"), FontSize: floatPtr(24)},
	})
	require.True(t, ok)
	obj := d.Operations[0].Object
	assert.Equal(t, float64(42), obj.Left)
	assert.Equal(t, "bye", obj.Text)
	assert.Equal(t, float64(24), obj.FontSize)
	assert.Zero(t, obj.Width)
}

func TestUpdateFillClearsGradient(t *testing.T) {
	s := NewStore()
	s.Append("conv-1", Operation{ID: "op-1", Type: OpShape, Object: &Object{
		Type:     "shape",
		Gradient: &Gradient{Type: "linear", ColorStops: []GradientStop{{Offset: 0, Color: "#000"}}},
	}})

	d, ok := s.Update("conv-1", "op-1", UpdateCommand{Common: &CommonUpdate{Fill: strPtr("#abcdef")}})
	require.True(t, ok)
	assert.Equal(t, "#abcdef", d.Operations[0].Object.Fill)
	assert.Nil(t, d.Operations[0].Object.Gradient)
}

func TestUpdateUnknownID(t *testing.T) {
	s := NewStore()
	s.Append("conv-1", Operation{ID: "op-1", Type: OpShape, Object: &Object{Type: "shape"}})

	_, ok := s.Update("conv-1", "ghost", UpdateCommand{ZIndex: intPtr(1)})
	assert.False(t, ok)
}

func TestReplaceRefreshesUpdatedAt(t *testing.T) {
	s := NewStore()
	old := NewDesign(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	stored := s.Replace("conv-1", old)
	assert.True(t, stored.UpdatedAt.After(old.UpdatedAt))
	assert.Equal(t, old.ID, stored.ID)
}

func TestVersionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	vs := NewMemoryVersionStore()

	d1 := NewDesign(time.Now())
	d1.Name = "first"
	d2 := NewDesign(time.Now())
	d2.Name = "second"

	n1, err := vs.Save(ctx, "conv-1", d1)
	require.NoError(t, err)
	n2, err := vs.Save(ctx, "conv-1", d2)
	require.NoError(t, err)
	assert.Equal(t, 1, n1)
	assert.Equal(t, 2, n2)

	infos, err := vs.List(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "first", infos[0].Name)
	assert.Equal(t, "second", infos[1].Name)

	loaded, err := vs.Load(ctx, "conv-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded.Name)

	_, err = vs.Load(ctx, "conv-1", 99)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestVersionSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	vs := NewMemoryVersionStore()

	d := NewDesign(time.Now())
	d.Operations = append(d.Operations, Operation{ID: "op-1", Type: OpShape, Object: &Object{Type: "shape", Fill: "#123456"}})
	_, err := vs.Save(ctx, "conv-1", d)
	require.NoError(t, err)

	d.Operations[0].Object.Fill = "#654321"
	loaded, err := vs.Load(ctx, "conv-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "#123456", loaded.Operations[0].Object.Fill)
}
