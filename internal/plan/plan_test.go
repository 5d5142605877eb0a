package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposeAndApprove(t *testing.T) {
	r := NewRegistry()
	p := r.Propose("conv-1", "Instagram Post", Dimensions{Width: 1080, Height: 1080}, []Item{
		{Description: "Add background"},
		{Description: "Add headline", Details: "Inter Bold, 96px"},
	})
	require.NotEmpty(t, p.ID)
	assert.Equal(t, StatusProposed, p.Status)
	assert.True(t, r.HasProposed("conv-1"))

	approved, err := r.Approve("conv-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.False(t, r.HasProposed("conv-1"))
	assert.True(t, approved.UpdatedAt.After(p.CreatedAt) || approved.UpdatedAt.Equal(p.CreatedAt))
}

func TestRejectMismatchedID(t *testing.T) {
	r := NewRegistry()
	p := r.Propose("conv-1", "Poster", Dimensions{Width: 800, Height: 600}, nil)

	_, err := r.Reject("conv-1", "wrong-id")
	assert.ErrorIs(t, err, ErrPlanNotFound)

	_, err = r.Reject("conv-2", p.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)

	rejected, err := r.Reject("conv-1", p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
}

func TestProposeReplacesPrevious(t *testing.T) {
	r := NewRegistry()
	first := r.Propose("conv-1", "A", Dimensions{}, nil)
	second := r.Propose("conv-1", "B", Dimensions{}, nil)
	assert.NotEqual(t, first.ID, second.ID)

	_, err := r.Approve("conv-1", first.ID)
	assert.ErrorIs(t, err, ErrPlanNotFound)

	got := r.Get("conv-1")
	assert.Equal(t, "B", got.DesignType)
}

func TestInstructionFormatting(t *testing.T) {
	p := &Plan{
		DesignType: "Instagram Post",
		Dimensions: Dimensions{Width: 1080, Height: 1080},
		Items: []Item{
			{Description: "Add background"},
			{Description: "Add headline", Details: "96px"},
		},
	}
	got := p.Instruction()
	assert.Contains(t, got, "Design Type: Instagram Post")
	assert.Contains(t, got, "Canvas Dimensions: 1080 × 1080 pixels")
	assert.Contains(t, got, "1. Add background")
	assert.Contains(t, got, "2. Add headline\n   Details: 96px")
}

func TestRejectionInstructionDefaultsFeedback(t *testing.T) {
	assert.Contains(t, RejectionInstruction(""), `"Plan rejected"`)
	assert.Contains(t, RejectionInstruction("too busy"), `"too busy"`)
}
