// Package canvas turns a design document into a drawable scene and exports
// it as PNG, JPEG, or SVG markup.
package canvas

import (
	"sort"

	"canvasmith/internal/design"
)

// Node is one drawable resolved from an operation. Nodes carry the owning
// operation id so selection and edits can round-trip back to the document.
type Node struct {
	OperationID string
	ZIndex      int
	Object      design.Object

	seq int
}

// Scene is the flattened, z-ordered view of a design revision.
type Scene struct {
	Width  int
	Height int
	Nodes  []Node

	// Selected is the operation id of the selected node, empty when nothing
	// is selected or the selected operation no longer exists.
	Selected string
}

// BuildScene flattens the operation list into z-order. erase operations hide
// the nodes they list; fill operations recolor their target. Ties in zIndex
// keep document order. prev, when non-nil, carries the selection across the
// rebuild; a selection whose operation is gone is cleared.
func BuildScene(d *design.Design, prev *Scene) *Scene {
	s := &Scene{Width: d.Width, Height: d.Height}

	erased := make(map[string]bool)
	fills := make(map[string]string)
	for _, op := range d.Operations {
		switch op.Type {
		case design.OpErase:
			for _, id := range op.ObjectIDs {
				erased[id] = true
			}
		case design.OpFill:
			fills[op.ObjectID] = op.Fill
		}
	}

	seq := 0
	add := func(opID string, zIndex int, obj design.Object) {
		if fill, ok := fills[opID]; ok {
			obj.Fill = fill
			obj.Gradient = nil
		}
		s.Nodes = append(s.Nodes, Node{OperationID: opID, ZIndex: zIndex, Object: obj, seq: seq})
		seq++
	}

	for _, op := range d.Operations {
		if erased[op.ID] {
			continue
		}
		switch op.Type {
		case design.OpShape, design.OpText, design.OpImage, design.OpSVG:
			if op.Object != nil {
				add(op.ID, op.ZIndex, *op.Object)
			}
		case design.OpDraw:
			for _, obj := range op.Objects {
				add(op.ID, op.ZIndex, obj)
			}
		}
	}

	sort.SliceStable(s.Nodes, func(i, j int) bool {
		if s.Nodes[i].ZIndex != s.Nodes[j].ZIndex {
			return s.Nodes[i].ZIndex < s.Nodes[j].ZIndex
		}
		return s.Nodes[i].seq < s.Nodes[j].seq
	})

	if prev != nil && prev.Selected != "" {
		for _, n := range s.Nodes {
			if n.OperationID == prev.Selected {
				s.Selected = prev.Selected
				break
			}
		}
	}
	return s
}

// Find returns the first node owned by the given operation id.
func (s *Scene) Find(operationID string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.OperationID == operationID {
			return n, true
		}
	}
	return Node{}, false
}
