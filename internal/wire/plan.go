package wire

import "fmt"

// PlanKind discriminates a query plan node. The set is whitelisted and
// fixed: a plan is a diagnostic object graph handed back to a caller for
// display, never an executable expression, so there is no need (and no
// safe way) to decode an arbitrary node type.
type PlanKind uint8

const (
	PlanFullScan PlanKind = iota
	PlanRangeScan
	PlanFilter
	PlanSort
	PlanProjection
	PlanUnknown
)

func (k PlanKind) String() string {
	switch k {
	case PlanFullScan:
		return "FullScan"
	case PlanRangeScan:
		return "RangeScan"
	case PlanFilter:
		return "Filter"
	case PlanSort:
		return "Sort"
	case PlanProjection:
		return "Projection"
	default:
		return "Unknown"
	}
}

// PlanNode is one node of a query plan tree. Detail is a short
// human-readable description (the index name, the filter expression, the
// sort columns); Children holds nested plan nodes, e.g. a Sort wrapping a
// RangeScan.
type PlanNode struct {
	Kind     PlanKind
	Detail   string
	Children []PlanNode
}

// EncodePlan serializes the whitelisted plan tree.
func EncodePlan(root PlanNode) []byte {
	e := NewEncoder()
	encodePlanNode(e, root)
	return e.Bytes()
}

func encodePlanNode(e *Encoder, n PlanNode) {
	e.WriteUint8(uint8(n.Kind))
	e.WriteString(n.Detail)
	e.WriteUint32(uint32(len(n.Children)))
	for _, c := range n.Children {
		encodePlanNode(e, c)
	}
}

// DecodePlan decodes a plan tree previously written by EncodePlan.
func DecodePlan(data []byte) (PlanNode, error) {
	d := NewDecoder(data)
	node, err := decodePlanNode(d, 0)
	if err != nil {
		return PlanNode{}, err
	}
	return node, nil
}

// maxPlanDepth bounds recursion against a malformed or hostile payload.
const maxPlanDepth = 64

func decodePlanNode(d *Decoder, depth int) (PlanNode, error) {
	if depth > maxPlanDepth {
		return PlanNode{}, fmt.Errorf("wire: query plan nesting exceeds %d", maxPlanDepth)
	}
	kindByte, err := d.ReadUint8()
	if err != nil {
		return PlanNode{}, err
	}
	kind := PlanKind(kindByte)
	if kind > PlanProjection {
		kind = PlanUnknown
	}
	detail, err := d.ReadString()
	if err != nil {
		return PlanNode{}, err
	}
	n, err := d.ReadUint32()
	if err != nil {
		return PlanNode{}, err
	}
	node := PlanNode{Kind: kind, Detail: detail}
	if n > 0 {
		node.Children = make([]PlanNode, 0, n)
		for i := uint32(0); i < n; i++ {
			child, err := decodePlanNode(d, depth+1)
			if err != nil {
				return PlanNode{}, err
			}
			node.Children = append(node.Children, child)
		}
	}
	return node, nil
}
