package calc

import (
	"fmt"

	"canlaw/internal/rule"
	"canlaw/internal/slot"
	"canlaw/pkg/domain"
)

// maxTreeEvalDepth bounds recursion so a tree that is malformed as a graph
// still terminates. Registry decoding validates shape, but the engine does
// not get to crash on data that bypassed it.
const maxTreeEvalDepth = 64

// evaluateTree walks a decision tree. A node without a condition yields its
// value. A conditioned node routes true to child 0 (falling back to the
// node's own value) and false to child 1 (falling back to null).
func evaluateTree(root *slot.TreeNode, inputs map[slot.Key]domain.Value) (domain.Value, error) {
	return evalTreeNode(root, inputs, 0)
}

func evalTreeNode(node *slot.TreeNode, inputs map[slot.Key]domain.Value, depth int) (domain.Value, error) {
	if node == nil {
		return domain.NullValue(), nil
	}
	if depth > maxTreeEvalDepth {
		return domain.Value{}, fmt.Errorf("decision tree exceeds evaluation depth %d", maxTreeEvalDepth)
	}
	if node.Condition == nil {
		return nodeValue(node), nil
	}

	holds, err := rule.Evaluate(*node.Condition, inputs)
	if err != nil {
		return domain.Value{}, err
	}
	if holds {
		if len(node.Children) >= 1 && node.Children[0] != nil {
			return evalTreeNode(node.Children[0], inputs, depth+1)
		}
		return nodeValue(node), nil
	}
	if len(node.Children) >= 2 && node.Children[1] != nil {
		return evalTreeNode(node.Children[1], inputs, depth+1)
	}
	return domain.NullValue(), nil
}

// nodeValue normalizes an authored absent value to null so tree results are
// always provided values.
func nodeValue(node *slot.TreeNode) domain.Value {
	if node.Value.IsMissing() {
		return domain.NullValue()
	}
	return node.Value
}
