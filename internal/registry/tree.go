package registry

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/heywhy/bucket/internal/log"
)

// State is the lifecycle state of a tree node.
type State int

const (
	StatePending State = iota
	StateExpanded
	StateInstantiated
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateExpanded:
		return "expanded"
	case StateInstantiated:
		return "instantiated"
	default:
		return "unknown"
	}
}

// Node is one occurrence of a component in a dependency tree. Children are
// in declaration order; child j serves dependency j.
type Node struct {
	ID         string
	Definition *Definition
	State      State
	Instance   any
	Children   []*Node
}

// Flatten returns the nodes of the tree in pre-order.
func (n *Node) Flatten() []*Node {
	var nodes []*Node
	n.Walk(func(node *Node, _ int) {
		nodes = append(nodes, node)
	})
	return nodes
}

// IDs returns the ids of the tree in pre-order, parallel to Flatten.
func (n *Node) IDs() []string {
	var ids []string
	n.Walk(func(node *Node, _ int) {
		ids = append(ids, node.ID)
	})
	return ids
}

// Walk visits the tree in pre-order, passing each node with its depth.
func (n *Node) Walk(fn func(node *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(node *Node, depth int), depth int) {
	fn(n, depth)
	for _, child := range n.Children {
		child.walk(fn, depth+1)
	}
}

// Tree builds the expanded, uninstantiated dependency tree rooted at id.
// Unknown ids are fetched through the loader as they are encountered.
func (r *Registry) Tree(ctx context.Context, id string) (*Node, error) {
	id = NormalizeID(id)
	def, err := r.definition(ctx, id)
	if err != nil {
		return nil, err
	}

	root := &Node{ID: id, Definition: def}
	if err := r.expand(ctx, root, []string{id}); err != nil {
		return nil, err
	}
	return root, nil
}

// expand attaches a child node per declared dependency and recurses depth
// first. path holds the ids from the root down to node.
func (r *Registry) expand(ctx context.Context, node *Node, path []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var missing []string
	for _, dep := range node.Definition.Dependencies {
		if !r.Has(dep) && !slices.Contains(missing, dep) {
			missing = append(missing, dep)
		}
	}
	if err := r.load(ctx, missing...); err != nil {
		return err
	}

	for _, dep := range node.Definition.Dependencies {
		if slices.Contains(path, dep) {
			return fmt.Errorf("%w: %s -> %s", ErrCircularDependency, strings.Join(path, " -> "), dep)
		}
		def, ok := r.Lookup(dep)
		if !ok {
			return fmt.Errorf("%w: %s (required by %s)", ErrNotRegistered, dep, node.ID)
		}

		child := &Node{ID: dep, Definition: def}
		node.Children = append(node.Children, child)

		if err := r.expand(ctx, child, append(path[:len(path):len(path)], dep)); err != nil {
			return err
		}
	}

	node.State = StateExpanded
	return nil
}

// instantiateTree walks the flattened tree from the last node to the first
// and returns the root instance.
func (r *Registry) instantiateTree(ctx context.Context, root *Node) (any, error) {
	nodes := root.Flatten()
	log.Debug(log.CatTree, "instantiating tree", "root", root.ID, "nodes", len(nodes))

	for i := len(nodes) - 1; i >= 0; i-- {
		if nodes[i].State == StateInstantiated {
			continue
		}
		if err := r.instantiate(ctx, nodes[i]); err != nil {
			return nil, err
		}
	}
	return root.Instance, nil
}

func (r *Registry) instantiate(ctx context.Context, node *Node) error {
	def := node.Definition

	var resolved []any
	if def.HasDependencies() && def.Factory.Arity() > 0 {
		resolved = make([]any, 0, len(node.Children))
		for _, child := range node.Children {
			if child.State != StateInstantiated {
				log.Debug(log.CatTree, "instantiating pending child in place", "parent", node.ID, "child", child.ID)
				if err := r.instantiate(ctx, child); err != nil {
					return err
				}
			}
			resolved = append(resolved, child.Instance)
		}
	}

	instance, err := r.construct(ctx, def, arguments(def, resolved))
	if err != nil {
		return err
	}
	node.Instance = instance
	node.State = StateInstantiated
	return nil
}
