package quadtree

import (
	"github.com/aukilabs/go-tooling/pkg/errors"
)

// Validate walks a tree and reports the first violated structural invariant:
// a node with children must have exactly four, each one size smaller than
// its parent, and sizes must stay within [0, MaxSize]. Malformed trees are
// reported, never repaired.
func Validate(root *Node) error {
	return validate(root, 0)
}

func validate(n *Node, depth int) error {
	if err := checkSize(n.size); err != nil {
		return err
	}

	if n.children == nil {
		return nil
	}

	if len(n.children) != NumChildren {
		return errors.New("a node with children must have exactly four").
			WithType(ErrTypeInvalidChildCount).
			WithTag("depth", depth).
			WithTag("child_count", len(n.children))
	}

	for i, c := range n.children {
		if c == nil {
			return errors.New("nil child").
				WithType(ErrTypeInvalidChildCount).
				WithTag("depth", depth).
				WithTag("child_index", i)
		}

		if c.size != n.size-1 {
			return errors.New("child size must be one less than its parent").
				WithType(ErrTypeInvalidSize).
				WithTag("depth", depth).
				WithTag("size", n.size).
				WithTag("child_index", i).
				WithTag("child_size", c.size)
		}

		if err := validate(c, depth+1); err != nil {
			return err
		}
	}

	return nil
}
