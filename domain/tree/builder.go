// Package tree converts the flat article/question records of a learning map
// into a rooted tree and assigns Cartesian coordinates to it. Both operations
// are pure: no I/O, no shared state, deterministic output for a given input.
package tree

import (
	"learnmap-backend/domain/core/entities"
)

// Node is one article in the built tree together with the question that led
// to it. The root's Question is nil. Children keep the order in which their
// questions were supplied.
type Node struct {
	Article  *entities.Article
	Question *entities.Question
	Children []*Node
}

// ID returns the wrapped article's identifier.
func (n *Node) ID() string {
	return n.Article.ID().String()
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *Node) Size() int {
	total := 1
	for _, c := range n.Children {
		total += c.Size()
	}
	return total
}

// Build assembles a rooted tree from flat article and question collections.
//
// It returns nil, not an error, whenever the input does not describe exactly
// one tree: no articles, zero or multiple roots, an article claimed as child
// by more than one question, the root appearing as a child (which is how a
// cycle through the root shows up), or multiple articles with no questions
// to relate them. Callers must treat nil as a valid, displayable empty state.
//
// Questions whose parent or child article is absent from the article set are
// skipped rather than failing the build.
func Build(articles []*entities.Article, questions []*entities.Question) *Node {
	if len(articles) == 0 {
		return nil
	}

	nodes := make(map[string]*Node, len(articles))
	var root *Node
	for _, a := range articles {
		n := &Node{Article: a}
		nodes[a.ID().String()] = n
		if a.IsRoot() {
			if root != nil {
				return nil
			}
			root = n
		}
	}
	if root == nil {
		return nil
	}
	if len(articles) > 1 && len(questions) == 0 {
		return nil
	}

	seenChild := make(map[string]bool, len(questions))
	for _, q := range questions {
		parent, ok := nodes[q.ParentArticleID().String()]
		if !ok {
			continue
		}
		child, ok := nodes[q.ChildArticleID().String()]
		if !ok {
			continue
		}
		childID := q.ChildArticleID().String()
		if seenChild[childID] {
			return nil
		}
		seenChild[childID] = true
		if child == root {
			return nil
		}
		child.Question = q
		parent.Children = append(parent.Children, child)
	}

	return root
}
