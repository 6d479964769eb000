package models

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoPaths is returned when a document has no usable paths mapping.
	ErrNoPaths = errors.New("document has no paths")
	// ErrNotMapping is returned when a specification document is not a mapping.
	ErrNotMapping = errors.New("document is not a mapping")
)

// Operation is one (method, details) entry under a path.
type Operation struct {
	Method  string
	Details *yaml.Node
}

type pathItem struct {
	path    string
	ops     []Operation
	methods map[string]int
}

// Paths is an insertion-ordered path -> method -> details mapping.
// Set overwrites an existing (path, method) pair in place, so the first
// insertion keeps its position and the last write keeps its value.
type Paths struct {
	items []*pathItem
	index map[string]int
}

// NewPaths returns an empty Paths.
func NewPaths() *Paths {
	return &Paths{index: make(map[string]int)}
}

// Set stores details for (path, method).
func (p *Paths) Set(path, method string, details *yaml.Node) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	idx, ok := p.index[path]
	if !ok {
		p.items = append(p.items, &pathItem{path: path, methods: make(map[string]int)})
		idx = len(p.items) - 1
		p.index[path] = idx
	}
	item := p.items[idx]
	if m, ok := item.methods[method]; ok {
		item.ops[m].Details = details
		return
	}
	item.ops = append(item.ops, Operation{Method: method, Details: details})
	item.methods[method] = len(item.ops) - 1
}

// Get returns the details stored for (path, method).
func (p *Paths) Get(path, method string) (*yaml.Node, bool) {
	if p == nil {
		return nil, false
	}
	idx, ok := p.index[path]
	if !ok {
		return nil, false
	}
	item := p.items[idx]
	m, ok := item.methods[method]
	if !ok {
		return nil, false
	}
	return item.ops[m].Details, true
}

// Paths returns path keys in insertion order.
func (p *Paths) Paths() []string {
	if p == nil {
		return nil
	}
	out := make([]string, 0, len(p.items))
	for _, item := range p.items {
		out = append(out, item.path)
	}
	return out
}

// Operations returns the operations of path in insertion order.
func (p *Paths) Operations(path string) []Operation {
	if p == nil {
		return nil
	}
	idx, ok := p.index[path]
	if !ok {
		return nil
	}
	return append([]Operation(nil), p.items[idx].ops...)
}

// Len returns the number of distinct paths.
func (p *Paths) Len() int {
	if p == nil {
		return 0
	}
	return len(p.items)
}

// OperationCount returns the number of (path, method) pairs.
func (p *Paths) OperationCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, item := range p.items {
		n += len(item.ops)
	}
	return n
}

// Summary lists methods per path, used for JSON views.
func (p *Paths) Summary() map[string][]string {
	out := make(map[string][]string, p.Len())
	if p == nil {
		return out
	}
	for _, item := range p.items {
		methods := make([]string, 0, len(item.ops))
		for _, op := range item.ops {
			methods = append(methods, op.Method)
		}
		out[item.path] = methods
	}
	return out
}

// Node renders the paths as a YAML mapping node preserving insertion order.
func (p *Paths) Node() *yaml.Node {
	root := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if p == nil {
		return root
	}
	for _, item := range p.items {
		methods := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, op := range item.ops {
			details := op.Details
			if details == nil {
				details = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
			}
			methods.Content = append(methods.Content, scalar(op.Method), details)
		}
		root.Content = append(root.Content, scalar(item.path), methods)
	}
	return root
}

// ParsePaths decodes a YAML document and returns its top-level paths mapping.
// Path items that are not mappings are skipped; ErrNoPaths is returned when
// nothing usable remains.
func ParsePaths(raw string) (*Paths, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, ErrNoPaths
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, ErrNotMapping
	}
	pathsNode := mappingValue(root, "paths")
	if pathsNode == nil || pathsNode.Kind != yaml.MappingNode {
		return nil, ErrNoPaths
	}
	out := NewPaths()
	for i := 0; i+1 < len(pathsNode.Content); i += 2 {
		key, item := pathsNode.Content[i], pathsNode.Content[i+1]
		item = resolveAlias(item)
		if item.Kind != yaml.MappingNode {
			continue
		}
		path := strings.TrimSpace(key.Value)
		if path == "" {
			continue
		}
		for j := 0; j+1 < len(item.Content); j += 2 {
			method := strings.TrimSpace(item.Content[j].Value)
			if method == "" {
				continue
			}
			out.Set(path, method, detach(item.Content[j+1]))
		}
	}
	if out.OperationCount() == 0 {
		return nil, ErrNoPaths
	}
	return out, nil
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return resolveAlias(m.Content[i+1])
		}
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// detach deep-copies n with aliases expanded and anchors dropped so the node
// can be emitted into another document.
func detach(n *yaml.Node) *yaml.Node {
	n = resolveAlias(n)
	if n == nil {
		return nil
	}
	cp := *n
	cp.Anchor = ""
	cp.Alias = nil
	cp.HeadComment, cp.LineComment, cp.FootComment = "", "", ""
	if len(n.Content) > 0 {
		cp.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			cp.Content[i] = detach(c)
		}
	}
	return &cp
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
