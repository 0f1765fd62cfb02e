package realtime

import (
	"encoding/json"
	"fmt"
)

// node is an interior tree node. Leaves are JSON scalars or arrays.
type node = map[string]any

var nullJSON = []byte("null")

func lookup(root node, segs []string) any {
	var cur any = root
	for _, s := range segs {
		n, ok := cur.(node)
		if !ok {
			return nil
		}
		cur, ok = n[s]
		if !ok {
			return nil
		}
	}
	return cur
}

// assign stores v at segs, creating interior nodes and replacing any scalar
// in the way. A nil v removes the node.
func assign(root node, segs []string, v any) {
	if v == nil {
		remove(root, segs)
		return
	}
	n := root
	for _, s := range segs[:len(segs)-1] {
		child, ok := n[s].(node)
		if !ok {
			child = node{}
			n[s] = child
		}
		n = child
	}
	n[segs[len(segs)-1]] = v
}

// remove deletes the node at segs and prunes ancestors left empty.
func remove(n node, segs []string) {
	if len(segs) == 1 {
		delete(n, segs[0])
		return
	}
	child, ok := n[segs[0]].(node)
	if !ok {
		return
	}
	remove(child, segs[1:])
	if len(child) == 0 {
		delete(n, segs[0])
	}
}

// normalize converts an arbitrary Go value into tree form by a JSON round
// trip, dropping nulls and empty objects. It returns the tree value and its
// encoding; both are nil when nothing would be stored.
func normalize(value any) (any, []byte, error) {
	if value == nil {
		return nil, nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, nil, fmt.Errorf("encode value: %w", err)
	}
	return decodeValue(raw)
}

func decodeValue(raw []byte) (any, []byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, fmt.Errorf("decode value: %w", err)
	}
	v = prune(v)
	if v == nil {
		return nil, nil, nil
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, nil, fmt.Errorf("encode value: %w", err)
	}
	return v, out, nil
}

func prune(v any) any {
	n, ok := v.(node)
	if !ok {
		return v
	}
	for k, child := range n {
		if p := prune(child); p == nil {
			delete(n, k)
		} else {
			n[k] = p
		}
	}
	if len(n) == 0 {
		return nil
	}
	return n
}

func encode(v any) []byte {
	if v == nil {
		return nullJSON
	}
	raw, err := json.Marshal(v)
	if err != nil {
		// Tree values come from JSON, so they always re-encode.
		return nullJSON
	}
	return raw
}
