package rpcclient

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Node is the sum type over the external service's deeply nested
// positional reply arrays: Null | Num | Str | Bool | List[Node]. Parsers
// in internal/catalog walk these with the safe accessors below rather
// than type-asserting raw interface{} values directly.
type Node interface{ isNode() }

type NullNode struct{}
type NumNode float64
type StrNode string
type BoolNode bool
type ListNode []Node

func (NullNode) isNode() {}
func (NumNode) isNode()  {}
func (StrNode) isNode()  {}
func (BoolNode) isNode() {}
func (ListNode) isNode() {}

// nodeFromAny converts a json.Unmarshal-produced interface{} tree into Nodes.
func nodeFromAny(v interface{}) Node {
	switch t := v.(type) {
	case nil:
		return NullNode{}
	case float64:
		return NumNode(t)
	case string:
		return StrNode(t)
	case bool:
		return BoolNode(t)
	case []interface{}:
		list := make(ListNode, len(t))
		for i, item := range t {
			list[i] = nodeFromAny(item)
		}
		return list
	default:
		return NullNode{}
	}
}

// At returns element i of a ListNode, or NullNode{} if out of range or n
// is not a list. Total: never panics.
func At(n Node, i int) Node {
	list, ok := n.(ListNode)
	if !ok || i < 0 || i >= len(list) {
		return NullNode{}
	}
	return list[i]
}

// Str returns the string value of n, or "" if n is not a StrNode.
func Str(n Node) string {
	if s, ok := n.(StrNode); ok {
		return string(s)
	}
	return ""
}

// NumOrZero returns the numeric value of n, or 0 if n is not a NumNode.
func NumOrZero(n Node) float64 {
	if v, ok := n.(NumNode); ok {
		return float64(v)
	}
	return 0
}

// BoolOrFalse returns the boolean value of n, or false if n is not a BoolNode.
func BoolOrFalse(n Node) bool {
	if v, ok := n.(BoolNode); ok {
		return bool(v)
	}
	return false
}

// Len returns the length of n if it is a ListNode, else 0.
func Len(n Node) int {
	if list, ok := n.(ListNode); ok {
		return len(list)
	}
	return 0
}

// ParseWrbPayload locates the first response line containing "wrb.fr",
// parses it as JSON, extracts the inner payload string at position [0][2],
// and re-parses that string as JSON into a Node tree. This is the
// batchexecute envelope format and must stay bit-exact with the provider.
func ParseWrbPayload(responseBody string) (Node, error) {
	var jsonLine string
	for _, line := range strings.Split(responseBody, "\n") {
		candidate := strings.TrimSpace(line)
		if strings.Contains(candidate, "wrb.fr") {
			jsonLine = candidate
			break
		}
	}
	if jsonLine == "" {
		return nil, fmt.Errorf("rpcclient: no wrb.fr envelope found")
	}

	var envelope []interface{}
	if err := json.Unmarshal([]byte(jsonLine), &envelope); err != nil {
		return nil, fmt.Errorf("rpcclient: parse envelope: %w", err)
	}
	if len(envelope) == 0 {
		return nil, fmt.Errorf("rpcclient: empty envelope")
	}
	first, ok := envelope[0].([]interface{})
	if !ok || len(first) <= 2 {
		return nil, fmt.Errorf("rpcclient: missing payload in wrb.fr envelope")
	}
	payloadStr, ok := first[2].(string)
	if !ok || payloadStr == "" {
		return nil, fmt.Errorf("rpcclient: missing payload in wrb.fr envelope")
	}

	var inner interface{}
	if err := json.Unmarshal([]byte(payloadStr), &inner); err != nil {
		return nil, fmt.Errorf("rpcclient: parse payload: %w", err)
	}
	return nodeFromAny(inner), nil
}
