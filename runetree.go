package kimi_bpe

import "strings"

// RuneNode is one node of the reserved-token trie. Terminal nodes mark a
// complete reserved token; `runes` holds the full path from the root, so a
// terminal node knows the token it spells without walking back up.
type RuneNode struct {
	rune      rune
	runes     []rune
	terminal  bool
	childs    map[rune]*RuneNode
	childsArr *[]*RuneNode
}

// evaluate steps from node along r, returning the child and whether it
// completes a reserved token. Nodes with few children carry an array
// alongside the map, as scanning a short array beats hashing a rune.
func (root *RuneNode) evaluate(node *RuneNode, r rune) (*RuneNode, bool) {
	if node.childsArr != nil {
		for _, child := range *node.childsArr {
			if child.rune == r {
				return child, child.terminal
			}
		}
		return nil, false
	}
	if child, ok := node.childs[r]; ok {
		return child, child.terminal
	}
	return nil, false
}

// match walks the trie as far as runes allows and returns the deepest
// terminal node passed on the way, or nil if no reserved token starts here.
// Keeping the deepest terminal gives the longest token precedence when one
// reserved token is a prefix of another.
func (root *RuneNode) match(runes []rune) *RuneNode {
	node := root
	var deepest *RuneNode
	for _, r := range runes {
		next, terminal := root.evaluate(node, r)
		if next == nil {
			break
		}
		if terminal {
			deepest = next
		}
		node = next
	}
	return deepest
}

func (node *RuneNode) string(level int) string {
	if node == nil {
		return ""
	}
	s := string(node.rune)
	if len(node.childs) == 1 {
		// Single-child chains print on one line.
		for r := range node.childs {
			s += node.childs[r].string(level)
		}
		return s
	}
	level += 1
	s += "\n"
	idx := 0
	for r := range node.childs {
		childPrefix := strings.Repeat("| ", level-1)
		if idx == len(node.childs)-1 {
			childPrefix += "└─"
		} else {
			childPrefix += "├─"
		}
		s += childPrefix + node.childs[r].string(level)
		idx += 1
	}
	return s
}

// String renders the trie with box-drawing characters, for debugging.
func (node *RuneNode) String() string {
	return node.string(0)
}

// createRuneTree compiles the codec's reserved tokens into a trie keyed by
// rune, so the input scan can match reserved tokens in a single pass.
func (codec *Codec) createRuneTree() *RuneNode {
	runeTree := &RuneNode{
		runes:  []rune{},
		childs: make(map[rune]*RuneNode, 0),
	}
	for _, token := range codec.specialsArr {
		tokenRunes := []rune(token)
		node := runeTree
		for i, r := range tokenRunes {
			childNode, ok := node.childs[r]
			if !ok {
				childNode = &RuneNode{
					rune:     r,
					runes:    tokenRunes[:i+1],
					terminal: i == len(tokenRunes)-1,
					childs:   make(map[rune]*RuneNode, 0),
				}
				node.childs[r] = childNode
				if len(node.childs) > 10 {
					// Past 10 children the array scan loses to the map.
					node.childsArr = nil
				} else {
					if node.childsArr == nil {
						children := make([]*RuneNode, 0, 10)
						node.childsArr = &children
					}
					*node.childsArr = append(*node.childsArr, childNode)
				}
			} else if i == len(tokenRunes)-1 {
				childNode.terminal = true
			}
			node = childNode
		}
	}
	return runeTree
}
