/*
File: ioc_trie.go
Version: 1.1.0
Description: Reversed-label trie for domain indicators. An indicator covers
             the domain itself and every subdomain under it, so lookups walk
             labels right-to-left and report the deepest covering indicator.
*/

package main

import (
	"strings"
)

type iocTrieNode struct {
	children  map[string]*iocTrieNode
	payload   string
	indicator string // full indicator domain, set when this node terminates one
	terminal  bool
}

// IOCTrie indexes domain indicators for suffix matching. Not safe for
// concurrent mutation; populate at load time, read freely afterwards.
type IOCTrie struct {
	root *iocTrieNode
	size int
}

func NewIOCTrie() *IOCTrie {
	return &IOCTrie{root: &iocTrieNode{}}
}

func (t *IOCTrie) Len() int { return t.size }

// Insert adds an indicator domain. A leading "*." or "." is accepted and
// ignored: every indicator already covers its subdomains.
func (t *IOCTrie) Insert(domain, payload string) {
	domain = strings.ToLower(strings.Trim(domain, "."))
	domain = strings.TrimPrefix(domain, "*.")
	if domain == "" {
		return
	}

	node := t.root
	end := len(domain)
	for end > 0 {
		start := strings.LastIndexByte(domain[:end], '.')
		label := domain[start+1 : end]

		if node.children == nil {
			node.children = make(map[string]*iocTrieNode)
		}
		child, ok := node.children[label]
		if !ok {
			child = &iocTrieNode{}
			node.children[label] = child
		}
		node = child

		if start == -1 {
			break
		}
		end = start
	}

	if !node.terminal {
		t.size++
	}
	node.terminal = true
	node.indicator = domain
	node.payload = payload
}

// Match walks the host's labels right-to-left and returns the deepest
// indicator covering it. "login.bad.example.com" matches an "example.com"
// indicator; "notexample.com" does not.
func (t *IOCTrie) Match(host string) (indicator, payload string, ok bool) {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	node := t.root

	end := len(host)
	for end > 0 {
		start := strings.LastIndexByte(host[:end], '.')
		label := host[start+1 : end]

		if node.children == nil {
			break
		}
		next, found := node.children[label]
		if !found {
			break
		}
		node = next

		if node.terminal {
			indicator, payload, ok = node.indicator, node.payload, true
		}
		if start == -1 {
			break
		}
		end = start
	}
	return indicator, payload, ok
}
