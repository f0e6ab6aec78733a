/*
File: ioc_trie_test.go
Description: Tests for the reversed-label domain indicator trie.
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIOCTrieSuffixMatch(t *testing.T) {
	trie := NewIOCTrie()
	trie.Insert("example.com", "listed")
	trie.Insert("bad.org", "listed")

	indicator, payload, ok := trie.Match("example.com")
	assert.True(t, ok)
	assert.Equal(t, "example.com", indicator)
	assert.Equal(t, "listed", payload)

	indicator, _, ok = trie.Match("login.phish.example.com")
	assert.True(t, ok, "subdomains are covered by the parent indicator")
	assert.Equal(t, "example.com", indicator)

	_, _, ok = trie.Match("notexample.com")
	assert.False(t, ok, "label boundaries must be respected")

	_, _, ok = trie.Match("com")
	assert.False(t, ok)

	_, _, ok = trie.Match("example.org")
	assert.False(t, ok)
}

func TestIOCTrieDeepestMatchWins(t *testing.T) {
	trie := NewIOCTrie()
	trie.Insert("example.com", "broad")
	trie.Insert("evil.example.com", "narrow")

	indicator, payload, ok := trie.Match("x.evil.example.com")
	assert.True(t, ok)
	assert.Equal(t, "evil.example.com", indicator)
	assert.Equal(t, "narrow", payload)
}

func TestIOCTrieNormalizesInput(t *testing.T) {
	trie := NewIOCTrie()
	trie.Insert("*.Wild.NET", "w")
	trie.Insert(".dotted.io.", "d")

	_, _, ok := trie.Match("sub.wild.net")
	assert.True(t, ok)
	_, _, ok = trie.Match("wild.net")
	assert.True(t, ok, "wildcard prefix is redundant, base domain matches too")
	_, _, ok = trie.Match("DOTTED.IO")
	assert.True(t, ok)

	assert.Equal(t, 2, trie.Len())

	trie.Insert("wild.net", "updated")
	assert.Equal(t, 2, trie.Len(), "reinserting must not inflate the count")
}
