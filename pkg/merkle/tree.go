// Package merkle builds Merkle trees over unique-chunk strong hashes.
// The root is recorded in the archive header so a verifier can prove the
// chunk set is complete and untampered without trusting the header's
// descriptor list alone.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/cbergoon/merkletree"
)

// Content implements merkletree.Content for a chunk's strong hash.
type Content struct {
	checksum []byte
}

// NewContent wraps a chunk checksum.
func NewContent(checksum []byte) Content {
	c := make([]byte, len(checksum))
	copy(c, checksum)
	return Content{checksum: c}
}

// CalculateHash implements the Content interface.
func (c Content) CalculateHash() ([]byte, error) {
	h := sha256.New()
	if _, err := h.Write(c.checksum); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// Equals implements the Content interface.
func (c Content) Equals(other merkletree.Content) (bool, error) {
	oc, ok := other.(Content)
	if !ok {
		return false, fmt.Errorf("type mismatch")
	}
	return bytes.Equal(c.checksum, oc.checksum), nil
}

// BuildTree builds a Merkle tree over chunk checksums in unique-index
// order.
func BuildTree(checksums [][]byte) (*merkletree.MerkleTree, error) {
	if len(checksums) == 0 {
		return nil, fmt.Errorf("cannot build tree from empty checksum list")
	}

	contents := make([]merkletree.Content, 0, len(checksums))
	for _, sum := range checksums {
		contents = append(contents, NewContent(sum))
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return nil, fmt.Errorf("build merkle tree: %w", err)
	}
	return tree, nil
}

// Root returns the Merkle root over the given checksums.
func Root(checksums [][]byte) ([]byte, error) {
	tree, err := BuildTree(checksums)
	if err != nil {
		return nil, err
	}
	return tree.MerkleRoot(), nil
}

// VerifyRoot rebuilds the tree from checksums and compares its root to
// expected.
func VerifyRoot(checksums [][]byte, expected []byte) (bool, error) {
	root, err := Root(checksums)
	if err != nil {
		return false, err
	}
	return bytes.Equal(root, expected), nil
}

// VerifyContent proves a single checksum's membership in the tree.
func VerifyContent(tree *merkletree.MerkleTree, checksum []byte) (bool, error) {
	if tree == nil {
		return false, fmt.Errorf("cannot verify content in nil tree")
	}
	verified, err := tree.VerifyContent(NewContent(checksum))
	if err != nil {
		return false, fmt.Errorf("verify content: %w", err)
	}
	return verified, nil
}
