// Package deephash computes the canonical recursive digest that binds every
// field of a bundle item into one signable message.
//
// The scheme is structure-sensitive: both the order of list items and the
// byte length of each blob feed the digest, so a single reordering or
// off-by-one length produces a different result. All parties that verify a
// published item recompute the same tree and must arrive at identical bytes.
package deephash

import (
	"crypto/sha512"
	"strconv"
)

// Size is the digest size in bytes (SHA-384).
const Size = sha512.Size384

// Node is a tagged union: either a blob of bytes or an ordered list of
// nodes. Nodes are immutable once constructed.
type Node struct {
	blob   []byte
	items  []Node
	isList bool
}

// Blob wraps raw bytes as a leaf node. Empty slices are valid.
func Blob(b []byte) Node {
	return Node{blob: b}
}

// List wraps an ordered sequence of nodes.
func List(items ...Node) Node {
	return Node{items: items, isList: true}
}

// Hash computes the deep hash of a node tree.
//
// Blob(b):  sha384(sha384("blob" + decimalLen(b)) || sha384(b))
// List(xs): fold acc = sha384(acc || Hash(x)) over xs,
//           seeded with acc = sha384("list" + decimalLen(xs))
func Hash(n Node) [Size]byte {
	if n.isList {
		return hashList(n.items)
	}
	return hashBlob(n.blob)
}

func hashBlob(b []byte) [Size]byte {
	tagHash := sha512.Sum384([]byte("blob" + strconv.Itoa(len(b))))
	dataHash := sha512.Sum384(b)

	h := sha512.New384()
	h.Write(tagHash[:])
	h.Write(dataHash[:])

	var out [Size]byte
	h.Sum(out[:0])
	return out
}

func hashList(items []Node) [Size]byte {
	acc := sha512.Sum384([]byte("list" + strconv.Itoa(len(items))))
	for _, item := range items {
		itemHash := Hash(item)

		h := sha512.New384()
		h.Write(acc[:])
		h.Write(itemHash[:])
		h.Sum(acc[:0])
	}
	return acc
}
