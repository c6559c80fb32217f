package merkle

import (
	"github.com/yourusername/powledger/internal/crypto"
)

// BuildMerkleRoot constructs a merkle root from leaf hashes.
// If there's an odd number of hashes, the last one is duplicated.
func BuildMerkleRoot(alg crypto.Algorithm, hashes [][]byte) []byte {
	if len(hashes) == 0 {
		return make([]byte, crypto.DigestSize) // Empty merkle root
	}

	// Make a copy to avoid modifying the original slice
	tree := make([][]byte, len(hashes))
	copy(tree, hashes)

	// Build the tree bottom-up
	for len(tree) > 1 {
		if len(tree)%2 != 0 {
			tree = append(tree, tree[len(tree)-1])
		}

		newLevel := make([][]byte, 0, len(tree)/2)
		for i := 0; i < len(tree); i += 2 {
			combined := make([]byte, 0, len(tree[i])+len(tree[i+1]))
			combined = append(combined, tree[i]...)
			combined = append(combined, tree[i+1]...)
			newLevel = append(newLevel, alg.Double(combined))
		}

		tree = newLevel
	}

	return tree[0]
}

// TransactionsRoot hashes each payload and returns the merkle root of the leaves.
// Duplicate-last padding means the root alone does not pin the payload count;
// block hashing commits to the count separately.
func TransactionsRoot(alg crypto.Algorithm, transactions []string) []byte {
	leaves := make([][]byte, len(transactions))
	for i, payload := range transactions {
		leaves[i] = alg.Sum([]byte(payload))
	}
	return BuildMerkleRoot(alg, leaves)
}
