package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/lumenyx-chain/lumenyx/field"
)

// PathFile is the serialized authentication path handed to external
// proving tools: the root in the storage (big-endian) convention, the
// siblings in the circuit (little-endian) convention the prover consumes.
type PathFile struct {
	LeafIndex int      `json:"leaf_index"`
	Root      string   `json:"root"`
	Path      []string `json:"path_le"`
	Indices   []bool   `json:"indices"`
}

// ExportPath rebuilds the tree from the ledger, extracts the
// authentication path for leafIndex and writes it to outPath
func (f *Frontend) ExportPath(ctx context.Context, leafIndex int, outPath string) (*PathFile, error) {
	tree, root, err := f.syncTree(ctx)
	if err != nil {
		return nil, err
	}
	path, err := tree.Path(leafIndex)
	if err != nil {
		return nil, err
	}

	out := &PathFile{
		LeafIndex: leafIndex,
		Root:      field.StorageBytes(root).Hex(),
		Path:      make([]string, len(path.Siblings)),
		Indices:   append([]bool(nil), path.IsRight...),
	}
	for i, sib := range path.Siblings {
		le := field.StorageBytes(sib).ToCircuit()
		out.Path[i] = hexutil.Encode(le[:])
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode path file: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write path file: %w", err)
	}
	f.log.Info().Int("leaf_index", leafIndex).Str("file", outPath).Msg("authentication path exported")
	return out, nil
}
