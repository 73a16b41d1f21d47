package badger

import (
	"encoding/json"
	"fmt"

	"github.com/marmos91/wopihost/pkg/store/metadata"
)

// Nodes are stored as JSON: human-readable when inspecting the database and
// tolerant to new fields being added to metadata.Node.

func encodeNode(node *metadata.Node) ([]byte, error) {
	bytes, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode node: %w", err)
	}
	return bytes, nil
}

func decodeNode(bytes []byte) (*metadata.Node, error) {
	var node metadata.Node
	if err := json.Unmarshal(bytes, &node); err != nil {
		return nil, fmt.Errorf("failed to decode node: %w", err)
	}
	return &node, nil
}
