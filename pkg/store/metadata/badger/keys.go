package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so prefixed keys organise the tree into
// logical namespaces:
//
// Data Type        Prefix   Key Format                        Value Type
// ===========================================================================
// Node Data        "f:"     f:<id>                            Node (JSON)
// Children Index   "c:"     c:<parentID>:<lower-cased name>   childID (bytes)
// Root Pointer     "cfg:"   cfg:root                          rootID (bytes)
//
// Children Index (c:)
//   - One entry per child, keyed by the lower-cased name so that collision
//     checks and lookups are case-insensitive in a single point read
//   - Listing children is a prefix scan over "c:<parentID>:"

const (
	// prefixFile is the key prefix for node data
	prefixFile = "f:"

	// prefixChild is the key prefix for the children index
	prefixChild = "c:"

	// prefixConfig is the key prefix for singletons
	prefixConfig = "cfg:"
)

// keyFile generates the key for node data.
//
// Format: "f:<id>"
func keyFile(id string) []byte {
	return []byte(prefixFile + id)
}

// keyChild generates the key for a child entry in a container.
//
// Format: "c:<parentID>:<nameKey>"
func keyChild(parentID, nameKey string) []byte {
	return []byte(prefixChild + parentID + ":" + nameKey)
}

// keyChildPrefix generates the prefix used to scan the children of a container.
func keyChildPrefix(parentID string) []byte {
	return []byte(prefixChild + parentID + ":")
}

// keyRoot is the singleton pointing at the root container.
func keyRoot() []byte {
	return []byte(prefixConfig + "root")
}
