package anchor

import "crypto/sha256"

// GlobalNamespace prefixes the sighash of every program instruction
const GlobalNamespace = "global"

// GetDiscriminator returns the 8-byte Anchor discriminator for namespace:name
func GetDiscriminator(namespace, name string) []byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	return sum[:8]
}

// InstructionDiscriminator is GetDiscriminator in the global namespace
func InstructionDiscriminator(name string) []byte {
	return GetDiscriminator(GlobalNamespace, name)
}
