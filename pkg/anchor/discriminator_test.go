package anchor

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetDiscriminator(t *testing.T) {
	sum := sha256.Sum256([]byte("global:swap_a_for_b"))

	got := GetDiscriminator(GlobalNamespace, "swap_a_for_b")
	assert.Len(t, got, 8)
	assert.Equal(t, sum[:8], got)
	assert.Equal(t, got, InstructionDiscriminator("swap_a_for_b"))
}

func TestDiscriminatorsDiffer(t *testing.T) {
	names := []string{
		"initialize_vault_token_a",
		"initialize_vault_token_b",
		"token_a_deposit_in_pda_vault",
		"token_b_deposit_in_pda_vault",
		"swap_a_for_b",
		"swap_b_for_a",
	}
	seen := make(map[string]string)
	for _, name := range names {
		d := string(InstructionDiscriminator(name))
		if prev, ok := seen[d]; ok {
			t.Fatalf("%s and %s share a discriminator", prev, name)
		}
		seen[d] = name
	}
}
