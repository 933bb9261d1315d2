package toolcall

import "math/rand/v2"

const (
	// IDPrefix prefixes every generated tool call id.
	IDPrefix = "call_"
	// IDLength is the number of random characters after IDPrefix.
	IDLength = 24

	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// GenerateID returns an OpenAI-style tool call id: "call_" followed by 24
// characters drawn uniformly from [A-Za-z0-9].
func GenerateID() string {
	b := make([]byte, IDLength)
	for i := range b {
		b[i] = idAlphabet[rand.IntN(len(idAlphabet))]
	}
	return IDPrefix + string(b)
}
