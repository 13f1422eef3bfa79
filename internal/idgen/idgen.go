// Package idgen generates short ids used to correlate socket connections in
// logs.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// ConnPrefix is prepended to every connection id.
const ConnPrefix = "conn-"

// Alphabet is the character set of the random part.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters, excluding the prefix.
const Length = 8

// Conn returns a new connection id such as "conn-k3x9q2ab".
func Conn() string {
	id, err := WithPrefix(ConnPrefix)
	if err != nil {
		// nanoid only fails when crypto/rand does.
		return ConnPrefix + "unknown"
	}
	return id
}

// WithPrefix returns a new id with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
