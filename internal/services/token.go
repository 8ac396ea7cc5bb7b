package services

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/sqids/sqids-go"
)

// TokenSource issues unguessable, URL-safe verification tokens.
type TokenSource struct {
	sq *sqids.Sqids
}

// NewTokenSource builds a token source; tokens are at least 20 characters.
func NewTokenSource() (*TokenSource, error) {
	sq, err := sqids.New(sqids.Options{MinLength: 20})
	if err != nil {
		return nil, err
	}
	return &TokenSource{sq: sq}, nil
}

// Next encodes 128 random bits.
func (t *TokenSource) Next() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return t.sq.Encode([]uint64{
		binary.BigEndian.Uint64(b[:8]),
		binary.BigEndian.Uint64(b[8:]),
	})
}
