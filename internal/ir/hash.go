package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCell = "noticeable/cell/v1"
)

// CellIDLength is the number of hex characters kept from the cell hash.
const CellIDLength = 8

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CellHash returns the full content hash of a cell's code.
// Code is NFC-normalized first so that visually identical text typed with
// different composition keeps its identity.
func CellHash(code string) string {
	return hashWithDomain(DomainCell, []byte(norm.NFC.String(code)))
}

// CellID returns the short content-addressed id of a cell's code.
// Collisions within one document are resolved by the segmenter with a
// numeric suffix, not here.
func CellID(code string) string {
	return CellHash(code)[:CellIDLength]
}
