// Package tokenid derives Polymarket-style conditional-token ids from a
// condition id, a collateral address, and an outcome index. The scheme is
// bit-exact with the conditional-tokens framework: a collection id is the
// first x after hash mod p (p a BN254-family prime) for which x^3 + 3
// is a quadratic residue mod p, and the token id is the low 64 bits of
// keccak256(collateral || collection).
package tokenid

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// p is the BN254 base field modulus the quadratic-residue search is
// performed over.
var p, _ = new(big.Int).SetString(
	"21888242871839275222246405745257275088696311157297823662689037894645226208583", 10)

var (
	one   = big.NewInt(1)
	two   = big.NewInt(2)
	three = big.NewInt(3)
)

// GetTokenID derives the 64-bit token id for (conditionID, collateralAddr,
// tokenIndex). tokenIndex must be 0 or 1 for a binary market.
func GetTokenID(conditionID, collateralAddr string, tokenIndex uint32) (uint64, error) {
	indexSet := uint64(1) << tokenIndex
	collection, err := GetCollectionID(conditionID, indexSet)
	if err != nil {
		return 0, err
	}
	return getPositionID(collateralAddr, collection)
}

// GetCollectionID computes the 32-byte collection id for a condition id and
// index set, returned as a 0x-prefixed hex string. Steps 1-6 of §6.
func GetCollectionID(conditionID string, indexSet uint64) (string, error) {
	x1, err := getX1(conditionID, indexSet)
	if err != nil {
		return "", err
	}

	odd := x1.Bit(255) == 1

	a := new(big.Int).Mod(x1, p)

	for {
		a.Add(a, one)
		if a.Cmp(p) >= 0 {
			a.Mod(a, p)
		}

		// yy = (a^3 + 3) mod p
		yy := new(big.Int).Exp(a, three, p)
		yy.Add(yy, three)
		yy.Mod(yy, p)

		if isQuadraticResidue(yy) {
			break
		}
	}

	if odd {
		// set bit 254
		bit254 := new(big.Int).Lsh(one, 254)
		a.Or(a, bit254)
	}

	return fmt.Sprintf("0x%064x", a), nil
}

// isQuadraticResidue applies the Euler criterion: yy^((p-1)/2) mod p == 1.
func isQuadraticResidue(yy *big.Int) bool {
	exp := new(big.Int).Sub(p, one)
	exp.Div(exp, two)
	r := new(big.Int).Exp(yy, exp, p)
	return r.Cmp(one) == 0
}

func getX1(conditionID string, indexSet uint64) (*big.Int, error) {
	condBytes, err := decodeHex(conditionID)
	if err != nil {
		return nil, fmt.Errorf("decode condition id: %w", err)
	}

	var indexBytes [8]byte
	binary.BigEndian.PutUint64(indexBytes[:], indexSet)

	input := append(append([]byte{}, condBytes...), indexBytes[:]...)
	hash := crypto.Keccak256(input)
	return new(big.Int).SetBytes(hash), nil
}

func getPositionID(collateralAddr, collectionID string) (uint64, error) {
	collateralBytes, err := decodeHex(collateralAddr)
	if err != nil {
		return 0, fmt.Errorf("decode collateral address: %w", err)
	}
	collectionBytes, err := decodeHex(collectionID)
	if err != nil {
		return 0, fmt.Errorf("decode collection id: %w", err)
	}

	input := append(append([]byte{}, collateralBytes...), collectionBytes...)
	hash := crypto.Keccak256(input)

	return binary.BigEndian.Uint64(hash[len(hash)-8:]), nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return hex.DecodeString(s)
}
