package chama

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

const wordSize = 32

var (
	selectorChamaCount   = selector("chamaCount()")
	selectorGetChamaInfo = selector("getChamaInfo(uint256)")
)

var errShortReturn = errors.New("abi: return data too short")

// selector is the first four bytes of the Keccak-256 hash of a function signature.
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

func encodeCall(sel []byte, args ...*big.Int) string {
	buf := make([]byte, 0, len(sel)+wordSize*len(args))
	buf = append(buf, sel...)
	for _, a := range args {
		var word [wordSize]byte
		a.FillBytes(word[:])
		buf = append(buf, word[:]...)
	}
	return "0x" + hex.EncodeToString(buf)
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

func word(data []byte, offset int) ([]byte, error) {
	if offset < 0 || offset+wordSize > len(data) {
		return nil, errShortReturn
	}
	return data[offset : offset+wordSize], nil
}

func uint256At(data []byte, offset int) (*big.Int, error) {
	w, err := word(data, offset)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}

func intAt(data []byte, offset int) (int64, error) {
	v, err := uint256At(data, offset)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, fmt.Errorf("abi: value at %d overflows int64", offset)
	}
	return v.Int64(), nil
}

func addressAt(data []byte, offset int) (string, error) {
	w, err := word(data, offset)
	if err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(w[12:]), nil
}

func boolAt(data []byte, offset int) (bool, error) {
	v, err := uint256At(data, offset)
	if err != nil {
		return false, err
	}
	return v.Sign() != 0, nil
}

// stringAt reads a dynamic string whose head word at offset points, relative
// to base, at a length-prefixed byte run.
func stringAt(data []byte, base, offset int) (string, error) {
	rel, err := intAt(data, offset)
	if err != nil {
		return "", err
	}
	start := base + int(rel)
	n, err := intAt(data, start)
	if err != nil {
		return "", err
	}
	end := start + wordSize + int(n)
	if n < 0 || end > len(data) {
		return "", errShortReturn
	}
	return string(data[start+wordSize : end]), nil
}

// decodeChamaInfo decodes the getChamaInfo return value: a single dynamic
// tuple (id, name, owner, memberCount, contributionAmount,
// contributionFrequency, totalFunds, active).
func decodeChamaInfo(data []byte) (Record, error) {
	tupleOffset, err := intAt(data, 0)
	if err != nil {
		return Record{}, err
	}
	base := int(tupleOffset)
	at := func(i int) int { return base + i*wordSize }

	var r Record
	if r.ID, err = intAt(data, at(0)); err != nil {
		return Record{}, err
	}
	if r.Name, err = stringAt(data, base, at(1)); err != nil {
		return Record{}, err
	}
	if r.Owner, err = addressAt(data, at(2)); err != nil {
		return Record{}, err
	}
	if r.MemberCount, err = intAt(data, at(3)); err != nil {
		return Record{}, err
	}
	if r.ContributionWei, err = uint256At(data, at(4)); err != nil {
		return Record{}, err
	}
	if r.Frequency, err = intAt(data, at(5)); err != nil {
		return Record{}, err
	}
	if r.TotalFundsWei, err = uint256At(data, at(6)); err != nil {
		return Record{}, err
	}
	if r.Active, err = boolAt(data, at(7)); err != nil {
		return Record{}, err
	}
	return r, nil
}
