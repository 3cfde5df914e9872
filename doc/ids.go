package doc

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// FlowIDPrefix marks share codes
const FlowIDPrefix = "co_z"

// NewFlowID returns a fresh share code: the prefix followed by base58 of
// 16 random bytes.
func NewFlowID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return FlowIDPrefix + base58.Encode(buf[:])
}

// LooksLikeFlowID reports whether code has the shape of a share code.
// It says nothing about whether the flow exists.
func LooksLikeFlowID(code string) bool {
	if !strings.HasPrefix(code, FlowIDPrefix) {
		return false
	}
	raw, err := base58.Decode(code[len(FlowIDPrefix):])
	return err == nil && len(raw) == 16
}

// NewRecordID returns a fresh id for a node or edge. Ids are never reused.
func NewRecordID() string {
	return uuid.NewString()
}
