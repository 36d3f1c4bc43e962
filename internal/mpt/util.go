package mpt

import "encoding/hex"

func idStr(id NodeId) string {
	return hex.EncodeToString(id[:])
}
