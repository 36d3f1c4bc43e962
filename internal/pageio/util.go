package pageio

import "strconv"

func idStr(id PageID) string {
	return strconv.FormatUint(uint64(id), 10)
}
