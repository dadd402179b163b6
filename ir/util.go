package ir

import "strconv"

func intToString(v int64) string { return strconv.FormatInt(v, 10) }
