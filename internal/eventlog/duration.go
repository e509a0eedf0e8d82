package eventlog

import "time"

func secondsToDuration(s int64) time.Duration { return time.Duration(s) * time.Second }

func msToDuration(ms int64) time.Duration { return time.Duration(ms) * time.Millisecond }
