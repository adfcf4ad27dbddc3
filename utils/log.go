package utils

import (
	"fmt"
	"strings"
)

// Logf writes one "[PREFIX] message" line to Output when Verbose is set.
func Logf(prefix, format string, args ...interface{}) {
	if !Verbose {
		return
	}
	fmt.Fprintf(Output, "["+strings.ToUpper(prefix)+"] "+format+"\n", args...)
}
