package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
)

// PartitionCounts defines the number of distinct partition keys benchmarked.
var PartitionCounts = []int{1, 100, 10000, 100000}

// partitionKeys returns n distinct rate limit partition keys.
func partitionKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("host:tenant-%d.example.com", i)
	}
	return keys
}

// randomHost returns a host name that no allowlist contains.
func randomHost() string {
	return strings.ToLower(ulid.Make().String()) + ".invalid"
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
