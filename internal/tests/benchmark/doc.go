// Package benchmark provides performance benchmarks for webhost.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare partition counts:
//
//	go test -bench=BenchmarkRateLimiter -benchmem -benchtime=5s ./internal/tests/benchmark/...
//
// Compare results:
//
//	benchstat old.txt new.txt
package benchmark
