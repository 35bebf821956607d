package utils

import (
	"os"
	"testing"
)

func BenchmarkEnvOrDefault(b *testing.B) {
	const key = "INDEXER_BENCH_STRING_VAR"
	os.Setenv(key, "0xAbCdEf0000000000000000000000000000000000")
	clearEnvCache(key)
	EnvOrDefault(key, "fallback")
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		EnvOrDefault(key, "fallback")
	}
}

func BenchmarkEnvOrDefaultInt(b *testing.B) {
	const key = "INDEXER_BENCH_INT_VAR"
	os.Setenv(key, "123")
	clearEnvCache(key)
	EnvOrDefaultInt(key, 0)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		EnvOrDefaultInt(key, 0)
	}
}

// BenchmarkGetEnvCached measures the cached lookup path against the
// direct-syscall path above; callers that can guarantee a key never
// changes after first read can use getEnv for the cheaper repeat reads.
func BenchmarkGetEnvCached(b *testing.B) {
	const key = "INDEXER_BENCH_CACHED_VAR"
	os.Setenv(key, "0xAbCdEf0000000000000000000000000000000000")
	clearEnvCache(key)
	getEnv(key)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		getEnv(key)
	}
}

func BenchmarkEnvOrDefaultUint64(b *testing.B) {
	const key = "INDEXER_BENCH_UINT64_VAR"
	os.Setenv(key, "123456789")
	clearEnvCache(key)
	EnvOrDefaultUint64(key, 0)
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		EnvOrDefaultUint64(key, 0)
	}
}
