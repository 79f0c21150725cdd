package xconf

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// 基准测试数据
// =============================================================================

const benchmarkYAML = `
mode: longrunning
namespace: identity
cache:
  capacity: 8192
  max_weight: 33554432
  persistent_ttl: 168h
  ephemeral_ttl: 1h
  stale_grace: 24h
  op_timeout: 3s
classifier:
  patterns:
    - session
    - token
    - credential
  token_lengths:
    - 32
    - 64
breaker:
  trip_threshold: 5
  cooldown: 30s
backing:
  driver: redis
  redis:
    addr: 127.0.0.1:6379
    db: 1
  retry:
    attempts: 3
    delay: 50ms
janitor:
  interval: 5m
log:
  level: info
  format: json
`

const benchmarkJSON = `{
  "namespace": "identity",
  "cache": {"capacity": 8192, "ephemeral_ttl": "1h"},
  "backing": {"driver": "memory"}
}`

func createBenchFile(b *testing.B, name, content string) string {
	b.Helper()
	tmpDir := b.TempDir()
	path := filepath.Join(tmpDir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		b.Fatal(err)
	}
	return path
}

// =============================================================================
// Load 基准测试
// =============================================================================

func BenchmarkLoad_YAML(b *testing.B) {
	path := createBenchFile(b, "config.yaml", benchmarkYAML)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := Load(path)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoadBytes_YAML(b *testing.B) {
	data := []byte(benchmarkYAML)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := LoadBytes(data, FormatYAML)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoadBytes_JSON(b *testing.B) {
	data := []byte(benchmarkJSON)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := LoadBytes(data, FormatJSON)
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoadBytes_Allocs(b *testing.B) {
	data := []byte(benchmarkYAML)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, err := LoadBytes(data, FormatYAML)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// =============================================================================
// Validate 基准测试
// =============================================================================

func BenchmarkValidate(b *testing.B) {
	s, err := LoadBytes([]byte(benchmarkYAML), FormatYAML)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Validate(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDefault(b *testing.B) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Default()
	}
}
