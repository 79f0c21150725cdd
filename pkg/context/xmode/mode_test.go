package xmode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr error
	}{
		{"longrunning", ModeLongRunning, nil},
		{"Long-Running", ModeLongRunning, nil},
		{"LONG_RUNNING", ModeLongRunning, nil},
		{"server", ModeLongRunning, nil},
		{"ephemeral", ModeEphemeral, nil},
		{"FaaS", ModeEphemeral, nil},
		{"serverless", ModeEphemeral, nil},
		{"lambda", ModeEphemeral, nil},
		{"  ephemeral  ", ModeEphemeral, nil},
		{"", ModeLongRunning, ErrEmptyMode},
		{"banana", ModeLongRunning, ErrInvalidMode},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "longrunning", ModeLongRunning.String())
	assert.Equal(t, "ephemeral", ModeEphemeral.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestMode_StringRoundTrip(t *testing.T) {
	for _, m := range []Mode{ModeLongRunning, ModeEphemeral} {
		parsed, err := Parse(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestMode_IsEphemeral(t *testing.T) {
	assert.False(t, ModeLongRunning.IsEphemeral())
	assert.True(t, ModeEphemeral.IsEphemeral())
}

func TestDetect_ExplicitOverride(t *testing.T) {
	t.Setenv(EnvExecutionMode, "ephemeral")
	assert.Equal(t, ModeEphemeral, Detect())

	t.Setenv(EnvExecutionMode, "server")
	assert.Equal(t, ModeLongRunning, Detect())
}

func TestDetect_FaaSMarker(t *testing.T) {
	t.Setenv(EnvExecutionMode, "")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "my-fn")
	assert.Equal(t, ModeEphemeral, Detect())
}

func TestDetect_InvalidOverrideFallsThrough(t *testing.T) {
	// 显式值非法时忽略，继续平台标记探测
	t.Setenv(EnvExecutionMode, "bogus")
	t.Setenv("K_SERVICE", "svc")
	assert.Equal(t, ModeEphemeral, Detect())
}

func TestDetect_Default(t *testing.T) {
	t.Setenv(EnvExecutionMode, "")
	for _, marker := range faasMarkers {
		t.Setenv(marker, "")
	}
	assert.Equal(t, ModeLongRunning, Detect())
}

func TestDetectDetail(t *testing.T) {
	t.Run("env override", func(t *testing.T) {
		t.Setenv(EnvExecutionMode, "ephemeral")
		m, reason := DetectDetail()
		assert.Equal(t, ModeEphemeral, m)
		assert.Equal(t, "EXECUTION_MODE=ephemeral", reason)
	})

	t.Run("marker", func(t *testing.T) {
		t.Setenv(EnvExecutionMode, "")
		t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "my-fn")
		m, reason := DetectDetail()
		assert.Equal(t, ModeEphemeral, m)
		assert.Equal(t, "marker AWS_LAMBDA_FUNCTION_NAME", reason)
	})

	t.Run("default", func(t *testing.T) {
		t.Setenv(EnvExecutionMode, "")
		for _, marker := range faasMarkers {
			t.Setenv(marker, "")
		}
		m, reason := DetectDetail()
		assert.Equal(t, ModeLongRunning, m)
		assert.Equal(t, "default", reason)
	})
}

func FuzzParse(f *testing.F) {
	f.Add("ephemeral")
	f.Add("LONG-RUNNING")
	f.Add("")
	f.Add("漢字")

	f.Fuzz(func(t *testing.T, s string) {
		m, err := Parse(s)
		if err != nil {
			// 解析失败时必须返回安全默认值
			assert.Equal(t, ModeLongRunning, m)
			return
		}
		// 成功解析的值必须可以经 String round-trip
		back, err2 := Parse(m.String())
		require.NoError(t, err2)
		assert.Equal(t, m, back)
	})
}
