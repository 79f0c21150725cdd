package xmode

import (
	"fmt"
	"os"
	"strings"
)

// Mode 表示进程的执行模型。
//
// 区分长驻执行（LongRunning，常规服务进程）与短暂执行
// （Ephemeral，FaaS 调用等进程随时可能被回收的环境）。
// xhybrid 适配器依据 Mode 决定读写路由：短暂执行下持久 key
// 以后备存储为事实来源，长驻执行下以进程内 LRU 为先。
//
// 设计决策: Mode 是注入式配置而非进程级全局单例。进程启动时
// 由探测器解析一次，随配置传入各组件；不提供 Init/全局读取，
// 避免隐式全局状态带来的测试与多实例困境。
type Mode int

const (
	// ModeLongRunning 长驻执行：进程生命周期跨越多次逻辑请求。
	ModeLongRunning Mode = iota

	// ModeEphemeral 短暂执行：进程可能在两次逻辑请求之间被回收，
	// 内存状态不保证存活。
	ModeEphemeral
)

// String 返回 Mode 的规范字符串表示。
func (m Mode) String() string {
	switch m {
	case ModeLongRunning:
		return "longrunning"
	case ModeEphemeral:
		return "ephemeral"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// IsEphemeral 报告是否为短暂执行模式。
func (m Mode) IsEphemeral() bool {
	return m == ModeEphemeral
}

// Parse 解析执行模式字符串，大小写不敏感，接受常见别名：
//   - "longrunning" / "long-running" / "long_running" / "server" → ModeLongRunning
//   - "ephemeral" / "faas" / "serverless" / "lambda" → ModeEphemeral
//
// 空字符串返回 ErrEmptyMode，无法识别的值返回 ErrInvalidMode。
func Parse(s string) (Mode, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return ModeLongRunning, ErrEmptyMode
	}
	switch normalized {
	case "longrunning", "long-running", "long_running", "server":
		return ModeLongRunning, nil
	case "ephemeral", "faas", "serverless", "lambda":
		return ModeEphemeral, nil
	default:
		return ModeLongRunning, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// Detector 是可插拔的执行模式探测函数。
// 进程启动时调用一次，结果注入需要它的组件。
type Detector func() Mode

// EnvExecutionMode 显式指定执行模式的环境变量名，优先于平台标记。
const EnvExecutionMode = "EXECUTION_MODE"

// faasMarkers 是公认的短暂执行平台标记环境变量。
// 任一存在且非空即判定为 ModeEphemeral。
var faasMarkers = []string{
	"AWS_LAMBDA_FUNCTION_NAME", // AWS Lambda
	"FUNCTIONS_WORKER_RUNTIME", // Azure Functions
	"K_SERVICE",                // Google Cloud Run / Cloud Functions
	"VERCEL",                   // Vercel Functions
}

// Detect 是默认探测器：
//  1. EXECUTION_MODE 环境变量显式指定时以其为准（解析失败则忽略，继续探测）
//  2. 存在任一 FaaS 平台标记 → ModeEphemeral
//  3. 否则 → ModeLongRunning
func Detect() Mode {
	m, _ := DetectDetail()
	return m
}

// DetectDetail 与 Detect 同逻辑，另返回判定依据的描述，供诊断输出使用。
// 依据形如 "EXECUTION_MODE=ephemeral"、"marker K_SERVICE" 或 "default"。
func DetectDetail() (Mode, string) {
	if v := os.Getenv(EnvExecutionMode); v != "" {
		if m, err := Parse(v); err == nil {
			return m, EnvExecutionMode + "=" + v
		}
	}
	for _, marker := range faasMarkers {
		if os.Getenv(marker) != "" {
			return ModeEphemeral, "marker " + marker
		}
	}
	return ModeLongRunning, "default"
}
