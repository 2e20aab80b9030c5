package tool

import (
	"math"
	"time"
)

const (
	// DefaultMaxAttempts 默认最大重试次数
	DefaultMaxAttempts = 3

	// DefaultRetryDelay 默认重试延迟
	DefaultRetryDelay = time.Second

	// DefaultMaxRetryDelay 默认最大退避延迟
	DefaultMaxRetryDelay = 30 * time.Second
)

// BackoffType 退避策略类型
type BackoffType string

const (
	BackoffFixed       BackoffType = "fixed"
	BackoffLinear      BackoffType = "linear"
	BackoffExponential BackoffType = "exponential"
)

// CalculateBackoffDelay 计算退避延迟
func CalculateBackoffDelay(baseDelay time.Duration, attempt int, backoff BackoffType, maxDelay time.Duration) time.Duration {
	var delay time.Duration

	switch backoff {
	case BackoffFixed:
		delay = baseDelay
	case BackoffLinear:
		delay = baseDelay * time.Duration(attempt)
	case BackoffExponential:
		delay = baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	default:
		delay = baseDelay
	}

	// 应用最大延迟限制
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}

	return delay
}
