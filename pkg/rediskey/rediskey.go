package rediskey

import "fmt"

// Rate limit keys (global convention across services)
const (
	RateLimitPrefix = "ratelimit"
)

// BuildRateLimitKey returns "ratelimit:{scope}:{subject}:{bucket}"
func BuildRateLimitKey(scope, subject, bucket string) string {
	return fmt.Sprintf("%s:%s:%s:%s", RateLimitPrefix, scope, subject, bucket)
}
