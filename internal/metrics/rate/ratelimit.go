// Package rate recognises throttling and ban responses in exchange error
// messages and counts them.
package rate

import (
	"strings"

	"cryptolens/internal/metrics"
	"cryptolens/logger"
)

const (
	MetricRateLimitExceeded = "rate_limit_exceeded"
	MetricIPBan             = "ip_ban"
)

func limitFields(exchange, symbol, operation string) logger.Fields {
	return logger.Fields{
		"exchange":  strings.ToLower(exchange),
		"symbol":    symbol,
		"operation": operation,
	}
}

// ReportRateLimitExceeded counts a throttled call and logs it at warn.
func ReportRateLimitExceeded(log *logger.Log, exchange, symbol, operation string) {
	fields := limitFields(exchange, symbol, operation)
	metrics.EmitMetric(log, "exchange_pool", MetricRateLimitExceeded, int64(1), "counter", fields)
	log.WithComponent("exchange_pool").WithFields(fields).Warn("rate limit exceeded")
}

// ReportIPBan counts a ban response and logs it at error.
func ReportIPBan(log *logger.Log, exchange, symbol, operation string) {
	fields := limitFields(exchange, symbol, operation)
	metrics.EmitMetric(log, "exchange_pool", MetricIPBan, int64(1), "counter", fields)
	log.WithComponent("exchange_pool").WithFields(fields).Error("ip banned")
}

// detectLimit matches the wording each exchange uses for throttling and bans.
func detectLimit(exchange, msg string) (rateLimit bool, ipBan bool) {
	lowerMsg := strings.ToLower(msg)
	switch strings.ToLower(exchange) {
	case "binance":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit") ||
			strings.Contains(lowerMsg, "code=-1003")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	case "okx":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "frequency limit") ||
			strings.Contains(lowerMsg, "50011")
		ipBan = strings.Contains(lowerMsg, "ip") && (strings.Contains(lowerMsg, "blocked") || strings.Contains(lowerMsg, "ban"))
	case "kucoin":
		rateLimit = strings.Contains(lowerMsg, "too many requests") || strings.Contains(lowerMsg, "rate limit") ||
			strings.Contains(lowerMsg, "429000")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "limit") && strings.Contains(lowerMsg, "triggered")
	case "bybit":
		ipBan = strings.Contains(lowerMsg, "ip rate limit") || (strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban"))
		rateLimit = !ipBan && (strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests") ||
			strings.Contains(lowerMsg, "too many visits"))
	case "coingecko":
		rateLimit = strings.Contains(lowerMsg, "429") || strings.Contains(lowerMsg, "rate limit") ||
			strings.Contains(lowerMsg, "throttled")
	default:
		rateLimit = strings.Contains(lowerMsg, "rate limit") || strings.Contains(lowerMsg, "too many requests")
		ipBan = strings.Contains(lowerMsg, "ip") && strings.Contains(lowerMsg, "ban")
	}
	return
}

// ReportLimitFromMessage records a metric when msg is a throttling or ban
// response and reports which one it was.
func ReportLimitFromMessage(log *logger.Log, exchange, symbol, operation, msg string) (rateLimit, ipBan bool) {
	rateLimit, ipBan = detectLimit(exchange, msg)
	if rateLimit {
		ReportRateLimitExceeded(log, exchange, symbol, operation)
	}
	if ipBan {
		ReportIPBan(log, exchange, symbol, operation)
	}
	return rateLimit, ipBan
}
