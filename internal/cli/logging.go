// Package cli holds small helpers shared by the cmd/ entrypoints: startup
// configuration summaries logged through go-zero's logx, in the same style
// across all three service binaries.
package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"perpvenue/internal/config"
)

// MarketdSummaryLines describes a loaded MarketdConfig for startup logs.
func MarketdSummaryLines(cfg *config.MarketdConfig) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}
	tokens := make([]string, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		tokens = append(tokens, m.Token)
	}
	return []string{
		fmt.Sprintf("Service: %s", cfg.Name),
		fmt.Sprintf("Listen: %s:%d", cfg.Host, cfg.Port),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DataSource != "")),
		fmt.Sprintf("TTL (short/medium/long): %ds / %ds / %ds", cfg.TTL.Short, cfg.TTL.Medium, cfg.TTL.Long),
		fmt.Sprintf("Markets: %s", strings.Join(tokens, ", ")),
	}
}

// CountertradedSummaryLines describes a loaded CountertradedConfig.
func CountertradedSummaryLines(cfg *config.CountertradedConfig) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}
	tokens := make([]string, 0, len(cfg.Markets))
	for _, m := range cfg.Markets {
		tokens = append(tokens, m.Token)
	}
	return []string{
		fmt.Sprintf("Service: %s", cfg.Name),
		fmt.Sprintf("Vault owner: %s", cfg.VaultOwner),
		fmt.Sprintf("Poll interval: %s", cfg.PollInterval),
		fmt.Sprintf("Markets: %s", strings.Join(tokens, ", ")),
	}
}

// CopytradingdSummaryLines describes a loaded CopytradingdConfig.
func CopytradingdSummaryLines(cfg *config.CopytradingdConfig) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}
	return []string{
		fmt.Sprintf("Service: %s", cfg.Name),
		fmt.Sprintf("Vault owner: %s", cfg.VaultOwner),
		fmt.Sprintf("Poll interval: %s", cfg.PollInterval),
		fmt.Sprintf("Allowed rebalance/lp-token queries: %d / %d", cfg.AllowedRebalanceQueries, cfg.AllowedLpTokenQueries),
		fmt.Sprintf("Value stale after: %s", cfg.ValueStaleAfter),
	}
}

// LogSummary emits lines through logx, prefixed uniformly.
func LogSummary(lines []string) {
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}
