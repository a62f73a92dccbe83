package countertrade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpvenue/internal/numeric"
)

func searchTestConfig() Config {
	return Config{
		Sensitivity:       numeric.MustParseDec("1"),
		RfCap:             numeric.MustParseDec("1"),
		DnfSensitivity:    numeric.MustParseDec("1"),
		DnfCap:            numeric.MustParseDec("1"),
		TargetFunding:     numeric.MustParseDec("0.05"),
		AllowedIterations: 150,
	}
}

// TestSmartSearch_ConvergesToTargetFunding mirrors spec.md §8 scenario 3:
// popular=1000, unpopular=200, target_funding=0.05, iterations=150 must
// converge to a delta whose projected rate is within 1e-5 of target.
func TestSmartSearch_ConvergesToTargetFunding(t *testing.T) {
	cfg := searchTestConfig()
	popular := numeric.MustParseDec("1000")
	unpopular := numeric.MustParseDec("200")

	delta, err := smartSearch(cfg, popular, unpopular, true)
	require.NoError(t, err)

	desiredUnpopular, err := unpopular.Add(delta)
	require.NoError(t, err)

	projected, err := popularRate(cfg, popular, desiredUnpopular)
	require.NoError(t, err)

	diff := projected.SaturatingSub(cfg.TargetFunding)
	if cfg.TargetFunding.GreaterThan(projected) {
		diff = cfg.TargetFunding.SaturatingSub(projected)
	}
	assert.True(t, diff.LessThan(numeric.MustParseDec("0.00001")),
		"projected rate %s should be within 1e-5 of target %s", projected, cfg.TargetFunding)
}

func TestSmartSearch_BothSidesEmptyFails(t *testing.T) {
	cfg := searchTestConfig()
	_, err := smartSearch(cfg, numeric.Zero(), numeric.Zero(), true)
	assert.Error(t, err)
}

func TestSmartSearch_ShortSidePopularAlsoConverges(t *testing.T) {
	cfg := searchTestConfig()
	popular := numeric.MustParseDec("500")
	unpopular := numeric.MustParseDec("50")

	delta, err := smartSearch(cfg, popular, unpopular, false)
	require.NoError(t, err)

	desiredUnpopular, err := unpopular.Add(delta)
	require.NoError(t, err)

	projected, err := popularRate(cfg, desiredUnpopular, popular)
	require.NoError(t, err)

	diff := projected.SaturatingSub(cfg.TargetFunding)
	if cfg.TargetFunding.GreaterThan(projected) {
		diff = cfg.TargetFunding.SaturatingSub(projected)
	}
	assert.True(t, diff.LessThan(numeric.MustParseDec("0.00001")))
}
