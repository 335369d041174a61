package bootstrap

import (
	"testing"

	"github.com/kirillkom/pageindex-recall/internal/config"
	"github.com/kirillkom/pageindex-recall/internal/core/usecase"
)

func TestRecallConfigMapsPolicy(t *testing.T) {
	cfg := config.Config{
		IndexPath:                "/data/structure.json",
		SummaryModel:             "deepseek-r1",
		FusionRRFK:               80,
		FusionPreciseBoost:       6,
		FusionFuzzyBoost:         0.25,
		FusionLongFormBoost:      0.5,
		FusionPreciseIntentBoost: 3,
		ChunkLimitDefault:        30,
		LongFormDocTypes:         []string{"handbook"},
	}

	rc := RecallConfig(cfg)
	if rc.Fusion.K != 80 || rc.Fusion.PreciseBoost != 6 || rc.Fusion.FuzzyBoost != 0.25 {
		t.Fatalf("unexpected fusion policy %+v", rc.Fusion)
	}
	if rc.Fusion.MaxResults != 12 {
		t.Fatalf("expected default max results, got %d", rc.Fusion.MaxResults)
	}
	if rc.ChunkLimits.Default != 30 || rc.ChunkLimits.LongForm != 25 {
		t.Fatalf("unexpected chunk limits %+v", rc.ChunkLimits)
	}
	if len(rc.ChunkLimits.LongFormDocTypes) != 1 || rc.Fusion.LongFormDocTypes[0] != "handbook" {
		t.Fatalf("expected long-form doc types override, got %v", rc.ChunkLimits.LongFormDocTypes)
	}
	if rc.DefaultIndexPath != "/data/structure.json" || rc.DefaultSummaryModel != "deepseek-r1" {
		t.Fatalf("unexpected defaults %+v", rc)
	}
}

func TestRecallConfigKeepsDefaultBoostsForZeroConfig(t *testing.T) {
	rc := RecallConfig(config.Config{})
	want := usecase.DefaultFusionPolicy()
	if rc.Fusion.PreciseBoost != want.PreciseBoost ||
		rc.Fusion.FuzzyBoost != want.FuzzyBoost ||
		rc.Fusion.LongFormBoost != want.LongFormBoost ||
		rc.Fusion.PreciseIntentBoost != want.PreciseIntentBoost {
		t.Fatalf("zero config muted lexical boosts: %+v", rc.Fusion)
	}
	if rc.Fusion.K != want.K || rc.Fusion.MaxResults != want.MaxResults {
		t.Fatalf("unexpected fusion defaults %+v", rc.Fusion)
	}
}

func TestResilienceConfigParsesOverrides(t *testing.T) {
	rc := resilienceConfig(config.Config{BreakerEnabled: false, ResilienceAttempts: "embed=2, bogus"})
	if rc.BreakerEnabled {
		t.Fatalf("expected breaker disabled")
	}
	if rc.RetryMaxAttempts != 1 {
		t.Fatalf("expected single-shot default, got %d", rc.RetryMaxAttempts)
	}
	if got := rc.Operations["embed"].MaxAttempts; got != 2 {
		t.Fatalf("expected embed attempts 2, got %d", got)
	}
}
