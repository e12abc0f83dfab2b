package intervention

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stuartleeks/nyc-co2-sim/sim-api/geo"
)

func TestContainsKeyword(t *testing.T) {
	assert.True(t, ContainsKeyword("Convert taxis to EVs", "ev"))
	assert.False(t, ContainsKeyword("every building", "ev"))
	assert.True(t, ContainsKeyword("more buses", "bus"))
	assert.True(t, ContainsKeyword("Solar Panels", "solar"))
	assert.False(t, ContainsKeyword("plant trees", "car"))
}

func TestRuleParser(t *testing.T) {
	tests := []struct {
		prompt string
		want   Intervention
	}{
		{
			prompt: "Convert 30% of taxis to EVs in Manhattan",
			want: Intervention{
				Borough: geo.Manhattan, Sector: SectorTransport, ReductionPercent: 24,
				Direction: DirectionDecrease, Subsector: "taxis",
			},
		},
		{
			prompt: "Add solar panels to all Brooklyn buildings",
			want: Intervention{
				Borough: geo.Brooklyn, Sector: SectorBuildings, ReductionPercent: 50,
				Direction: DirectionDecrease,
			},
		},
		{
			prompt: "Cut industrial emissions by 90%",
			want: Intervention{
				Borough: geo.Citywide, Sector: SectorIndustry, ReductionPercent: 60,
				Direction: DirectionDecrease,
			},
		},
		{
			prompt: "Electrify flights at JFK",
			want: Intervention{
				Borough: geo.Citywide, Sector: SectorAviation, ReductionPercent: 20,
				Direction: DirectionDecrease, SpecificLocation: "JFK",
			},
		},
		{
			prompt: "Plant a million trees in the Bronx",
			want: Intervention{
				Borough: geo.Bronx, Sector: SectorNature, ReductionPercent: 20,
				Direction: DirectionDecrease,
			},
		},
		{
			prompt: "Make things better",
			want: Intervention{
				Borough: geo.Citywide, Sector: SectorTransport, ReductionPercent: 20,
				Direction: DirectionDecrease,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.prompt, func(t *testing.T) {
			got, err := RuleParser{}.Parse(context.Background(), tt.prompt)
			require.NoError(t, err)
			assert.Equal(t, SourceRules, got.Source)
			assert.Equal(t, tt.prompt, got.Prompt)
			assert.NotEmpty(t, got.Description)

			got.Source, got.Prompt, got.Description = "", "", ""
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
				t.Errorf("Parse() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRuleParserEmpty(t *testing.T) {
	_, err := RuleParser{}.Parse(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestNormalize(t *testing.T) {
	iv := Intervention{
		Borough:          "the bronx",
		Sector:           "Transportation",
		ReductionPercent: 150,
		Direction:        "INCREASE",
		SpatialPattern: []PatternPoint{
			{Lat: 40.75, Lon: -73.98, Intensity: 1},
			{Lat: 51.5, Lon: -0.12, Intensity: 1},
		},
	}
	iv.Normalize()

	assert.Equal(t, geo.Bronx, iv.Borough)
	assert.Equal(t, SectorTransport, iv.Sector)
	assert.Equal(t, -100.0, iv.ReductionPercent)
	assert.Equal(t, DirectionIncrease, iv.Direction)
	assert.Len(t, iv.SpatialPattern, 1)
	assert.Equal(t, "100% transport emission increase in Bronx", iv.Description)
}

func TestNormalizeInfersDirection(t *testing.T) {
	iv := Intervention{ReductionPercent: -10}
	iv.Normalize()
	assert.Equal(t, DirectionIncrease, iv.Direction)
	assert.Equal(t, geo.Citywide, iv.Borough)
	assert.Equal(t, "10% transport emission increase in NYC", iv.Description)
	assert.Nil(t, iv.SpatialPattern)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "30% transport emission reduction in Manhattan", Describe(SectorTransport, geo.Manhattan, 30))
	assert.Equal(t, "30% transport emission increase in NYC", Describe(SectorTransport, geo.Citywide, -30))
}

func TestGridSector(t *testing.T) {
	assert.Equal(t, SectorIndustry, Intervention{Sector: SectorAviation}.GridSector())
	assert.Equal(t, SectorAll, Intervention{Sector: SectorNature}.GridSector())
	assert.Equal(t, SectorEnergy, Intervention{Sector: SectorEnergy}.GridSector())
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, CacheKey("  Convert  TAXIS\tin Manhattan"), CacheKey("convert taxis in manhattan"))
}

func TestDecodeLLMResponse(t *testing.T) {
	content := "Here you go:\n```json\n" + `{
  "borough": "manhattan",
  "sector": "transport",
  "reduction_percent": 25,
  "direction": "decrease",
  "subsector": "taxis",
  "description": "EV taxi conversion",
  "spatial_pattern": [[40.758, -73.9855, 0.9], [1, 2]],
  "ai_analysis": {"summary": "Taxis concentrate in Midtown"}
}` + "\n```"

	got, err := DecodeLLMResponse(content)
	require.NoError(t, err)

	want := Intervention{
		Borough:          geo.Manhattan,
		Sector:           SectorTransport,
		ReductionPercent: 25,
		Direction:        DirectionDecrease,
		Subsector:        "taxis",
		Description:      "EV taxi conversion",
		SpatialPattern:   []PatternPoint{{Lat: 40.758, Lon: -73.9855, Intensity: 0.9}},
		Analysis:         map[string]string{"summary": "Taxis concentrate in Midtown"},
		Source:           SourceLLM,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("DecodeLLMResponse() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeLLMResponseErrors(t *testing.T) {
	_, err := DecodeLLMResponse("I cannot help with that")
	assert.Error(t, err)

	_, err = DecodeLLMResponse(`{"borough": "Queens"}`)
	assert.Error(t, err)
}

type fakeCompleter struct {
	content string
	err     error
	calls   int
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) CompleteWithSystem(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.content, f.err
}

func TestLLMParser(t *testing.T) {
	c := &fakeCompleter{content: `{"borough":"Queens","sector":"aviation","reduction_percent":10,"direction":"increase"}`}
	p := NewLLMParser(c, zap.NewNop())

	iv, err := p.Parse(context.Background(), "Expand JFK")
	require.NoError(t, err)
	assert.Equal(t, geo.Queens, iv.Borough)
	assert.Equal(t, SectorAviation, iv.Sector)
	assert.Equal(t, -10.0, iv.ReductionPercent)
	assert.Equal(t, "Expand JFK", iv.Prompt)
	assert.Equal(t, SourceLLM, iv.Source)
}

func TestFallbackParser(t *testing.T) {
	ctx := context.Background()

	t.Run("model succeeds", func(t *testing.T) {
		c := &fakeCompleter{content: `{"borough":"Bronx","sector":"energy","reduction_percent":12}`}
		p := NewFallbackParser(NewLLMParser(c, zap.NewNop()), zap.NewNop())
		iv, err := p.Parse(ctx, "clean power for the bronx")
		require.NoError(t, err)
		assert.Equal(t, SourceLLM, iv.Source)
		assert.True(t, p.UsesModel())
	})

	t.Run("model fails", func(t *testing.T) {
		c := &fakeCompleter{err: errors.New("boom")}
		p := NewFallbackParser(NewLLMParser(c, zap.NewNop()), zap.NewNop())
		iv, err := p.Parse(ctx, "Convert 30% of taxis to EVs in Manhattan")
		require.NoError(t, err)
		assert.Equal(t, SourceRules, iv.Source)
		assert.InDelta(t, 24, iv.ReductionPercent, 1e-9)
		assert.Equal(t, 1, c.calls)
	})

	t.Run("model returns garbage", func(t *testing.T) {
		c := &fakeCompleter{content: "no json here"}
		p := NewFallbackParser(NewLLMParser(c, zap.NewNop()), zap.NewNop())
		iv, err := p.Parse(ctx, "solar in Queens")
		require.NoError(t, err)
		assert.Equal(t, SourceRules, iv.Source)
		assert.Equal(t, geo.Queens, iv.Borough)
	})

	t.Run("rules only", func(t *testing.T) {
		p := NewFallbackParser(nil, zap.NewNop())
		assert.False(t, p.UsesModel())
		_, err := p.Parse(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyPrompt)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		c := &fakeCompleter{err: context.Canceled}
		p := NewFallbackParser(NewLLMParser(c, zap.NewNop()), zap.NewNop())
		_, err := p.Parse(cctx, "solar")
		assert.ErrorIs(t, err, context.Canceled)
	})
}
