package jobs

import (
	"testing"

	"roomDesignAi/internal/design"
)

func TestEstimateTime(t *testing.T) {
	refs := []design.ReferenceInfluence{{ReferenceID: "a"}, {ReferenceID: "b"}}
	palettes := []design.ColorPaletteInfluence{{PaletteID: "p"}}

	cases := []struct {
		name string
		req  design.DesignGenerationRequest
		want int64
	}{
		{"draft", design.DesignGenerationRequest{QualityLevel: design.QualityDraft}, 30000},
		{"premium", design.DesignGenerationRequest{QualityLevel: design.QualityPremium}, 60000},
		{"standard with inputs", design.DesignGenerationRequest{QualityLevel: design.QualityStandard, ReferenceInfluences: refs, ColorPaletteInfluences: palettes}, 61500},
		{"unknown quality", design.DesignGenerationRequest{QualityLevel: "ultra"}, 30000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateTime(tc.req); got != tc.want {
				t.Fatalf("EstimateTime = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestEstimateCost(t *testing.T) {
	cases := []struct {
		name  string
		space []string
		req   design.DesignGenerationRequest
		want  int64
	}{
		{"single room", []string{"living room"}, design.DesignGenerationRequest{SelectedRooms: []string{"living room"}, StyleName: "Modern"}, 500},
		{"minimal", nil, design.DesignGenerationRequest{SelectedRooms: []string{"office"}, StyleName: "Minimalist"}, 400},
		{"luxury kitchen and bath", []string{"Kitchen", "bathroom"}, design.DesignGenerationRequest{SelectedRooms: []string{"a", "b", "c"}, StyleName: "Modern Luxury"}, 6480},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateCost(design.ImageAnalysisResult{SpaceType: tc.space}, tc.req)
			if got != tc.want {
				t.Fatalf("EstimateCost = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRemaining(t *testing.T) {
	if got := remaining(60000, 25); got != 45000 {
		t.Fatalf("remaining = %d, want 45000", got)
	}
	if got := remaining(60000, 100); got != 0 {
		t.Fatalf("remaining at completion = %d", got)
	}
}
