package influence

import (
	"math"
	"reflect"
	"testing"

	"roomDesignAi/internal/design"
)

func analysis(confidence float64, styles, moods, colors []string) design.ImageAnalysisResult {
	return design.ImageAnalysisResult{
		StyleTags:       styles,
		MoodTags:        moods,
		ConfidenceScore: confidence,
		ColorAnalysis: design.ColorAnalysis{
			DominantColors:   colors,
			ColorTemperature: "warm",
			Brightness:       "light",
		},
	}
}

func weighted(id string, style, color, mood, applied float64, a design.ImageAnalysisResult) design.ReferenceAnalysis {
	return design.ReferenceAnalysis{
		Reference: design.ReferenceInfluence{
			ReferenceID:    id,
			StyleInfluence: style,
			ColorInfluence: color,
			MoodInfluence:  mood,
		},
		ReferenceID:      id,
		Analysis:         a,
		InfluenceApplied: applied,
	}
}

func TestActualFormula(t *testing.T) {
	ref := design.ReferenceInfluence{StyleInfluence: 0.9, ColorInfluence: 0.6, MoodInfluence: 0.3}
	got := Actual(ref, design.ImageAnalysisResult{ConfidenceScore: 0.8})
	want := 0.8 * 0.6 * 1.2
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Actual = %v, want %v", got, want)
	}
}

// A maximally weighted, fully confident reference saturates at 1.
func TestActualClampsToOne(t *testing.T) {
	ref := design.ReferenceInfluence{StyleInfluence: 1, ColorInfluence: 1, MoodInfluence: 1}
	if got := Actual(ref, design.ImageAnalysisResult{ConfidenceScore: 1}); got != 1 {
		t.Fatalf("Actual = %v, want 1", got)
	}
}

func TestActualBounds(t *testing.T) {
	cases := []struct {
		name       string
		ref        design.ReferenceInfluence
		confidence float64
	}{
		{"zero confidence", design.ReferenceInfluence{StyleInfluence: 1, ColorInfluence: 1, MoodInfluence: 1}, 0},
		{"negative weights", design.ReferenceInfluence{StyleInfluence: -1, ColorInfluence: -2, MoodInfluence: 0.5}, 0.9},
		{"oversized weights", design.ReferenceInfluence{StyleInfluence: 3, ColorInfluence: 4, MoodInfluence: 5}, 2},
		{"nan confidence", design.ReferenceInfluence{StyleInfluence: 1, ColorInfluence: 1, MoodInfluence: 1}, math.NaN()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Actual(tc.ref, design.ImageAnalysisResult{ConfidenceScore: tc.confidence})
			if got < 0 || got > 1 || math.IsNaN(got) {
				t.Fatalf("Actual = %v, want value in [0,1]", got)
			}
		})
	}
	zero := Actual(design.ReferenceInfluence{StyleInfluence: 1, ColorInfluence: 1, MoodInfluence: 1}, design.ImageAnalysisResult{})
	if zero != 0 {
		t.Fatalf("Actual with zero confidence = %v, want 0", zero)
	}
}

// A style weight of 0.4 never contributes, however confident the analysis is.
func TestStyleThresholdRequiresUserWeight(t *testing.T) {
	refs := []design.ReferenceAnalysis{
		weighted("r1", 0.4, 1, 1, 0.95, analysis(1, []string{"boho"}, nil, nil)),
	}
	if got := StyleInfluences(refs); len(got) != 0 {
		t.Fatalf("StyleInfluences = %+v, want none", got)
	}
}

func TestStyleInfluencesSortedByInfluence(t *testing.T) {
	refs := []design.ReferenceAnalysis{
		weighted("weak", 0.8, 0, 0, 0.35, analysis(1, []string{"rustic", "farmhouse", "cottage"}, nil, nil)),
		weighted("strong", 0.9, 0, 0, 0.9, analysis(1, []string{"modern", "minimalist"}, nil, nil)),
		weighted("skipped", 0.9, 0, 0, 0.2, analysis(1, []string{"baroque"}, nil, nil)),
	}
	got := StyleInfluences(refs)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !reflect.DeepEqual(got[0].Styles, []string{"modern", "minimalist"}) || !got[0].Strong() {
		t.Fatalf("first = %+v, want strong modern/minimalist", got[0])
	}
	if !reflect.DeepEqual(got[1].Styles, []string{"rustic", "farmhouse"}) || got[1].Strong() {
		t.Fatalf("second = %+v, want subtle rustic/farmhouse", got[1])
	}
}

// Equal influences keep request order so prompts stay stable.
func TestStyleInfluencesStableForTies(t *testing.T) {
	refs := []design.ReferenceAnalysis{
		weighted("a", 0.9, 0, 0, 0.6, analysis(1, []string{"a"}, nil, nil)),
		weighted("b", 0.9, 0, 0, 0.6, analysis(1, []string{"b"}, nil, nil)),
		weighted("c", 0.9, 0, 0, 0.6, analysis(1, []string{"c"}, nil, nil)),
	}
	for i := 0; i < 20; i++ {
		got := StyleInfluences(refs)
		if got[0].Styles[0] != "a" || got[1].Styles[0] != "b" || got[2].Styles[0] != "c" {
			t.Fatalf("order changed on run %d: %+v", i, got)
		}
	}
}

func TestColorInfluencesTakesThreeColors(t *testing.T) {
	refs := []design.ReferenceAnalysis{
		weighted("r", 0, 0.7, 0, 0.5, analysis(1, nil, nil, []string{"#111", "#222", "#333", "#444"})),
		weighted("low", 0, 0.5, 0, 0.9, analysis(1, nil, nil, []string{"#999"})),
	}
	got := ColorInfluences(refs)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if !reflect.DeepEqual(got[0].Colors, []string{"#111", "#222", "#333"}) || got[0].Temperature != "warm" {
		t.Fatalf("color influence = %+v", got[0])
	}
}

func TestMoodTagsTopThreeByCount(t *testing.T) {
	refs := []design.ReferenceAnalysis{
		weighted("a", 0, 0, 0.9, 0.8, analysis(1, nil, []string{"calm", "airy", "warm"}, nil)),
		weighted("b", 0, 0, 0.9, 0.7, analysis(1, nil, []string{"cozy", "warm", "bold"}, nil)),
		weighted("c", 0, 0, 0.9, 0.5, analysis(1, nil, []string{"cozy", "warm"}, nil)),
		weighted("below", 0, 0, 0.9, 0.4, analysis(1, nil, []string{"gloomy", "gloomy", "gloomy"}, nil)),
	}
	got := MoodTags(refs)
	want := []string{"warm", "cozy", "calm"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MoodTags = %v, want %v", got, want)
	}
}

func TestAppliedInfluences(t *testing.T) {
	refs := []design.ReferenceAnalysis{
		weighted("a", 1, 1, 1, 0.8, analysis(1, []string{"s1", "s2", "s3"}, []string{"m1", "m2", "m3"}, []string{"#a1", "#a2", "#a3"})),
		weighted("b", 1, 1, 1, 0.31, analysis(1, []string{"s4", "s5", "s6"}, []string{"m4", "m5", "m6"}, []string{"#b1", "#b2", "#b3"})),
		weighted("c", 1, 1, 1, 0.3, analysis(1, []string{"ignored"}, []string{"ignored"}, []string{"#ignored"})),
	}
	palettes := []design.ColorPaletteInfluence{{Colors: []string{"#p1", "#p2", "#p3"}}}

	got := Applied(refs, palettes)
	if !reflect.DeepEqual(got.StyleInfluences, []string{"s1", "s2", "s3", "s4", "s5"}) {
		t.Fatalf("styles = %v", got.StyleInfluences)
	}
	if !reflect.DeepEqual(got.ColorInfluences, []string{"#a1", "#a2", "#a3", "#b1", "#b2", "#b3", "#p1", "#p2"}) {
		t.Fatalf("colors = %v", got.ColorInfluences)
	}
	if !reflect.DeepEqual(got.MoodInfluences, []string{"m1", "m2", "m3", "m4", "m5"}) {
		t.Fatalf("moods = %v", got.MoodInfluences)
	}
}

func TestAppliedInfluencesEmpty(t *testing.T) {
	got := Applied(nil, nil)
	if got.StyleInfluences == nil || got.ColorInfluences == nil || got.MoodInfluences == nil {
		t.Fatalf("Applied(nil) = %+v, want empty slices", got)
	}
}

func TestOverallConfidence(t *testing.T) {
	photo := design.ImageAnalysisResult{ConfidenceScore: 0.5}
	if got := OverallConfidence(photo, nil); math.Abs(got-0.7) > 1e-9 {
		t.Fatalf("no refs = %v, want 0.7", got)
	}
	refs := []design.ReferenceAnalysis{
		{Analysis: design.ImageAnalysisResult{ConfidenceScore: 1}},
		{Analysis: design.ImageAnalysisResult{ConfidenceScore: 0}},
	}
	if got := OverallConfidence(photo, refs); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("with refs = %v, want 0.5", got)
	}
}
