package influence

import (
	"math"
	"sort"

	"roomDesignAi/internal/design"
)

const (
	confidenceBoost = 1.2

	// InclusionThreshold is the minimum applied influence for style, color and summary use.
	InclusionThreshold = 0.3
	// MoodThreshold is the minimum applied influence for mood aggregation.
	MoodThreshold = 0.4
	// DimensionThreshold is the minimum user weight on a single dimension.
	DimensionThreshold = 0.5
	// StrongThreshold separates "strongly" from "subtly" in the style clause.
	StrongThreshold = 0.7

	maxMoodTags        = 3
	maxStyleTagsPerRef = 2
	maxColorsPerRef    = 3

	maxAppliedStyles = 5
	maxAppliedColors = 8
	maxAppliedMoods  = 5
)

// Actual converts analysis confidence and the user's requested weights into
// the effective influence of a reference, bounded to [0,1].
func Actual(ref design.ReferenceInfluence, analysis design.ImageAnalysisResult) float64 {
	userWeight := (clamp(ref.StyleInfluence) + clamp(ref.ColorInfluence) + clamp(ref.MoodInfluence)) / 3
	return clamp(clamp(analysis.ConfidenceScore) * userWeight * confidenceBoost)
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 1
	}
	return v
}

// StyleInfluence is one reference's contribution to the style clause.
type StyleInfluence struct {
	Styles    []string
	Influence float64
}

// Strong reports whether the reference should be incorporated strongly.
func (s StyleInfluence) Strong() bool {
	return s.Influence > StrongThreshold
}

// ColorInfluence is one reference's contribution to the color clause.
type ColorInfluence struct {
	Colors      []string
	Temperature string
	Influence   float64
}

// StyleInfluences returns qualifying references ordered by influence, strongest first.
func StyleInfluences(refs []design.ReferenceAnalysis) []StyleInfluence {
	var out []StyleInfluence
	for _, ref := range refs {
		if ref.InfluenceApplied > InclusionThreshold && ref.Reference.StyleInfluence > DimensionThreshold {
			out = append(out, StyleInfluence{
				Styles:    head(ref.Analysis.StyleTags, maxStyleTagsPerRef),
				Influence: ref.InfluenceApplied,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Influence > out[j].Influence })
	return out
}

// ColorInfluences returns qualifying references ordered by influence, strongest first.
func ColorInfluences(refs []design.ReferenceAnalysis) []ColorInfluence {
	var out []ColorInfluence
	for _, ref := range refs {
		if ref.InfluenceApplied > InclusionThreshold && ref.Reference.ColorInfluence > DimensionThreshold {
			out = append(out, ColorInfluence{
				Colors:      head(ref.Analysis.ColorAnalysis.DominantColors, maxColorsPerRef),
				Temperature: ref.Analysis.ColorAnalysis.ColorTemperature,
				Influence:   ref.InfluenceApplied,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Influence > out[j].Influence })
	return out
}

// MoodTags counts mood tags across qualifying references and returns the
// three most frequent. Equal counts keep first-seen order.
func MoodTags(refs []design.ReferenceAnalysis) []string {
	counts := map[string]int{}
	var order []string
	for _, ref := range refs {
		if ref.InfluenceApplied <= MoodThreshold || ref.Reference.MoodInfluence <= DimensionThreshold {
			continue
		}
		for _, mood := range ref.Analysis.MoodTags {
			if _, seen := counts[mood]; !seen {
				order = append(order, mood)
			}
			counts[mood]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	return head(order, maxMoodTags)
}

// Applied summarises the influences that reached the design.
func Applied(refs []design.ReferenceAnalysis, palettes []design.ColorPaletteInfluence) design.AppliedInfluences {
	var styles, colors, moods []string
	for _, ref := range refs {
		if ref.InfluenceApplied <= InclusionThreshold {
			continue
		}
		styles = append(styles, ref.Analysis.StyleTags...)
		colors = append(colors, ref.Analysis.ColorAnalysis.DominantColors...)
		moods = append(moods, ref.Analysis.MoodTags...)
	}
	for _, palette := range palettes {
		colors = append(colors, palette.Colors...)
	}
	return design.AppliedInfluences{
		StyleInfluences: orEmpty(head(styles, maxAppliedStyles)),
		ColorInfluences: orEmpty(head(colors, maxAppliedColors)),
		MoodInfluences:  orEmpty(head(moods, maxAppliedMoods)),
	}
}

// Influential returns the references whose applied influence passes the inclusion threshold.
func Influential(refs []design.ReferenceAnalysis) []design.ReferenceAnalysis {
	var out []design.ReferenceAnalysis
	for _, ref := range refs {
		if ref.InfluenceApplied > InclusionThreshold {
			out = append(out, ref)
		}
	}
	return out
}

// OverallConfidence blends the photo confidence with the mean reference confidence.
// Without references the reference term counts as fully confident.
func OverallConfidence(photo design.ImageAnalysisResult, refs []design.ReferenceAnalysis) float64 {
	avg := 1.0
	if len(refs) > 0 {
		var sum float64
		for _, ref := range refs {
			sum += ref.Analysis.ConfidenceScore
		}
		avg = sum / float64(len(refs))
	}
	return math.Min(1, photo.ConfidenceScore*0.6+avg*0.4)
}

func head(values []string, n int) []string {
	if len(values) <= n {
		return append([]string(nil), values...)
	}
	return append([]string(nil), values[:n]...)
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
