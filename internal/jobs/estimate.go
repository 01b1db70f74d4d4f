package jobs

import (
	"math"
	"strings"

	"roomDesignAi/internal/design"
)

const (
	baseProcessingMs  = 30_000
	perReferenceMs    = 5_000
	perPaletteMs      = 1_000
	baseCost          = 500
	roomCostFactor    = 0.8
	luxuryMultiplier  = 1.8
	minimalMultiplier = 0.8
)

var qualityTimeMultiplier = map[design.QualityLevel]float64{
	design.QualityDraft:    1,
	design.QualityStandard: 1.5,
	design.QualityPremium:  2,
}

// EstimateTime returns the expected processing time in milliseconds.
func EstimateTime(req design.DesignGenerationRequest) int64 {
	base := float64(baseProcessingMs +
		perReferenceMs*len(req.ReferenceInfluences) +
		perPaletteMs*len(req.ColorPaletteInfluences))
	multiplier, ok := qualityTimeMultiplier[req.QualityLevel]
	if !ok {
		multiplier = 1
	}
	return int64(math.Round(base * multiplier))
}

// EstimateCost is a heuristic placeholder, not a priced catalog lookup.
func EstimateCost(photo design.ImageAnalysisResult, req design.DesignGenerationRequest) int64 {
	cost := float64(baseCost)
	if hasSpaceType(photo.SpaceType, "kitchen") {
		cost *= 2
	}
	if hasSpaceType(photo.SpaceType, "bathroom") {
		cost *= 1.5
	}
	cost *= math.Max(1, float64(len(req.SelectedRooms))*roomCostFactor)

	style := strings.ToLower(req.StyleName)
	if strings.Contains(style, "luxury") {
		cost *= luxuryMultiplier
	}
	if strings.Contains(style, "minimal") {
		cost *= minimalMultiplier
	}
	return int64(math.Round(cost))
}

func hasSpaceType(types []string, want string) bool {
	for _, t := range types {
		if strings.EqualFold(strings.TrimSpace(t), want) {
			return true
		}
	}
	return false
}

// remaining scales the estimate down as progress advances.
func remaining(estimateMs int64, progress float64) int64 {
	if progress >= 100 {
		return 0
	}
	return int64(math.Round(float64(estimateMs) * (100 - progress) / 100))
}
