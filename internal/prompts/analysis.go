package prompts

import (
	"fmt"
	"strings"
)

const analysisSchema = `Analyze this interior space image comprehensively.
Respond in JSON format with:
{
  "style_tags": ["modern", "minimalist"],
  "mood_tags": ["cozy", "elegant"],
  "detected_objects": ["sofa", "coffee_table", "artwork"],
  "space_type": ["living_room"],
  "color_analysis": {
    "dominant_colors": ["#F5F5F5", "#C9A98C"],
    "color_temperature": "warm",
    "brightness": "medium"
  },
  "confidence_score": 0.85,
  "description": "A modern living room with..."`

// AnalysisPrompt returns the instruction sent alongside an image for structured analysis.
func AnalysisPrompt(focusArea string, includeSuggestions bool) string {
	var b strings.Builder
	b.WriteString(analysisSchema)
	if includeSuggestions {
		b.WriteString(`,
  "design_suggestions": ["suggestion1", "suggestion2"]`)
	}
	b.WriteString("\n}\n\n")
	fmt.Fprintf(&b, "Focus particularly on: %s\n\n", focusArea)
	b.WriteString("Be accurate and specific in your analysis.")
	return b.String()
}

const furnitureSystemPrompt = `You are an interior designer recommending purchasable furniture.
- Only recommend pieces that suit the described space and style.
- Respond only with JSON: {"items":[{"type":"","description":"","estimatedPrice":0,"matchScore":0}]}
- matchScore is between 0 and 1. estimatedPrice is in USD.`

// FurniturePrompts returns the system and user prompts for furniture suggestions.
func FurniturePrompts(spaceDescription, styleName string, rooms []string, styleTags []string, limit int) (string, string) {
	user := fmt.Sprintf(`Suggest up to %d furniture pieces for a %s redesign.
Rooms: %s
Space: %s
Detected style tags: %s`,
		limit, styleName, strings.Join(rooms, ", "), spaceDescription, strings.Join(styleTags, ", "))
	return furnitureSystemPrompt, user
}
