package prompts

import (
	"strconv"
	"strings"

	"roomDesignAi/internal/design"
	"roomDesignAi/internal/influence"
)

const (
	primaryPaletteThreshold = 0.5
	accentPaletteThreshold  = 0.3
	accentColorsPerPalette  = 2

	closingDirective = "Create a cohesive, well-designed space that reflects the user's personal style preferences while maintaining functionality and visual harmony."

	descriptionClosing = ". The design maintains the original space's character while adding fresh, personalized touches that reflect your unique style preferences."
)

var modeDirectives = map[design.ProcessingMode]string{
	design.ModeConservative: "Make subtle, tasteful changes that respect the original character. ",
	design.ModeCreative:     "Feel free to make bold, transformative changes. ",
}

const defaultModeDirective = "Balance preservation of original elements with fresh design updates. "

// Build assembles the generation prompt from the photo analysis, the weighted
// reference analyses and the request preferences. Identical inputs always
// produce an identical prompt.
func Build(photo design.ImageAnalysisResult, refs []design.ReferenceAnalysis, req design.DesignGenerationRequest) string {
	var b strings.Builder

	b.WriteString("Transform this ")
	if len(photo.SpaceType) > 0 {
		b.WriteString(strings.Join(photo.SpaceType, ", ") + " ")
	}
	b.WriteString("space in " + req.StyleName + " style. ")
	if len(req.SelectedRooms) > 0 {
		b.WriteString("This space will be used as: " + strings.Join(req.SelectedRooms, ", ") + ". ")
	}
	if desc := strings.TrimSpace(photo.Description); desc != "" {
		b.WriteString("Original space characteristics: " + desc + ". ")
	}

	var styleParts []string
	for _, s := range influence.StyleInfluences(refs) {
		if len(s.Styles) == 0 {
			continue
		}
		weight := "subtly"
		if s.Strong() {
			weight = "strongly"
		}
		styleParts = append(styleParts, weight+" incorporate "+strings.Join(s.Styles, " and ")+" elements")
	}
	if len(styleParts) > 0 {
		b.WriteString("Incorporate these style elements: " + strings.Join(styleParts, ", ") + ". ")
	}

	var colorParts []string
	for _, c := range influence.ColorInfluences(refs) {
		if len(c.Colors) == 0 {
			continue
		}
		colorParts = append(colorParts, strings.Join(c.Colors, ", ")+" ("+c.Temperature+" tones)")
	}
	if len(colorParts) > 0 {
		b.WriteString("Color palette should include: " + strings.Join(colorParts, " and ") + ". ")
	}

	writePalettes(&b, req.ColorPaletteInfluences)

	if moods := influence.MoodTags(refs); len(moods) > 0 {
		b.WriteString("The atmosphere should feel " + strings.Join(moods, " and ") + ". ")
	}

	if directive, ok := modeDirectives[req.ProcessingMode]; ok {
		b.WriteString(directive)
	} else {
		b.WriteString(defaultModeDirective)
	}

	if req.BudgetRange != nil {
		b.WriteString("Focus on solutions within a " + formatAmount(req.BudgetRange.Min) + "-" + formatAmount(req.BudgetRange.Max) + " budget range. ")
	}
	if len(req.PriorityFeatures) > 0 {
		b.WriteString("Prioritize these features: " + strings.Join(req.PriorityFeatures, ", ") + ". ")
	}

	b.WriteString(closingDirective)
	return b.String()
}

func writePalettes(b *strings.Builder, palettes []design.ColorPaletteInfluence) {
	for _, p := range palettes {
		if p.PaletteType == design.PalettePrimary && p.Influence > primaryPaletteThreshold {
			b.WriteString("Primary color palette: " + strings.Join(p.Colors, ", ") + ". ")
			break
		}
	}

	var accents []string
	for _, p := range palettes {
		if p.PaletteType != design.PaletteAccent || p.Influence <= accentPaletteThreshold {
			continue
		}
		if len(p.Colors) > accentColorsPerPalette {
			accents = append(accents, p.Colors[:accentColorsPerPalette]...)
		} else {
			accents = append(accents, p.Colors...)
		}
	}
	if len(accents) > 0 {
		b.WriteString("Accent colors: " + strings.Join(accents, ", ") + ". ")
	}
}

// Description renders the human-readable summary stored on the result.
func Description(req design.DesignGenerationRequest, refs []design.ReferenceAnalysis) string {
	var b strings.Builder
	b.WriteString("A beautifully transformed " + strings.Join(req.SelectedRooms, " and ") + " ")
	b.WriteString("incorporating " + req.StyleName + " design principles")

	if influential := influence.Influential(refs); len(influential) > 0 {
		var leads []string
		for _, ref := range influential {
			if len(ref.Analysis.StyleTags) > 0 && ref.Analysis.StyleTags[0] != "" {
				leads = append(leads, ref.Analysis.StyleTags[0])
			}
		}
		b.WriteString(" with influences from your selected references, ")
		b.WriteString("including " + strings.Join(leads, ", ") + " elements")
	}

	b.WriteString(descriptionClosing)
	return b.String()
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
