package generation

import (
	"fmt"
	"strings"
)

// promptConfig is the resolved prompt set handed to an inference backend.
type promptConfig struct {
	Prompt         string
	NegativePrompt string
	Strength       float64
}

const defaultStrength = 0.50

var scenarioStrength = map[string]float64{
	"projection-level-1": 0.40,
	"projection-level-2": 0.50,
	"projection-level-3": 0.60,
}

var scenarioDescription = map[string]string{
	"projection-level-1": "subtle natural enhancement",
	"projection-level-2": "moderate enhancement with improved projection",
	"projection-level-3": "pronounced enhancement with strong projection",
}

var viewDescription = map[string]string{
	"rear": "photographed directly from behind",
	"side": "photographed in full profile from the side",
}

const promptTemplate = `professional medical photography, %s view of %s region,
%s, realistic skin texture, natural lighting, clinical setting,
high detail, photorealistic`

const negativePrompt = `cartoon, anime, painting, blurry, deformed, distorted,
low quality, watermark, text, extra limbs`

// buildPrompt resolves the prompt configuration for one request.
func buildPrompt(req *Request) promptConfig {
	strength, ok := scenarioStrength[req.Scenario]
	if !ok {
		strength = defaultStrength
	}
	scenarioDesc, ok := scenarioDescription[req.Scenario]
	if !ok {
		scenarioDesc = "enhancement"
	}
	viewDesc, ok := viewDescription[req.View]
	if !ok {
		viewDesc = req.View
	}

	prompt := fmt.Sprintf(promptTemplate, viewDesc, req.Region, scenarioDesc)

	return promptConfig{
		Prompt:         collapseWhitespace(prompt),
		NegativePrompt: collapseWhitespace(negativePrompt),
		Strength:       strength,
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
