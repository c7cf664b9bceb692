package upstream

const (
	thresholdBlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"
	finishReasonSafety           = "SAFETY"
)

// defaultSafetySettings blocks medium-and-above harm in the four categories
// the upstream evaluates.
func defaultSafetySettings() []safetySetting {
	return []safetySetting{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: thresholdBlockMediumAndAbove},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: thresholdBlockMediumAndAbove},
		{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: thresholdBlockMediumAndAbove},
		{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: thresholdBlockMediumAndAbove},
	}
}
