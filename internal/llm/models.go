package llm

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// AvailableModels lists Gemini text models known to work with the fixed
// generation config.
var AvailableModels = []ModelInfo{
	{
		ID:          "gemini-2.0-flash",
		Name:        "Gemini 2.0 Flash",
		Description: "Fast general-purpose model",
	},
	{
		ID:          "gemini-2.0-flash-lite",
		Name:        "Gemini 2.0 Flash-Lite",
		Description: "Cheapest, lowest latency",
	},
	{
		ID:          "gemini-2.5-flash",
		Name:        "Gemini 2.5 Flash",
		Description: "Better reasoning at flash latency",
	},
	{
		ID:          "gemini-2.5-pro",
		Name:        "Gemini 2.5 Pro",
		Description: "Strongest model for long answers",
	},
}

// ModelInfo describes a selectable model.
type ModelInfo struct {
	ID          string // model id sent to the API
	Name        string // display name
	Description string
}

// GetModelByID returns the model info for modelID, or nil if unknown.
func GetModelByID(modelID string) *ModelInfo {
	for _, m := range AvailableModels {
		if m.ID == modelID {
			return &m
		}
	}
	return nil
}

func IsKnownModel(modelID string) bool {
	return GetModelByID(modelID) != nil
}

// GetModelName returns the display name, or the id itself for unknown models.
func GetModelName(modelID string) string {
	if info := GetModelByID(modelID); info != nil {
		return info.Name
	}
	return modelID
}
