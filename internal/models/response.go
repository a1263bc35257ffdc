package models

// AIMessageTemplate is one canned message from the per-basis-type pool.
type AIMessageTemplate struct {
	ID        int64  `json:"aiMessageTemplateId"`
	Title     string `json:"aiMessageTemplateTitle"`
	Content   string `json:"aiMessageTemplateContent"`
	BasisType string `json:"aiAnalysisBasisType"` // REVIEW or AI
}

// PlaceResponse is the outward place shape.
type PlaceResponse struct {
	PlaceName            string   `json:"placeName"`
	PlaceRoadNameAddress string   `json:"placeRoadNameAddress"`
	PlaceImageList       []string `json:"placeImageList"`
}

// AnalysisBasis is one justification entry shown with a recommendation:
// a review excerpt with a 1-5 star score, or the AI's message.
type AnalysisBasis struct {
	Type      string `json:"analysisBasisType"` // REVIEW or AI
	Content   string `json:"analysisBasisContent"`
	StarScore int    `json:"analysisScore"` // 1-5, derived from the aggregate
}

// AnalysisResultDetail is one recommended place with its supporting content.
type AnalysisResultDetail struct {
	Place             PlaceResponse   `json:"place"`
	Content           string          `json:"analysisResultDetailContent"`
	TemplateMessage   string          `json:"templateMessage"`
	AnalysisBasisList []AnalysisBasis `json:"analysisBasisList"`
	CategoryKeywords  []string        `json:"categoryKeywords"`
}

// ResultKeyRecommendations keys the recommendation list in the response map.
const ResultKeyRecommendations = "recommendations"

// AnalysisResponse is the endpoint's final payload.
type AnalysisResponse struct {
	GroupID        string                            `json:"groupId"`
	AnalysisResult map[string][]AnalysisResultDetail `json:"analysisResult"`
}
