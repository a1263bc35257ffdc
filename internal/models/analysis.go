package models

// Category is one food category a member voted on.
type Category struct {
	CategoryID   int64  `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	Preferred    bool   `json:"preferred"`
}

// MemberSetting carries one member's position, free-text wishes and
// category votes.
type MemberSetting struct {
	MemberID     int64      `json:"memberId"`
	XPosition    *float64   `json:"xPosition"`
	YPosition    *float64   `json:"yPosition"`
	InputText    string     `json:"inputText"`
	CategoryList []Category `json:"categoryList"`
}

// AIAnalysisRequest is the inbound analysis request for one person or group.
type AIAnalysisRequest struct {
	GroupID           string          `json:"groupId"`
	AnalysisID        int64           `json:"analysisId"`
	MemberSettingList []MemberSetting `json:"memberSettingList"`
}

// CategoryVote tallies preferred / non-preferred votes for one category
// across all members.
type CategoryVote struct {
	Preferred    int `json:"preferred"`
	NonPreferred int `json:"nonPreferred"`
}

// BasePosition is the coordinate the place search centers on.
type BasePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PreprocessResult is the output of the PREPROCESSING stage.
type PreprocessResult struct {
	GroupID            string                  `json:"groupId"`
	IsGroup            bool                    `json:"isGroup"`
	MemberCount        int                     `json:"memberCount"`
	BasePosition       BasePosition            `json:"basePosition"`
	CategoryPreference map[string]CategoryVote `json:"categoryPreference"`
	InputTexts         []string                `json:"inputTextSummarySource"`
}

// GroupPreferenceSummary is the AI-derived digest of the group's tastes:
// a keyword list for the place search and a one-paragraph condition summary
// embedded into scoring prompts.
type GroupPreferenceSummary struct {
	CategoryKeywords []string `json:"categoryResponse"`
	ConditionSummary string   `json:"inputTextResponse"`
}
