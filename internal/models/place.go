package models

// Basis says why a place ended up in the final recommendation:
// ranked by review scoring, or curated by the secondary AI pass.
type Basis string

const (
	BasisNone   Basis = ""
	BasisReview Basis = "REVIEW"
	BasisAI     Basis = "AI"
)

// Review is one raw user review attached to a place. Score is filled by the
// review scorer, nil until then.
type Review struct {
	Text   string   `json:"text"`
	Author string   `json:"author"`
	Rating float64  `json:"rating"` // source star rating from the places API
	Score  *float64 `json:"score"`  // AI-assigned 0.0-10.0
}

// Place is one candidate restaurant flowing through a single analysis run.
// It is owned by that run; the scorer mutates it in place and the assembler
// consumes it once. Never shared across requests.
type Place struct {
	ID          string   `json:"placeId"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	RatingCount int      `json:"userRatingCount"`
	PriceLevel  string   `json:"priceLevel"`
	MapsURI     string   `json:"googleMapsUri"`
	Latitude    *float64 `json:"latitude"`  // nil when the API omits location
	Longitude   *float64 `json:"longitude"` // nil when the API omits location
	Reviews     []Review `json:"reviews"`
	Photos      []string `json:"photos"`

	// Filled by the scorer.
	Score      *float64 `json:"score"` // aggregate 0.0-10.0, nil until scored
	TopReviews []Review `json:"topReviews"`

	// Filled by the selector.
	Basis     Basis  `json:"analysisBasis"`
	AIMessage string `json:"aiMessage"`
}

// AggregateScore returns the scored value, or 0.0 for unscored places so
// they sort last instead of panicking.
func (p *Place) AggregateScore() float64 {
	if p.Score == nil {
		return 0.0
	}
	return *p.Score
}
