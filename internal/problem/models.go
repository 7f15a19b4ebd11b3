package problem

// Problem is a cached solved.ac problem.
type Problem struct {
	ID      int    `json:"problemId"`
	TitleKo string `json:"titleKo"`
	Level   int    `json:"level"`
	Key     string `json:"key"`
}

// RecommendLimit caps the number of recommendations returned.
const RecommendLimit = 10

// tierWindow is how far a problem level may be from the requested tier.
const tierWindow = 3
