package domain

const (
	RecommendOpen  = "open"
	RecommendClose = "close"
)

// Recommendation is "open" when the majority of model outputs are at or above 0.5.
func (p Prediction) Recommendation() string {
	if len(p.Values) == 0 {
		return RecommendClose
	}
	open := 0
	for _, v := range p.Values {
		if v >= 0.5 {
			open++
		}
	}
	if open*2 > len(p.Values) {
		return RecommendOpen
	}
	return RecommendClose
}
