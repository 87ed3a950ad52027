package models

// NutrientRatios are the percentages by weight of the six nutrients the
// catalog tracks, in the order they are presented to the model.
type NutrientRatios struct {
	Calcium    float64 `yaml:"calcium" json:"calcium"`
	Magnesium  float64 `yaml:"magnesium" json:"magnesium"`
	Nitrogen   float64 `yaml:"nitrogen" json:"nitrogen"`
	Phosphorus float64 `yaml:"phosphorus" json:"phosphorus"`
	Potassium  float64 `yaml:"potassium" json:"potassium"`
	Sulphur    float64 `yaml:"sulphur" json:"sulphur"`
}

// Values returns the ratios as Ca, Mg, N, P, K, S.
func (r NutrientRatios) Values() [6]float64 {
	return [6]float64{r.Calcium, r.Magnesium, r.Nitrogen, r.Phosphorus, r.Potassium, r.Sulphur}
}

type Product struct {
	Name        string         `yaml:"name" json:"name"`
	Description string         `yaml:"description" json:"description"`
	Ratios      NutrientRatios `yaml:"ratios" json:"ratios"`
}
