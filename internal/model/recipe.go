package model

// Recipe is a suggestion for using up an item.
type Recipe struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Image              string   `json:"image,omitempty"`
	SourceURL          string   `json:"source_url,omitempty"`
	ReadyInMinutes     int      `json:"ready_in_minutes,omitempty"`
	Servings           int      `json:"servings,omitempty"`
	MatchedIngredients []string `json:"matched_ingredients,omitempty"`
	MatchScore         int      `json:"match_score"`
}
