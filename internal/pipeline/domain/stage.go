package domain

// StageCategory is the fixed classification of a pipeline stage.
// The set is closed; tenants name and order stages freely but each stage
// maps to exactly one category, frozen once any lead has used the stage.
type StageCategory string

const (
	CategoryNew         StageCategory = "new"
	CategoryContacted   StageCategory = "contacted"
	CategoryQualifying  StageCategory = "qualifying"
	CategoryNegotiating StageCategory = "negotiating"
	CategoryWon         StageCategory = "won"
	CategoryLost        StageCategory = "lost"
)

var knownCategories = map[StageCategory]struct{}{
	CategoryNew:         {},
	CategoryContacted:   {},
	CategoryQualifying:  {},
	CategoryNegotiating: {},
	CategoryWon:         {},
	CategoryLost:        {},
}

// IsKnownCategory reports whether the value is a valid stage category.
func IsKnownCategory(category StageCategory) bool {
	_, ok := knownCategories[category]
	return ok
}

const (
	// MaxActiveStages is the per-tenant ceiling on active pipeline stages.
	MaxActiveStages = 20
	// MaxOrdinal is the highest allowed ordinal position.
	MaxOrdinal = MaxActiveStages - 1
)
