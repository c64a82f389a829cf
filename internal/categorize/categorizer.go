package categorize

import "context"

// Category is the closed set of qualified disability expense groups an
// ABLE plan recognizes. Submissions must carry one of these; the AI
// suggestion is advisory and always lands inside the set.
type Category string

const (
	CategoryHousing                  Category = "housing"
	CategoryTransportation           Category = "transportation"
	CategoryEducation                Category = "education"
	CategoryEmploymentTraining       Category = "employment_training"
	CategoryAssistiveTechnology      Category = "assistive_technology"
	CategoryPersonalSupportServices  Category = "personal_support_services"
	CategoryHealthPreventionWellness Category = "health_prevention_wellness"
	CategoryFinancialManagement      Category = "financial_management"
	CategoryLegalFees                Category = "legal_fees"
	CategoryFuneralBurial            Category = "funeral_burial"
	CategoryBasicLivingExpenses      Category = "basic_living_expenses"
	CategoryOther                    Category = "other"
)

// Categories returns the full set in a stable order, for validation
// messages and for the inference prompt.
func Categories() []Category {
	return []Category{
		CategoryHousing,
		CategoryTransportation,
		CategoryEducation,
		CategoryEmploymentTraining,
		CategoryAssistiveTechnology,
		CategoryPersonalSupportServices,
		CategoryHealthPreventionWellness,
		CategoryFinancialManagement,
		CategoryLegalFees,
		CategoryFuneralBurial,
		CategoryBasicLivingExpenses,
		CategoryOther,
	}
}

// ParseCategory validates a raw tag against the closed set.
func ParseCategory(raw string) (Category, bool) {
	for _, c := range Categories() {
		if Category(raw) == c {
			return c, true
		}
	}
	return "", false
}

// Input is what the model sees about an expense.
type Input struct {
	Merchant      string
	Description   string
	AmountMinUnit int64
}

// Suggestion is the structured model output. Confidence is 0..1.
type Suggestion struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Categorizer is the opaque AI collaborator: input in, structured
// suggestion or failure out. Injected so handlers can be tested
// without a model call.
type Categorizer interface {
	Categorize(ctx context.Context, in Input) (Suggestion, error)
}
