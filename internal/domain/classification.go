package domain

// Categories is the fixed vocabulary the classifier chooses from.
var Categories = []string{
	"Technical",
	"Billing",
	"Account",
	"Feature Request",
	"Bug Report",
	"General",
}

// KnownCategory reports whether the label is part of the vocabulary.
func KnownCategory(label string) bool {
	for _, c := range Categories {
		if c == label {
			return true
		}
	}
	return false
}

// ClassificationResult is the triple produced by a classification run.
type ClassificationResult struct {
	Category    string
	Explanation string
	Confidence  float64
}
