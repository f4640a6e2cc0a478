package detect

// HighValueThreshold is the amount above which a transaction is flagged by
// rule regardless of what the classifier says.
const HighValueThreshold = 10000.0

// Decide is the high-value rule for a single amount.
func Decide(amount float64) (FraudStatus, string) {
	if amount > HighValueThreshold {
		return StatusFraudulent, HighValueExplanation
	}
	return StatusLegitimate, LegitimateExplanation
}

// ApplyRule decides every row of chunk by the high-value rule. Rows that are
// not flagged are left provisionally legitimate for the classifier. It
// returns the number of rows flagged.
func ApplyRule(chunk []Transaction) int {
	flagged := 0
	for i := range chunk {
		chunk[i].Status, chunk[i].Explanation = Decide(chunk[i].Amount)
		if chunk[i].Status == StatusFraudulent {
			flagged++
		}
	}
	return flagged
}
