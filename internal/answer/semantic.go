package answer

// SemanticGroup is a named cluster of interchangeable words.
type SemanticGroup struct {
	Name  string
	Words []string
}

// SemanticGroups is the fixed synonym table. It is only consulted for
// borderline lexical overlap; order matters when two clusters qualify.
var SemanticGroups = []SemanticGroup{
	{Name: "increase", Words: []string{"increase", "improve", "boost", "raise", "grow", "enhance", "expand"}},
	{Name: "decrease", Words: []string{"decrease", "reduce", "lower", "cut", "minimize", "shrink", "drop"}},
	{Name: "customer", Words: []string{"customer", "client", "user", "consumer", "buyer", "shopper"}},
	{Name: "satisfaction", Words: []string{"satisfaction", "happiness", "contentment", "delight", "loyalty"}},
	{Name: "revenue", Words: []string{"revenue", "income", "sales", "earnings", "turnover"}},
	{Name: "cost", Words: []string{"cost", "costs", "expense", "expenses", "spend", "spending"}},
	{Name: "profit", Words: []string{"profit", "margin", "gain", "return"}},
	{Name: "risk", Words: []string{"risk", "threat", "hazard", "exposure", "danger"}},
	{Name: "speed", Words: []string{"speed", "velocity", "pace", "tempo"}},
	{Name: "quality", Words: []string{"quality", "standard", "excellence", "reliability"}},
	{Name: "team", Words: []string{"team", "staff", "employees", "workforce", "crew"}},
	{Name: "problem", Words: []string{"problem", "issue", "defect", "bug", "fault"}},
	{Name: "stop", Words: []string{"stop", "halt", "pause", "freeze", "suspend"}},
	{Name: "sell", Words: []string{"sell", "liquidate", "dump", "exit"}},
	{Name: "buy", Words: []string{"buy", "purchase", "acquire", "accumulate"}},
}

func (g SemanticGroup) contains(word string) bool {
	for _, w := range g.Words {
		if w == word {
			return true
		}
	}
	return false
}

func (g SemanticGroup) containsAny(words []string) bool {
	for _, w := range words {
		if g.contains(w) {
			return true
		}
	}
	return false
}

// sharedGroup returns the first cluster holding at least one user token and
// at least one candidate token.
func sharedGroup(userTokens, candidateTokens []string) (SemanticGroup, bool) {
	for _, g := range SemanticGroups {
		if g.containsAny(userTokens) && g.containsAny(candidateTokens) {
			return g, true
		}
	}
	return SemanticGroup{}, false
}

// synonymCovered reports whether word shares a cluster with any user token.
func synonymCovered(word string, userTokens []string) bool {
	for _, g := range SemanticGroups {
		if g.contains(word) && g.containsAny(userTokens) {
			return true
		}
	}
	return false
}
