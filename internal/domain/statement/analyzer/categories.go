package analyzer

// SpendingCategory groups transaction description keywords under a label.
// Earlier categories take precedence when a description matches several.
type SpendingCategory struct {
	Name     string
	Keywords []string
}

// DefaultCategories returns the built-in FR/EN keyword table tuned for the
// supported bank statement layouts. Keywords are matched as uppercase
// substrings, so entries must be long enough not to shadow other merchants.
func DefaultCategories() []SpendingCategory {
	return []SpendingCategory{
		{Name: "income", Keywords: []string{
			"VIREMENT SALAIRE", "SALAIRE", "POLE EMPLOI", "REMBOURSEMENT",
		}},
		{Name: "housing", Keywords: []string{
			"LOYER", "EDF", "ENGIE", "SYNDIC", "ASSURANCE HABITATION",
		}},
		{Name: "groceries", Keywords: []string{
			"CARREFOUR", "LECLERC", "AUCHAN", "LIDL", "ALDI",
			"INTERMARCHE", "MONOPRIX", "FRANPRIX", "SUPERMARCHE", "GROCERY",
		}},
		{Name: "restaurants", Keywords: []string{
			"RESTAURANT", "BRASSERIE", "BOULANGERIE", "CREPERIE",
			"MCDONALD", "BURGER", "PIZZERIA",
		}},
		{Name: "transport", Keywords: []string{
			"SNCF", "RATP", "NAVIGO", "UBER", "TAXI", "ESSENCE",
			"AUTOROUTE", "PEAGE", "PARKING",
		}},
		{Name: "subscriptions", Keywords: []string{
			"NETFLIX", "SPOTIFY", "DEEZER", "CANAL", "ABONNEMENT", "AMAZON PRIME",
		}},
		{Name: "fees", Keywords: []string{
			"COTISATION", "FRAIS", "AGIOS", "COMMISSION",
		}},
		{Name: "cash", Keywords: []string{
			"RETRAIT", "DAB", "DISTRIBUTEUR",
		}},
		{Name: "transfers", Keywords: []string{
			"VIREMENT", "PRLV", "PRELEVEMENT", "CHEQUE",
		}},
	}
}
