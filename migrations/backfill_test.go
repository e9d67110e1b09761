package migrations

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unnumberedTransactions = `[
	{"date": "03/01/2024", "description": "LOYER JANVIER", "debit": 450, "credit": null},
	{"date": "05/01/2024", "description": "CB CARREFOUR PARIS", "debit": 45.1, "credit": null},
	{"date": "02/01/2024", "description": "VIREMENT SALAIRE", "debit": null, "credit": 1500}
]`

func decodeTransactions(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var transactions []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &transactions))
	return transactions
}

func TestAssignTransactionIDs_NumbersInOrder(t *testing.T) {
	transactions := decodeTransactions(t, unnumberedTransactions)

	assignTransactionIDs(transactions)

	require.Len(t, transactions, 3)
	for i, tr := range transactions {
		assert.Equal(t, i+1, tr["id"])
	}
	assert.Equal(t, "LOYER JANVIER", transactions[0]["description"])
	assert.Equal(t, "VIREMENT SALAIRE", transactions[2]["description"])
}

func TestAssignTransactionIDs_RenumbersStaleIDs(t *testing.T) {
	transactions := decodeTransactions(t, `[{"id": 9, "description": "a"}, {"id": 4, "description": "b"}]`)

	assignTransactionIDs(transactions)

	assert.Equal(t, 1, transactions[0]["id"])
	assert.Equal(t, 2, transactions[1]["id"])
}

func TestStripTransactionIDs(t *testing.T) {
	transactions := decodeTransactions(t, `[{"id": 1, "description": "a"}, {"description": "b"}]`)

	stripTransactionIDs(transactions)

	for _, tr := range transactions {
		_, ok := tr["id"]
		assert.False(t, ok)
	}
	assert.Equal(t, "a", transactions[0]["description"])
}

func TestAssignThenStrip_RestoresOriginal(t *testing.T) {
	transactions := decodeTransactions(t, unnumberedTransactions)

	assignTransactionIDs(transactions)
	stripTransactionIDs(transactions)

	restored, err := json.Marshal(transactions)
	require.NoError(t, err)
	assert.JSONEq(t, unnumberedTransactions, string(restored))
}

func TestAssignTransactionIDs_EmptyCollection(t *testing.T) {
	transactions := decodeTransactions(t, `[]`)

	assignTransactionIDs(transactions)
	stripTransactionIDs(transactions)

	assert.Empty(t, transactions)
}
