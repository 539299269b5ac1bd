package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiffReportsTopLevelChanges(t *testing.T) {
	before := map[string]any{"payer_name": "Ravi", "payer_amount": 500.0, "updated_at": "a"}
	after := map[string]any{"payer_name": "Ravi", "payer_amount": 1000.0, "updated_at": "b"}

	assert.Equal(t, []string{"payer_amount"}, Diff(before, after))
}

func TestDiffRecursesOneLevel(t *testing.T) {
	before := map[string]any{
		"bill_customization": map[string]any{"font_sizes": map[string]any{"header": 24.0}, "ad_settings": "x"},
		"function_name":      "Wedding",
	}
	after := map[string]any{
		"bill_customization": map[string]any{"font_sizes": map[string]any{"header": 30.0}, "ad_settings": "x"},
		"function_name":      "Wedding",
	}
	assert.Equal(t, []string{"bill_customization"}, Diff(before, after))

	assert.Empty(t, Diff(before, before))
}

func TestDiffCountsAddedAndRemovedKeys(t *testing.T) {
	before := map[string]any{"a": 1.0}
	after := map[string]any{"b": 1.0}
	assert.Equal(t, []string{"a", "b"}, Diff(before, after))
}

func TestSanitizeStripsSecrets(t *testing.T) {
	in := map[string]any{
		"payer_name":    "Ravi",
		"password_hash": "x",
		"_internal":     true,
		"nested":        map[string]any{"api_key": "k", "ok": 1},
	}
	out := Sanitize(in)

	assert.Equal(t, map[string]any{
		"payer_name": "Ravi",
		"nested":     map[string]any{"ok": 1},
	}, out)
	assert.Contains(t, in, "password_hash")
}

func TestSnapshotUsesJSONNames(t *testing.T) {
	snap, err := Snapshot(struct {
		Name   string `json:"payer_name"`
		Amount int64  `json:"payer_amount"`
	}{Name: "Ravi", Amount: 500})
	require.NoError(t, err)

	assert.Equal(t, "Ravi", snap["payer_name"])
	assert.Equal(t, json.Number("500"), snap["payer_amount"])
}

func TestSnapshotKeepsLargeAmountsDistinct(t *testing.T) {
	type payer struct {
		Amount int64 `json:"payer_amount"`
	}
	before, err := Snapshot(payer{Amount: 1 << 53})
	require.NoError(t, err)
	after, err := Snapshot(payer{Amount: 1<<53 + 1})
	require.NoError(t, err)

	assert.Equal(t, json.Number("9007199254740993"), after["payer_amount"])
	assert.Equal(t, []string{"payer_amount"}, Diff(before, after))
}
