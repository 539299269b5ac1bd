package logger

import "testing"

func TestOperationAndTableFromSQL(t *testing.T) {
	cases := []struct {
		sql       string
		operation string
		table     string
	}{
		{`SELECT * FROM "acme_payers" WHERE function_id = $1`, "SELECT", "acme_payers"},
		{`INSERT INTO "acme_functions" ("id") VALUES ($1)`, "INSERT", "acme_functions"},
		{`UPDATE acme_edit_logs SET reason = ?`, "UPDATE", "acme_edit_logs"},
		{`CREATE UNIQUE INDEX ux_acme_functions_function_id ON acme_functions (function_id)`, "UNKNOWN", "acme_functions"},
	}

	for _, tc := range cases {
		if got := operationFromSQL(tc.sql); got != tc.operation {
			t.Fatalf("operationFromSQL(%q) = %q, want %q", tc.sql, got, tc.operation)
		}
		if got := tableFromSQL(tc.sql); got != tc.table {
			t.Fatalf("tableFromSQL(%q) = %q, want %q", tc.sql, got, tc.table)
		}
	}
}

func TestOrgFromTable(t *testing.T) {
	cases := map[string]string{
		"acme_payers":              "acme",
		"acme_corp_payer_profiles": "acme_corp",
		"globex_edit_logs":         "globex",
		"organizations":            "",
		"_functions":               "",
	}
	for table, want := range cases {
		if got := orgFromTable(table); got != want {
			t.Fatalf("orgFromTable(%q) = %q, want %q", table, got, want)
		}
	}
}
