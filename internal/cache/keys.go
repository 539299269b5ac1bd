package cache

import (
	"fmt"
	"strings"
)

const keyPrefix = "moiledger"

// globEscaper quotes the SCAN MATCH metacharacters of user-derived key parts.
var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

func escapeGlob(part string) string {
	return globEscaper.Replace(part)
}

// FunctionKeys are the cached listings touched by a function mutation.
func FunctionKeys(orgName string) []string {
	return []string{
		fmt.Sprintf("%s:%s:functions:*", keyPrefix, orgName),
		fmt.Sprintf("%s:%s:dashboard:*", keyPrefix, orgName),
	}
}

// PayerKeys are the cached listings and projections touched by a payer mutation.
func PayerKeys(orgName, functionID string) []string {
	return []string{
		fmt.Sprintf("%s:%s:payers:%s:*", keyPrefix, orgName, escapeGlob(functionID)),
		fmt.Sprintf("%s:%s:payers:deleted:*", keyPrefix, orgName),
		fmt.Sprintf("%s:%s:summary:%s:*", keyPrefix, orgName, escapeGlob(functionID)),
		fmt.Sprintf("%s:%s:profiles:*", keyPrefix, orgName),
		fmt.Sprintf("%s:%s:dashboard:*", keyPrefix, orgName),
	}
}

// EditLogKeys are the cached edit log listings of a target.
func EditLogKeys(orgName, targetID string) []string {
	return []string{
		fmt.Sprintf("%s:%s:edit_logs:%s:*", keyPrefix, orgName, escapeGlob(targetID)),
	}
}

// TenantKeys matches every key of the organization.
func TenantKeys(orgName string) []string {
	return []string{fmt.Sprintf("%s:%s:*", keyPrefix, orgName)}
}
