package tenant

import (
	"regexp"
	"strings"

	"github.com/gosimple/slug"
)

// MaxOrgNameLength keeps {org}_{kind} and derived index names within the
// 63 byte identifier limit of postgres.
const MaxOrgNameLength = 40

var (
	orgNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	underscoreRuns = regexp.MustCompile(`_+`)
)

// SanitizeOrgName turns a free-form organization name into a lowercase
// [a-z0-9_]+ slug. It returns "" when nothing usable remains.
func SanitizeOrgName(raw string) string {
	s := slug.Make(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	s = underscoreRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > MaxOrgNameLength {
		s = strings.TrimRight(s[:MaxOrgNameLength], "_")
	}
	if !orgNamePattern.MatchString(s) {
		return ""
	}
	return s
}

func ValidOrgName(name string) bool {
	return len(name) <= MaxOrgNameLength && orgNamePattern.MatchString(name)
}

// CollectionName is the physical table of kind for orgName.
func CollectionName(orgName string, kind EntityKind) string {
	return orgName + "_" + string(kind)
}
