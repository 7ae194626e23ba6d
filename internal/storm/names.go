package storm

import "regexp"

// file names.go implements the four boolean name-classification
// predicates used by the parser's statement dispatch and by downstream
// consumers.

var (
	cmdNameRe  = regexp.MustCompile(`^[a-z][a-z0-9.]+$`)
	propNameRe = regexp.MustCompile(`^[a-z_][a-z0-9]*(:[a-z0-9]+)+([:.][a-z_ ][a-z0-9]+)*$`)
	univNameRe = regexp.MustCompile(`^\.[a-z_][a-z0-9]*([:.][a-z0-9]+)*$`)
	formNameRe = regexp.MustCompile(`^[a-z][a-z0-9]*(:[a-z0-9]+)+$`)
)

// IsCmdName reports whether name is lexically valid as a Storm command
// name.
func IsCmdName(name string) bool {
	return cmdNameRe.MatchString(name)
}

// IsPropName reports whether name is lexically valid as an absolute
// property name (form:prop or form:prop:subprop).
func IsPropName(name string) bool {
	return propNameRe.MatchString(name)
}

// IsUnivName reports whether name is lexically valid as a universal
// property name (a leading-dot property shared across forms).
func IsUnivName(name string) bool {
	return univNameRe.MatchString(name)
}

// IsFormName reports whether name is lexically valid as a form name.
func IsFormName(name string) bool {
	return formNameRe.MatchString(name)
}
