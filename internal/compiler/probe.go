package compiler

import (
	"slices"
	"strings"

	"github.com/Norgate-AV/cdbpatch/internal/language"
)

// ProbeFlags force a preprocessor-only run that reports the include search
// list without producing output. They always close a ProbeKey.
var ProbeFlags = []string{"-P", "-E", "-Wp,-v", "/dev/null"}

// DenyRule drops flags that cannot change the implicit include search list.
// Any argument starting with Prefix is dropped. If TakesValue is set and the
// argument is exactly Prefix, the following argument is dropped too.
type DenyRule struct {
	Prefix     string `mapstructure:"prefix"`
	TakesValue bool   `mapstructure:"takes_value"`
}

// DefaultDenyList covers output location, macros, include paths, warnings,
// optimization, compilation mode and dependency file generation.
// Rules are checked in order.
var DefaultDenyList = []DenyRule{
	{Prefix: "-I", TakesValue: true},
	{Prefix: "-L", TakesValue: true},
	{Prefix: "-imacros", TakesValue: true},
	{Prefix: "-isystem", TakesValue: true},
	{Prefix: "-include", TakesValue: true},
	{Prefix: "-D", TakesValue: true},
	{Prefix: "-W", TakesValue: true},
	{Prefix: "-o", TakesValue: true},
	{Prefix: "-c", TakesValue: true},
	{Prefix: "-E", TakesValue: true},
	{Prefix: "-fmacro-prefix-map", TakesValue: true},
	{Prefix: "-O", TakesValue: true},
	{Prefix: "-MF", TakesValue: true},
	{Prefix: "-MT", TakesValue: true},
	{Prefix: "-MQ", TakesValue: true},
	{Prefix: "-M"},
}

// pairedFlags are kept in the key together with their separate value
var pairedFlags = map[string]bool{
	"-x":              true,
	"-target":         true,
	"--target":        true,
	"-arch":           true,
	"-isysroot":       true,
	"--sysroot":       true,
	"--gcc-toolchain": true,
	"-Xclang":         true,
}

// ProbeKey is the canonical probe command for a compiler invocation.
// Element 0 is the compiler; the rest are its arguments.
type ProbeKey []string

// String returns a form of the key usable as a map key
func (k ProbeKey) String() string {
	return strings.Join(k, "\x00")
}

// Compiler returns the executable the probe runs
func (k ProbeKey) Compiler() string {
	if len(k) == 0 {
		return ""
	}

	return k[0]
}

// Args returns the arguments passed to the compiler
func (k ProbeKey) Args() []string {
	if len(k) == 0 {
		return nil
	}

	return k[1:]
}

// BuildProbeKey canonicalizes command into the probe used to discover the
// compiler's implicit include directories for file.
// It returns false if no language is given in command and file's extension
// is not a known source language.
func BuildProbeKey(file string, command []string, deny []DenyRule) (ProbeKey, bool) {
	if len(command) == 0 {
		return nil, false
	}

	units := filterFlags(command[1:], deny)
	slices.SortFunc(units, func(a, b []string) int {
		return slices.Compare(a, b)
	})

	key := ProbeKey{command[0]}
	hasLanguage := false
	for _, unit := range units {
		if strings.HasPrefix(unit[0], "-x") {
			hasLanguage = true
		}

		key = append(key, unit...)
	}

	if !hasLanguage {
		lang := language.Classify(file)
		if lang == language.Unknown {
			return nil, false
		}

		key = append(key, lang.ProbeFlag())
	}

	return append(key, ProbeFlags...), true
}

// filterFlags returns the flags of args that survive the deny list, grouped
// into sort units. A unit is a single flag, or a paired flag and its value.
func filterFlags(args []string, deny []DenyRule) [][]string {
	var units [][]string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if rule, ok := matchDenyRule(arg, deny); ok {
			if rule.TakesValue && arg == rule.Prefix {
				i++
			}

			continue
		}

		// positional arguments are sources
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if pairedFlags[arg] && i+1 < len(args) {
			units = append(units, []string{arg, args[i+1]})
			i++
			continue
		}

		units = append(units, []string{arg})
	}

	return units
}

func matchDenyRule(arg string, deny []DenyRule) (DenyRule, bool) {
	for _, rule := range deny {
		if strings.HasPrefix(arg, rule.Prefix) {
			return rule, true
		}
	}

	return DenyRule{}, false
}

// DenyList returns the default deny list followed by extra rules
func DenyList(extra ...DenyRule) []DenyRule {
	rules := make([]DenyRule, 0, len(DefaultDenyList)+len(extra))
	rules = append(rules, DefaultDenyList...)
	for _, rule := range extra {
		if rule.Prefix != "" {
			rules = append(rules, rule)
		}
	}

	return rules
}
