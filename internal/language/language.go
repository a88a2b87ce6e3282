package language

import "path/filepath"

// Language is the source language of a compilation database entry
type Language int

const (
	Unknown Language = iota
	C
	Cxx
)

// Classify maps a source file to its language by extension.
// Matching is case sensitive; anything other than .c, .cpp and .cc is Unknown.
func Classify(file string) Language {
	switch filepath.Ext(file) {
	case ".c":
		return C
	case ".cpp", ".cc":
		return Cxx
	default:
		return Unknown
	}
}

// ProbeFlag returns the compiler flag selecting this language, or "" for Unknown
func (l Language) ProbeFlag() string {
	switch l {
	case C:
		return "-xc"
	case Cxx:
		return "-xc++"
	default:
		return ""
	}
}

func (l Language) String() string {
	switch l {
	case C:
		return "c"
	case Cxx:
		return "c++"
	default:
		return "unknown"
	}
}
