package metadata

import (
	"fmt"
	"strings"
)

// SearchType is the matching strategy a property contributes to free-text
// search.
type SearchType int

const (
	// SearchNone excludes the property from search.
	SearchNone SearchType = iota
	// SearchContainsCaseInsensitive matches tokens anywhere in the value, ignoring case.
	SearchContainsCaseInsensitive
	// SearchStartsWithCaseSensitive matches tokens at the start of the value's canonical text.
	SearchStartsWithCaseSensitive
	// SearchExactMatchCaseInsensitive matches the whole canonical text, ignoring case.
	SearchExactMatchCaseInsensitive
)

var searchTypeNames = map[SearchType]string{
	SearchNone:                      "none",
	SearchContainsCaseInsensitive:   "contains",
	SearchStartsWithCaseSensitive:   "startswith",
	SearchExactMatchCaseInsensitive: "exact",
}

// String returns the tag spelling of the search type.
func (s SearchType) String() string {
	if name, ok := searchTypeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SearchType(%d)", int(s))
}

// Valid reports whether s is one of the defined strategies.
func (s SearchType) Valid() bool {
	_, ok := searchTypeNames[s]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (s SearchType) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid search type %d", int(s))
	}
	return []byte(s.String()), nil
}

// ParseSearchType parses a tag spelling, ignoring case.
func ParseSearchType(s string) (SearchType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range searchTypeNames {
		if name == s {
			return t, nil
		}
	}
	return SearchNone, fmt.Errorf("unknown search type %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *SearchType) UnmarshalText(text []byte) error {
	t, err := ParseSearchType(string(text))
	if err != nil {
		return err
	}
	*s = t
	return nil
}
