// Package normalize converts locale-formatted cell values from the raw
// tables into explicit nullable numbers. Missing is a first-class
// outcome: suppression markers, blanks, and unparseable content all
// normalize to missing, never to zero and never to an error.
package normalize

import (
	"strconv"
	"strings"

	"github.com/observatoire-logement/lovac-cli/internal/model"
)

// missingTokens are the case-insensitive cell values that mean "no
// value". "s" is the statistical suppression marker used by the source
// to withhold small counts for privacy.
var missingTokens = map[string]struct{}{
	"":   {},
	"s":  {},
	"na": {},
}

// thousandsSeparators lists the space characters French exports use to
// group digits: ordinary space, no-break space, and narrow no-break
// space.
var thousandsSeparators = strings.NewReplacer(" ", "", " ", "", " ", "")

// Number parses a single cell into a nullable number.
//
// The source's own disambiguation is preserved as-is: a remaining
// string containing a decimal point parses as a float, anything else as
// an integer. Applying Number to the string form of a value it produced
// returns the same value.
func Number(cell string) model.Nullable {
	s := strings.TrimSpace(cell)
	if _, ok := missingTokens[strings.ToLower(s)]; ok {
		return model.Missing()
	}

	s = thousandsSeparators.Replace(s)

	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Missing()
		}
		return model.Some(f)
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return model.Missing()
	}
	return model.Some(float64(i))
}
