package audio

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrGainTooShort    = errors.New("gain too short")
	ErrGainParseFailed = errors.New("gain is not a number")
	ErrGainOutOfRange  = errors.New("gain out of range")
)

// DbToScalar converts a decibel gain to a linear multiplier.
func DbToScalar(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}

// ScalarToDb converts a linear multiplier to decibels.
func ScalarToDb(scalar float32) float32 {
	return 20 * float32(math.Log10(float64(scalar)))
}

// ParseGain parses a gain string into a linear multiplier. Accepted forms are
// a plain non-negative scalar ("0.5", "2") or a decibel value with a "db"
// suffix ("-6db", "+12db").
func ParseGain(s string) (float32, error) {
	if len(s) == 0 {
		return 0, ErrGainTooShort
	}

	if strings.HasSuffix(s, "db") {
		db, err := strconv.ParseFloat(s[:len(s)-2], 32)
		if err != nil {
			return 0, ErrGainParseFailed
		}
		return DbToScalar(float32(db)), nil
	}

	scalar, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, ErrGainParseFailed
	}
	if scalar < 0 {
		return 0, ErrGainOutOfRange
	}
	return float32(scalar), nil
}
