package tariff

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCode is returned by ParseCode for strings that are not tariff codes.
var ErrInvalidCode = errors.New("invalid tariff code")

// Code is a parsed tariff code such as E-1R-AGILE-FLEX-22-11-25-A:
// fuel, register count, product code, retail region.
type Code struct {
	Raw         string
	Fuel        string
	RateCount   string
	ProductCode string
	Region      string
}

// ExtractProductCode strips the fuel, rate-count and region segments from a tariff code.
func ExtractProductCode(code string) (string, bool) {
	segments := strings.Split(code, "-")
	if len(segments) <= 3 {
		return "", false
	}
	return strings.Join(segments[2:len(segments)-1], "-"), true
}

// RetailRegion returns the trailing region letter (A to P).
func RetailRegion(code string) (string, bool) {
	if code == "" {
		return "", false
	}
	last := code[len(code)-1]
	if last < 'A' || last > 'P' {
		return "", false
	}
	return string(last), true
}

// IsSingleRate reports whether the rate-count segment starts with 1 (E-1R-...).
func IsSingleRate(code string) bool {
	return len(code) > 2 && code[2] == '1'
}

// IsSingleFuel reports the same flag as IsSingleRate; both read the register count.
func IsSingleFuel(code string) bool {
	return IsSingleRate(code)
}

// ParseCode splits a tariff code into its parts.
func ParseCode(code string) (Code, error) {
	code = strings.TrimSpace(code)
	segments := strings.Split(code, "-")
	productCode, ok := ExtractProductCode(code)
	if !ok {
		return Code{}, fmt.Errorf("%w: %q has %d segments", ErrInvalidCode, code, len(segments))
	}
	region, ok := RetailRegion(code)
	if !ok || len(segments[len(segments)-1]) != 1 {
		return Code{}, fmt.Errorf("%w: %q has no retail region", ErrInvalidCode, code)
	}
	return Code{
		Raw:         code,
		Fuel:        segments[0],
		RateCount:   segments[1],
		ProductCode: productCode,
		Region:      region,
	}, nil
}

// IsElectricity reports whether the code prices electricity.
func (c Code) IsElectricity() bool {
	return c.Fuel == "E"
}
