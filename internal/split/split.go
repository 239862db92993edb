// Package split models the named partitions of a dataset and selects, row by
// row, which partition a row belongs to.
package split

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrInvalidSpecification is returned for a malformed name=value token.
	ErrInvalidSpecification = errors.New("invalid split specification")
	// ErrInvalidSet is returned when a collection of splits cannot be used
	// together, e.g. proportions summing to more than 1.
	ErrInvalidSet = errors.New("invalid split set")
)

// RowSplit is a split that wants a fixed number of rows. Counts are float64
// so they share arithmetic with proportions; they are always integral.
type RowSplit struct {
	Name  string
	Total float64
	Done  float64
}

// Remaining is the number of rows the split still accepts.
func (r RowSplit) Remaining() float64 {
	return r.Total - r.Done
}

// Full reports whether the split has received its target.
func (r RowSplit) Full() bool {
	return r.Done >= r.Total
}

// ProportionSplit is a split that wants a fraction of all rows.
type ProportionSplit struct {
	Name       string
	Proportion float64
}

// ParseRowSplit parses "name=N" where N is a non-negative integer.
func ParseRowSplit(spec string) (RowSplit, error) {
	name, value, err := parseToken(spec)
	if err != nil {
		return RowSplit{}, err
	}
	total, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return RowSplit{}, fmt.Errorf("%w: %q: row count must be a non-negative integer", ErrInvalidSpecification, spec)
	}
	return RowSplit{Name: name, Total: float64(total)}, nil
}

// ParseProportionSplit parses "name=F" where 0 < F < 1.
func ParseProportionSplit(spec string) (ProportionSplit, error) {
	name, value, err := parseToken(spec)
	if err != nil {
		return ProportionSplit{}, err
	}
	p, err := strconv.ParseFloat(value, 64)
	if err != nil || p <= 0 || p >= 1 {
		return ProportionSplit{}, fmt.Errorf("%w: %q: proportion must be between 0 and 1 exclusive", ErrInvalidSpecification, spec)
	}
	return ProportionSplit{Name: name, Proportion: p}, nil
}

func parseToken(spec string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(spec), "=")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q: expected name=value", ErrInvalidSpecification, spec)
	}
	name := strings.TrimSpace(parts[0])
	if err := ValidateName(name); err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrInvalidSpecification, spec, err)
	}
	return name, strings.TrimSpace(parts[1]), nil
}

// ValidateName checks that a split name can be used as a directory and file
// name component.
func ValidateName(name string) error {
	switch {
	case name == "":
		return errors.New("empty split name")
	case name == "." || name == "..":
		return fmt.Errorf("split name %q is reserved", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("split name %q contains a path separator", name)
	}
	return nil
}
