package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
)

// Validator checks raw user input for one wizard step. Invalid input yields a
// *RejectionError; infrastructure failures yield an ErrTransient error.
type Validator func(ctx context.Context, raw string) (models.FieldValue, error)

// Clock returns the current time
type Clock func() time.Time

// DateLayout is the DD-MM-YYYY format users type dates in
const DateLayout = "02-01-2006"

var (
	nrcPattern   = regexp.MustCompile(`^[0-9]+/[A-Za-z]+\([A-Za-z]\)[0-9]+$`)
	phonePattern = regexp.MustCompile(`^09[0-9]{9}$`)
)

// MinLength accepts text with at least n characters after trimming
func MinLength(n int) Validator {
	return func(ctx context.Context, raw string) (models.FieldValue, error) {
		s := strings.TrimSpace(raw)
		if utf8.RuneCountInString(s) < n {
			return models.FieldValue{}, Reject("must be at least %d characters", n)
		}
		return models.StringValue(s), nil
	}
}

// Pattern accepts text matching re
func Pattern(re *regexp.Regexp) Validator {
	return func(ctx context.Context, raw string) (models.FieldValue, error) {
		s := strings.TrimSpace(raw)
		if !re.MatchString(s) {
			return models.FieldValue{}, Reject("does not match %s", re.String())
		}
		return models.StringValue(s), nil
	}
}

// FutureDate accepts a DD-MM-YYYY date strictly after today in loc
func FutureDate(loc *time.Location, now Clock) Validator {
	return func(ctx context.Context, raw string) (models.FieldValue, error) {
		d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(raw), loc)
		if err != nil {
			return models.FieldValue{}, Reject("not a DD-MM-YYYY date")
		}
		y, m, day := now().In(loc).Date()
		today := time.Date(y, m, day, 0, 0, 0, 0, loc)
		if !d.After(today) {
			return models.FieldValue{}, Reject("date must be in the future")
		}
		// Stored as a calendar date so it renders the same in any zone.
		return models.DateValue(time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)), nil
	}
}

// PackageChoice accepts an active package by name (case-insensitive) or by
// its position in the listed menu, and stores the package id.
func PackageChoice(ref storage.ReferenceData) Validator {
	return func(ctx context.Context, raw string) (models.FieldValue, error) {
		packages, err := ref.ActivePackages(ctx)
		if err != nil {
			return models.FieldValue{}, transient("load packages", err)
		}
		choice := strings.TrimSpace(raw)
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(packages) {
			return models.StringValue(packages[n-1].PackageID), nil
		}
		for _, p := range packages {
			if strings.EqualFold(p.Name, choice) {
				return models.StringValue(p.PackageID), nil
			}
		}
		return models.FieldValue{}, Reject("unknown package %q", choice)
	}
}

// ValidatorRegistry resolves validators by name when wizards are defined
type ValidatorRegistry struct {
	validators map[string]Validator
}

// NewValidatorRegistry creates an empty registry
func NewValidatorRegistry() *ValidatorRegistry {
	return &ValidatorRegistry{validators: make(map[string]Validator)}
}

// Register adds or replaces a named validator
func (r *ValidatorRegistry) Register(name string, v Validator) {
	r.validators[name] = v
}

// Lookup returns the validator registered under name
func (r *ValidatorRegistry) Lookup(name string) (Validator, error) {
	v, ok := r.validators[name]
	if !ok {
		return nil, fmt.Errorf("no validator registered as %q", name)
	}
	return v, nil
}

// Validator names used by the registration wizard
const (
	ValidateFullName         = "full_name"
	ValidateNRCPassport      = "nrc_passport"
	ValidateContactNumber    = "contact_number"
	ValidateAddress          = "address"
	ValidatePackage          = "package"
	ValidateInstallationDate = "installation_date"
)

// DefaultValidators registers the built-in registration validators
func DefaultValidators(ref storage.ReferenceData, loc *time.Location, now Clock) *ValidatorRegistry {
	if now == nil {
		now = time.Now
	}
	r := NewValidatorRegistry()
	r.Register(ValidateFullName, MinLength(3))
	r.Register(ValidateNRCPassport, Pattern(nrcPattern))
	r.Register(ValidateContactNumber, Pattern(phonePattern))
	r.Register(ValidateAddress, MinLength(10))
	r.Register(ValidatePackage, PackageChoice(ref))
	r.Register(ValidateInstallationDate, FutureDate(loc, now))
	return r
}
