package validation

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Names that become cloud resources (networks, security groups, images)
	// are restricted to characters every backend accepts.
	namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

func init() {
	validate = validator.New()
}

// Struct validates any struct carrying `validate` tags.
func Struct(v any) error {
	if err := validate.Struct(v); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// ValidateResourceName checks a name destined for a cloud resource.
func ValidateResourceName(name string) error {
	if name == "" {
		return errors.New("resource name cannot be empty")
	}
	if len(name) > 64 {
		return fmt.Errorf("resource name '%s' exceeds maximum length of 64 characters", name)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("resource name '%s' contains invalid characters (only alphanumeric, underscore and dash allowed)", name)
	}
	return nil
}

// ValidateIPAddress checks that a string parses as an IP address.
func ValidateIPAddress(addr string) error {
	if _, err := netip.ParseAddr(addr); err != nil {
		return fmt.Errorf("'%s' is not a valid IP address", addr)
	}
	return nil
}

// ValidateCIDR checks that a string parses as a CIDR block.
func ValidateCIDR(cidr string) error {
	if _, _, err := net.ParseCIDR(cidr); err != nil {
		return fmt.Errorf("'%s' is not a valid CIDR block", cidr)
	}
	return nil
}

// ValidateFileExists checks that a path exists and is a regular file.
func ValidateFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("file '%s' does not exist", path)
	}
	if info.IsDir() {
		return fmt.Errorf("'%s' is a directory, expected a file", path)
	}
	return nil
}

// ValidateDirExists checks that a path exists and is a directory.
func ValidateDirExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("directory '%s' does not exist", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("'%s' is not a directory", path)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
