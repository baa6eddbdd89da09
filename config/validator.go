package config

// Validator is implemented by every configuration section.
type Validator interface {
	Validate() error
}

// ValidateAll returns the first failure.
func ValidateAll(validators ...Validator) error {
	for _, v := range validators {
		if v == nil {
			continue
		}
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
