package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/marmos91/objio/pkg/striper"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return formatValidationErrors(verrs)
		}
		return err
	}

	if err := cfg.Layout.Striper().Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	switch cfg.Store.Type {
	case StoreTypeBadger:
		if cfg.Store.Badger.Path == "" && !cfg.Store.Badger.InMemory {
			return fmt.Errorf("store.badger: path is required unless in_memory is set")
		}
	case StoreTypeS3:
		if cfg.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3: bucket is required")
		}
		if (cfg.Store.S3.AccessKeyID == "") != (cfg.Store.S3.SecretAccessKey == "") {
			return fmt.Errorf("store.s3: access_key_id and secret_access_key must be set together")
		}
	}

	return nil
}

// formatValidationErrors renders every failed field as "Namespace: tag[=param]".
func formatValidationErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed %q (%s)", fe.Namespace(), fe.Tag(), fe.Param())
		}
		msgs = append(msgs, msg)
	}
	return errors.New(strings.Join(msgs, "; "))
}

// Striper converts the layout section to a striping layout.
func (l LayoutConfig) Striper() striper.Layout {
	return striper.NewLayout(l.ObjectSize.Uint64(), l.StripeUnit.Uint64(), l.StripeCount)
}
