package services

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/donmikel/mediaupload/applications/backend/domain"
)

// validateObject checks a stored object against its purpose rule.
// The sniffed content type, or one of its parents, must equal the declared type.
func validateObject(rule domain.PurposeRule, asset domain.Asset, body io.Reader) error {
	if rule.MaxSize > 0 && asset.ContentLength > rule.MaxSize {
		return fmt.Errorf("file is larger than %s", humanize.Bytes(uint64(rule.MaxSize)))
	}
	if asset.ContentLength == 0 {
		return fmt.Errorf("file is empty")
	}

	declared, err := domain.MediaType(asset.ContentType)
	if err != nil {
		return fmt.Errorf("invalid declared content type %q: %w", asset.ContentType, err)
	}

	detected, err := mimetype.DetectReader(body)
	if err != nil {
		return fmt.Errorf("can't detect content type: %w", err)
	}

	for m := detected; m != nil; m = m.Parent() {
		if m.Is(declared) {
			return nil
		}
	}

	return fmt.Errorf("content looks like %s, declared %s", detected.String(), declared)
}
