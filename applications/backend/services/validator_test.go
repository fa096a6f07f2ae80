package services

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/donmikel/mediaupload/applications/backend/domain"
)

func TestValidateObject(t *testing.T) {
	rule := domain.PurposeRule{Name: "product-image", MaxSize: 1024}

	tests := []struct {
		name    string
		asset   domain.Asset
		body    []byte
		wantErr string
	}{
		{
			name:  "png declared as png",
			asset: domain.Asset{ContentType: "image/png", ContentLength: int64(len(pngData))},
			body:  pngData,
		},
		{
			name:  "octet-stream accepts anything",
			asset: domain.Asset{ContentType: "application/octet-stream", ContentLength: 4},
			body:  []byte("data"),
		},
		{
			name:    "text declared as png",
			asset:   domain.Asset{ContentType: "image/png", ContentLength: 9},
			body:    []byte("not a png"),
			wantErr: "declared image/png",
		},
		{
			name:    "too large",
			asset:   domain.Asset{ContentType: "image/png", ContentLength: 1025},
			body:    pngData,
			wantErr: "larger than",
		},
		{
			name:    "empty",
			asset:   domain.Asset{ContentType: "image/png"},
			wantErr: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateObject(rule, tt.asset, bytes.NewReader(tt.body))
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestPurposeRuleAllows(t *testing.T) {
	rule := domain.PurposeRule{AllowedTypes: []string{"image/*", "video/mp4"}}

	assert.True(t, rule.Allows("image/png"))
	assert.True(t, rule.Allows("IMAGE/JPEG"))
	assert.True(t, rule.Allows("video/mp4; codecs=avc1"))
	assert.False(t, rule.Allows("video/webm"))
	assert.False(t, rule.Allows("application/x-msdownload"))
	assert.False(t, rule.Allows(""))
	assert.False(t, rule.Allows(strings.Repeat("/", 3)))

	assert.True(t, domain.PurposeRule{}.Allows("application/pdf"))
}
