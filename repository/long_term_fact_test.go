package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSearchQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{name: "cyrillic query", query: "любимый цвет", wantErr: false},
		{name: "latin with digits", query: "python 3", wantErr: false},
		{name: "hyphen allowed", query: "кто-то", wantErr: false},
		{name: "empty query", query: "", wantErr: true},
		{name: "sql metacharacters", query: "'; DROP TABLE long_term_facts; --", wantErr: true},
		{name: "percent sign", query: "100%", wantErr: true},
		{name: "underscore", query: "a_b", wantErr: true},
		{name: "exactly max length", query: strings.Repeat("а", MaxSearchQueryLength), wantErr: false},
		{name: "over max length", query: strings.Repeat("а", MaxSearchQueryLength+1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSearchQuery(tt.query)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSearchQueryCountsRunesNotBytes(t *testing.T) {
	// 100 个西里尔字母占 200 字节，但长度校验按字符数
	query := strings.Repeat("ю", MaxSearchQueryLength)
	assert.Greater(t, len(query), MaxSearchQueryLength)
	assert.NoError(t, ValidateSearchQuery(query))
}
