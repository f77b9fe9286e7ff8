package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitLabel(t *testing.T) {
	tests := []struct {
		name         string
		label        string
		wantName     string
		wantDistrict string
	}{
		{"dash separator", "Abbey Road - Westminster", "Abbey Road", "Westminster"},
		{"comma separator", "Abbey Road, Westminster", "Abbey Road", "Westminster"},
		{"no separator", "Abbey Road", "Abbey Road", ""},
		{"surrounding whitespace", "  Abbey Road -  Westminster ", "Abbey Road", "Westminster"},
		{"empty", "", "", ""},
		{"hyphenated name survives", "Stoke-on-Trent Central - Stoke", "Stoke-on-Trent Central", "Stoke"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, district := SplitLabel(tt.label)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantDistrict, district)
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABBEY ROAD", "Abbey Road"},
		{"abbey road", "Abbey Road"},
		{"  Abbey Road  ", "Abbey Road"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in))
	}
}
