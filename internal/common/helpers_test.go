package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPluralizeCoins(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "монет"},
		{1, "монета"},
		{2, "монеты"},
		{4, "монеты"},
		{5, "монет"},
		{11, "монет"},
		{12, "монет"},
		{14, "монет"},
		{21, "монета"},
		{22, "монеты"},
		{100, "монет"},
		{101, "монета"},
		{111, "монет"},
		{-1, "монета"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, PluralizeCoins(tt.n), "n=%d", tt.n)
	}
}

func TestPluralizeItems(t *testing.T) {
	assert.Equal(t, "предмет", PluralizeItems(1))
	assert.Equal(t, "предмета", PluralizeItems(3))
	assert.Equal(t, "предметов", PluralizeItems(7))
	assert.Equal(t, "предметов", PluralizeItems(12))
	assert.Equal(t, "предмет", PluralizeItems(21))
}

func TestPluralizeStars(t *testing.T) {
	assert.Equal(t, "звезда", PluralizeStars(1))
	assert.Equal(t, "звезды", PluralizeStars(2))
	assert.Equal(t, "звёзд", PluralizeStars(8))
	assert.Equal(t, "звёзд", PluralizeStars(14))
}

func TestFormatCoins(t *testing.T) {
	assert.Equal(t, "150 монет", FormatCoins(150))
	assert.Equal(t, "1 монета", FormatCoins(1))
	assert.Equal(t, "22 монеты", FormatCoins(22))
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n        int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1 000"},
		{2350, "2 350"},
		{10500, "10 500"},
		{1000000, "1 000 000"},
		{1234567, "1 234 567"},
		{-2350, "-2 350"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatNumber(tt.n), "n=%d", tt.n)
	}
}
