package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestFilter() *DealFilter {
	return NewDealFilter(
		[]string{"строитель", "курилиш", "ремонт", "реконструкц", "школ"},
		[]string{"питан", "продукт", "канцеляр"},
	)
}

func TestDealFilter_CategoryMatch(t *testing.T) {
	f := newTestFilter()

	assert.True(t, f.IsConstruction("Строительство жилого дома", "", ""))
	assert.True(t, f.IsConstruction("КУРИЛИШ ишлари", "", ""))
	assert.False(t, f.IsConstruction("Поставка мебели", "", ""))
}

func TestDealFilter_NegativeKeywordWins(t *testing.T) {
	f := newTestFilter()

	// Category matches both tiers: "школ" (construction) and "питан"
	// (non-construction). The more specific negative keyword rejects.
	assert.False(t, f.IsConstruction("питание в дошкольных школах", "", ""))
}

func TestDealFilter_PartyNameFallback(t *testing.T) {
	f := newTestFilter()

	assert.True(t, f.IsConstruction("Прочие услуги", "", `OOO "Курилиш Инвест"`))
	assert.True(t, f.IsConstruction("", "Трест Строитель", ""))

	// Party name matches but the category is explicitly
	// non-construction.
	assert.False(t, f.IsConstruction("Поставка продуктов", "", "OOO Курилиш"))
}

func TestDealFilter_NoSignal(t *testing.T) {
	f := newTestFilter()
	assert.False(t, f.IsConstruction("", "", ""))
}

func TestRegionExtractor(t *testing.T) {
	e := NewRegionExtractor([]string{"Ташкент", "Самарканд", "Фергана"})

	assert.Equal(t, "Ташкент", e.Extract("Хокимият города Ташкента"))
	assert.Equal(t, "Самарканд", e.Extract("", "ремонт дорог в Самарканде"))
	assert.Equal(t, "", e.Extract("Бухара"))
}
