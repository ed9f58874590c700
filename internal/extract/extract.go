// Package extract pulls translatable English strings out of an
// installed modpack tree. One extractor exists per unit category; each
// returns the entry sets for the units it found, keyed by unit name.
package extract

import (
	"github.com/zack-zzq/modpack-localizer/internal/lang"
	"github.com/zack-zzq/modpack-localizer/internal/store"
)

// Extractor produces extracted entry sets for one category.
//
// The returned map is keyed by unit name. A nil map means the category
// is absent from the modpack (no unit at all); a unit name mapped to an
// empty entry set means the unit exists but has nothing translatable,
// which is a distinct, cacheable outcome.
type Extractor interface {
	Category() store.Category
	Extract(instanceDir string) (map[string]lang.Entries, error)
}

// All returns the extractors for every category in resolution order.
func All() []Extractor {
	return []Extractor{
		NewModExtractor(),
		NewKubeJSExtractor(),
		NewFTBQuestsExtractor(),
	}
}
