package classifier

import "SignalSim/internal/domain/models"

// Fixed ordinal encoding of signal classes. Both directions are explicit so the
// contract does not depend on slice positions inside the model.
var (
	classToIndex = map[models.SignalClass]int{
		models.SignalSell: 0,
		models.SignalHold: 1,
		models.SignalBuy:  2,
	}
	indexToClass = map[int]models.SignalClass{
		0: models.SignalSell,
		1: models.SignalHold,
		2: models.SignalBuy,
	}
)

// EncodeClass returns the ordinal index of c.
func EncodeClass(c models.SignalClass) (int, bool) {
	i, ok := classToIndex[c]
	return i, ok
}

// DecodeClass returns the signal class for an ordinal index.
func DecodeClass(i int) (models.SignalClass, bool) {
	c, ok := indexToClass[i]
	return c, ok
}
