package generic

// Void is a zero-size placeholder value, e.g. for map-backed sets.
type Void = struct{}

func NewVoid() Void {
	return Void{}
}
