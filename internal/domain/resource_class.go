package domain

// ResourceClass names a tier of the external generation API with its own
// rate quota. Classes are resolved once at configuration load time;
// anything unknown maps to the default class.
type ResourceClass string

const (
	ClassFast  ResourceClass = "fast"
	ClassHeavy ResourceClass = "heavy"

	DefaultResourceClass = ClassFast
)

func (c ResourceClass) String() string {
	return string(c)
}

// ParseResourceClass maps a raw class name to a known class, falling back
// to the default for empty or unknown values.
func ParseResourceClass(s string) ResourceClass {
	switch ResourceClass(s) {
	case ClassFast:
		return ClassFast
	case ClassHeavy:
		return ClassHeavy
	default:
		return DefaultResourceClass
	}
}
