package beacon

import "github.com/google/uuid"

type color struct {
	name string
	id   uuid.UUID
}

var colorTable = []color{
	{"red", uuid.MustParse("A495BB10-C5B1-4B44-B512-1370F02D74DE")},
	{"green", uuid.MustParse("A495BB20-C5B1-4B44-B512-1370F02D74DE")},
	{"black", uuid.MustParse("A495BB30-C5B1-4B44-B512-1370F02D74DE")},
	{"purple", uuid.MustParse("A495BB40-C5B1-4B44-B512-1370F02D74DE")},
	{"orange", uuid.MustParse("A495BB50-C5B1-4B44-B512-1370F02D74DE")},
	{"blue", uuid.MustParse("A495BB60-C5B1-4B44-B512-1370F02D74DE")},
	{"yellow", uuid.MustParse("A495BB70-C5B1-4B44-B512-1370F02D74DE")},
	{"pink", uuid.MustParse("A495BB80-C5B1-4B44-B512-1370F02D74DE")},
}

// LookupColor maps a Tilt iBeacon UUID to its color name.
func LookupColor(id uuid.UUID) (string, bool) {
	for _, c := range colorTable {
		if c.id == id {
			return c.name, true
		}
	}
	return "", false
}

// ColorUUID returns the iBeacon UUID advertised by the Tilt of the given color.
func ColorUUID(name string) (uuid.UUID, bool) {
	for _, c := range colorTable {
		if c.name == name {
			return c.id, true
		}
	}
	return uuid.Nil, false
}

// Colors lists the known Tilt colors in table order.
func Colors() []string {
	out := make([]string, 0, len(colorTable))
	for _, c := range colorTable {
		out = append(out, c.name)
	}
	return out
}
