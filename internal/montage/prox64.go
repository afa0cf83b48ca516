package montage

import "math"

// HeadRadius is the idealized spherical head radius in meters used for the
// built-in cap layout and its fiducials.
const HeadRadius = 0.095

// prox64Coords is the manufacturer's electrode sheet for the PROX-64 cap:
// spherical angles in degrees, theta running posterior (+90) to anterior
// (-90) and phi left (-90) to right (+90). The DRL and CMS electrodes are
// listed as Fpz and FCz on the sheet; they carry suffixed names here so the
// layout says what they are.
var prox64Coords = map[string][2]float64{
	"Fp1": {-90, -72}, "Fp2": {90, 72}, "F3": {-60, -51},
	"F4": {60, 51}, "C3": {-45, 0}, "C4": {45, 0},
	"P3": {-60, 51}, "P4": {60, -51}, "O1": {-90, 72},
	"O2": {90, -72}, "F7": {-90, -36}, "F8": {90, 36},
	"T7": {-90, 0}, "T8": {90, 0}, "P7": {-90, 36},
	"P8": {90, -36}, "AFz": {67, 90}, "Fz": {45, 90},
	"Cz": {0, 0}, "Pz": {45, -90}, "FC1": {-31, -46},
	"FC2": {31, 46}, "CP1": {-31, 46}, "CP2": {31, -46},
	"FC5": {-69, -21}, "FC6": {69, 21}, "CP5": {-69, 21},
	"CP6": {69, -21}, "FT9": {-113, -18}, "FT10": {113, 18},
	"TP7": {-90, 18}, "TP8": {90, -18}, "F1": {-49, -68},
	"F2": {49, 68}, "C1": {-23, 0}, "C2": {23, 0},
	"P1": {-49, 68}, "P2": {49, -68}, "AF3": {-74, -68},
	"AF4": {74, 68}, "FC3": {-49, -29}, "FC4": {49, 29},
	"CP3": {-49, 29}, "CP4": {49, -29}, "PO3": {-74, 68},
	"PO4": {74, -68}, "F5": {-74, -41}, "F6": {74, 41},
	"C5": {-68, 0}, "C6": {68, 0}, "P5": {-74, 41},
	"P6": {74, -41}, "AF7": {-90, -54}, "AF8": {90, 54},
	"FT7": {-90, -18}, "FT8": {90, 18}, "TP9": {-113, 18},
	"TP10": {113, -18}, "PO7": {-90, 54}, "PO8": {90, -54},
	"PO9": {-113, 54}, "PO10": {113, -54}, "CPz": {22, -90},
	"POz": {67, -90}, "FpCz_DRL": {90, 90}, "FCz_CMS": {23, 90},
}

// PROX64 builds the built-in montage for the PROX-64 cap. The spherical
// sheet coordinates convert to head-frame Cartesian (+X right, +Y anterior,
// +Z superior) via x=sin θ cos φ, y=sin θ sin φ, z=cos θ, scaled to the
// idealized head radius.
func PROX64() *Montage {
	positions := make(map[string]Position, len(prox64Coords))
	for name, angles := range prox64Coords {
		theta := angles[0] * math.Pi / 180
		phi := angles[1] * math.Pi / 180
		positions[name] = Position{
			X: HeadRadius * math.Sin(theta) * math.Cos(phi),
			Y: HeadRadius * math.Sin(theta) * math.Sin(phi),
			Z: HeadRadius * math.Cos(theta),
		}
	}
	return &Montage{
		Name:      "PROX-64",
		Positions: positions,
		LPA:       Position{X: -HeadRadius},
		RPA:       Position{X: HeadRadius},
		Nasion:    Position{Y: HeadRadius},
	}
}
