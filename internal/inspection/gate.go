package inspection

import "sort"

// Gate is a production-line inspection checkpoint code.
type Gate int

const (
	GateStringing  Gate = 10
	GateLamination Gate = 20
	GateEL         Gate = 30
	GateFraming    Gate = 40
	GateIV         Gate = 50
	GateFinalQC    Gate = 60
)

var gateNames = map[Gate]string{
	GateStringing:  "Stringing",
	GateLamination: "Lamination",
	GateEL:         "EL Test",
	GateFraming:    "Framing",
	GateIV:         "IV Test",
	GateFinalQC:    "Final QC",
}

// Name is the production stage behind the gate code, or "" when unknown.
func (g Gate) Name() string { return gateNames[g] }

// Known reports whether g is in the gate catalogue.
func (g Gate) Known() bool {
	_, ok := gateNames[g]
	return ok
}

// Gates lists the catalogue in line order.
func Gates() []Gate {
	out := make([]Gate, 0, len(gateNames))
	for g := range gateNames {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
