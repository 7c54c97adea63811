package stability

import "errors"

// ErrProbeOpen is a package-level sentinel for the probe's open state.
// Probe.Allow does not return it: a blocked call yields
// gobreaker.ErrOpenState, so errors.Is(err, ErrProbeOpen) does not match.
var ErrProbeOpen = errors.New("probe is open")
