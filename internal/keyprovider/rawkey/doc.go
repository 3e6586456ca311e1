// Package rawkey serves statically configured keys without any network
// calls. The empty stream label, when present in the key map, is the
// default entry applied to every label absent from the map.
package rawkey
