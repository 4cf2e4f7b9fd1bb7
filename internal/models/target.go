// internal/models/target.go
package models

// TargetArchetype is an immutable catalog entry describing a kind of target.
type TargetArchetype struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Target is a single scheduled target in the current round's lineup.
// ID refers back to the archetype; UID identifies this instance.
type Target struct {
	UID     string `json:"uid"`
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Value   int    `json:"value"`
	Row     int    `json:"row"`
	Claimed bool   `json:"claimed"`
}
