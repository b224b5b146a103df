// Package prompts holds the system prompts the agent runs with. Prompts
// are registered by edition so a reworded prompt can ship alongside the
// one it replaces.
package prompts

// Revision identifies one edition of a prompt. Revisions compare
// lexically, so semver-style strings sort the way you expect.
type Revision string

// RevInitial is the revision every prompt starts at.
const RevInitial Revision = "1.0.0"

// Prompt is one edition of a system prompt. Retired editions stay
// registered so an older run can still be reproduced, but Latest skips
// them.
type Prompt struct {
	ID      string
	Rev     Revision
	Content string
	Retired bool
}
