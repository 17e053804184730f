package strata

import (
	"github.com/jward/strata/internal/extract"
	"github.com/jward/strata/internal/rules"
	"github.com/jward/strata/internal/store"
)

// Public type aliases for internal types used in the Engine and
// QueryBuilder API. These are Go type aliases (=), identical to the
// internal types at compile time, so no conversion is needed.

type Store = store.Store
type UniqueID = store.UniqueID
type Kind = store.Kind
type EdgeKind = store.EdgeKind
type Mode = extract.Mode
type RuleEngine = rules.Engine
type Observer = rules.Observer
type NopObserver = rules.NopObserver
type Violation = rules.Violation

const (
	ModePhysical = extract.ModePhysical
	ModeFull     = extract.ModeFull

	KindPackage   = store.KindPackage
	KindComponent = store.KindComponent
)

// ParseMode parses "physical" or "full"; the empty string is full.
func ParseMode(s string) (Mode, error) { return extract.ParseMode(s) }
