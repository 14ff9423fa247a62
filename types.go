package fileconf

import "reflect"

// Tuple is a paired value stored in the document as a small mapping with
// "first" and "second" sub-keys.
type Tuple[K, V any] struct {
	First  K
	Second V
}

const (
	tupleFirstKey  = "first"
	tupleSecondKey = "second"
)

// pair lets the binder and converter recognize Tuple fields of any type
// arguments without knowing K and V statically.
type pair interface {
	pairTypes() (first, second reflect.Type)
	pairValues() (first, second any)
}

func (Tuple[K, V]) pairTypes() (reflect.Type, reflect.Type) {
	return reflect.TypeOf((*K)(nil)).Elem(), reflect.TypeOf((*V)(nil)).Elem()
}

func (t Tuple[K, V]) pairValues() (any, any) {
	return t.First, t.Second
}

// Lifecycle hooks. A bound object may implement any subset of these; Load and
// Save discover them by type assertion and call them in the documented order:
//
//	Load: OnFileCreate (new file only), OnPreLoad, field load pass, OnLoad,
//	      OnLoadFinish, then Save when reconciliation left unsaved changes.
//	Save: OnPreSave, CanSave gate, field save pass, OnSave, file write,
//	      OnSaveFinish.
//
// OnLoad and OnSave may return ErrEventHandled to cleanly stop the remaining
// hook chain; any other non-nil error is propagated as a failure.
type (
	FileCreateHook interface{ OnFileCreate() }
	PreLoadHook    interface{ OnPreLoad() }
	LoadHook       interface{ OnLoad() error }
	LoadFinishHook interface{ OnLoadFinish() }
	PreSaveHook    interface{ OnPreSave() }
	SaveHook       interface{ OnSave() error }
	SaveFinishHook interface{ OnSaveFinish() }
)

// SavePredicate gates the save pass. When the bound object implements it and
// CanSave reports false, Save skips the field pass and the file write but
// still runs OnSaveFinish.
type SavePredicate interface{ CanSave() bool }

// SaveAfterLoad marks a bound object whose file should be rewritten at the
// end of every load, even when defaults reconciliation made no changes.
type SaveAfterLoad interface{ SaveAfterLoad() bool }
