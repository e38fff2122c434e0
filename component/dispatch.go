package component

import "github.com/speedy-lex/neonucleus/computer"

// Dispatch runs op under the shared backend's lock and surfaces the
// result: a non-empty err string becomes the computer's error slot
// (matching nn_setError from within a method body). charge, if non-nil,
// runs only once op reports success — a failed call never draws
// resources, matching the reference backends' validate-lock-call-
// unlock-charge-on-success bookkeeping.
//
// This is the five-step discipline every EEPROM/filesystem/drive method
// follows: validate arguments (by the caller, before invoking Dispatch),
// lock the shared backend, call into it, unlock, then either surface an
// error or charge resources.
func Dispatch[T any](c *computer.Computer, shared *Shared[T], op func(T) (ok bool, err string), charge func()) {
	shared.Lock()
	ok, errStr := op(shared.Ops())
	shared.Unlock()
	if !ok {
		if errStr != "" {
			c.SetError(errStr)
		}
		return
	}
	if charge != nil {
		charge()
	}
}
