// Package pooldose is the device client for a SEKO PoolDose controller.
//
// Connect runs the identity bootstrap: it checks the controller is reachable,
// reads gateway and device identity, loads the mapping table for the device's
// model and firmware, and collects network details. After that the client
// hands out snapshot views of the instant values and routes typed writes
// through them.
//
//	client := pooldose.New(tr, pooldose.Options{})
//	if err := client.Connect(ctx); err != nil { ... }
//	view, err := client.InstantValues(ctx)
//	ph, ok := view.Sensor("ph")
//
// The transport is an interface so a controller and a captured dump
// (transport.Mock) are interchangeable.
package pooldose
