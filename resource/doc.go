// Package resource provides handle tables for live connection accounting.
//
// A Table maps small integer handles to values and reuses freed handles:
//
//	conns := resource.NewTable[*tcp.Socket]()
//	h := conns.Insert(sock)
//	...
//	conns.Remove(h)
//
// # Observers
//
// Observers are notified after every insert and remove, with the number of
// entries left in the table:
//
//	conns.Subscribe(resource.ObserverFunc[*tcp.Socket](func(e resource.Event[*tcp.Socket]) {
//	    if e.Type == resource.EventDropped && e.Remaining == 0 {
//	        // last connection gone
//	    }
//	}))
//
// Observers run on the goroutine that changed the table, after the table
// lock has been released, so they may call back into the table.
//
// # Memory Management
//
// Entries are never collected implicitly. Values implementing Dropper have
// Drop called when they are removed, including by Clear.
package resource
