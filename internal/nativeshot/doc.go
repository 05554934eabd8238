// Package nativeshot captures the on-screen pixels of one of the app's own
// OS windows, including native toolkit chrome and non-GPU content that the
// renderer never sees.
//
// Spawn a request with Request, passing the window entity and an Observer.
// The plugin's per-tick systems hand the slow pixel read to a goroutine,
// collect the result on the loop goroutine, call the observer exactly once
// on success, and despawn the request record whether the capture succeeded
// or not.
//
//	app.AddPlugin(nativeshot.NewPlugin(facility))
//	nativeshot.Request(app, windowEntity, sink.SaveToDisk("shot.png"))
package nativeshot
