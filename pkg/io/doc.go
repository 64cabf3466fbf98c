// Package io turns logical image requests into striped object requests.
//
// An Image binds a striping layout and an object name prefix to a
// transport. Each Submit call maps the caller's image extents onto backing
// objects, groups them so every object receives a single sub-request,
// sizes the caller's completion to the number of sub-requests and dispatches
// them. The completion finalizes when the last sub-request reports; for
// reads the data is assembled into the caller's destination before any
// callback runs.
//
// Usage:
//
//	import imageio "github.com/marmos91/objio/pkg/io"
//
//	img, err := imageio.NewImage(tr, imageio.Config{Name: "vm1", Layout: layout}, nil)
//	c := completion.New()
//	img.SubmitRead(ctx, c, []striper.ImageExtent{{Offset: 0, Length: 4096}}, imageio.LinearBuffer(buf))
//	err = c.Wait(ctx)
//	c.Release()
//
// Read, Write, Discard and Flush wrap the Submit calls for callers that
// want to block.
package io
