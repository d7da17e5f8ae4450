// Package acqcore implements the acquisition pipeline: a device producer pushes
// fixed-shape sample blocks into a bounded matrix buffer and a consumer pops
// them for processing on its own goroutine.
//
// # Architecture Overview
//
//   - SampleBlock: channels x samples float64 matrix, copied by value into and out of the buffer
//   - MatrixBuffer: fixed capacity FIFO ring of preallocated block slots with blocking Push/Pop
//   - Producer: reads chunks from a Device and pushes them
//   - Consumer: pops blocks and hands them to a Processor
//   - Controller: builds the buffer once from configuration and orders start and shutdown
//
// # Concurrency and Thread Safety
//
// MatrixBuffer serialises every cursor, slot and count update behind one mutex.
// Blocked callers wait on condition variables tied to that mutex; nothing polls.
// Close wakes every waiter and makes them return ErrBufferClosed.
//
// Producer, Consumer and Controller are safe for concurrent Start/Stop calls.
// Stop on an idle component is a no-op.
//
// # Shutdown Order
//
//  1. Stop producer (joins its goroutine, no push happens afterwards)
//  2. Drain the buffer, bounded by the drain timeout
//  3. Close the buffer
//  4. Stop consumer (it observes ErrBufferClosed and exits)
//
// # Example
//
//	ctrl, err := acqcore.NewController(acqcore.ControllerConfig{
//	    Channels:        8,
//	    SamplesPerBlock: 256,
//	    Capacity:        64,
//	}, device, processor)
//	if err != nil {
//	    return err
//	}
//	if err := ctrl.Start(ctx); err != nil {
//	    return err
//	}
//	defer ctrl.Stop(context.Background())
package acqcore
