// Command heap-demo is a minimal walkthrough of the Allocator API:
// setup, allocate, write through the returned pointer, free, and
// clean. It is the Go counterpart of
// _examples/original_source/examples/main.c.
package main

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/orizon-lang/heapcore/internal/allocator"
	"github.com/orizon-lang/heapcore/internal/regionprovider"
)

func unsafeBytes(p unsafe.Pointer, n int) []byte {
	return unsafe.Slice((*byte)(p), n)
}

func main() {
	fmt.Println("Custom Memory Allocator Demo")

	provider, err := regionprovider.NewSystem()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create region provider: %v\n", err)
		os.Exit(1)
	}

	a := allocator.New(provider)

	if err := a.Setup(); err != nil {
		fmt.Println("Failed to initialize heap")
		os.Exit(1)
	}
	fmt.Println("Heap initialized")

	buffer := a.Allocate(50)
	if buffer != nil {
		message := "Custom malloc test!"
		dst := unsafeBytes(buffer, len(message)+1)
		copy(dst, message)
		dst[len(message)] = 0

		fmt.Printf("Allocated and wrote: %s\n", string(dst[:len(message)]))

		a.Free(buffer)
		fmt.Println("Memory freed")
	}

	fmt.Printf("Largest used block: %d bytes\n", a.LargestUsedBlockSize())

	a.Clean()
	fmt.Println("Heap cleaned up")
}
