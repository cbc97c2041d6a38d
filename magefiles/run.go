//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the transfer demo with the config in the working directory.
func (Run) Demo() error {
	fmt.Println("Run demo...")
	if _, err := executeCmd("go", withArgs("run", ".", "-out", "readback.tiff"), withStream()); err != nil {
		return err
	}
	return nil
}
