//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Tidies the module and builds every package and the demo binary.
func (Build) All() error {
	if err := goModTidy(); err != nil {
		return err
	}
	if _, err := executeCmd("go", withArgs("build", "./..."), withStream()); err != nil {
		return err
	}
	_, err := executeCmd("go", withArgs("build", "-o", "bin/gfxbridge", "."), withStream())
	return err
}

type Test mg.Namespace

// Runs the unit tests with the race detector. The vulkan package only runs
// its device-free tests.
func (Test) Unit() error {
	_, err := executeCmd("go", withArgs("test", "-race", "-count=1", "./..."), withStream())
	return err
}
