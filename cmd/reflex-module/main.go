// Package main serves the reflex tester as a Viam module.
package main

import (
	"go.viam.com/rdk/module"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"

	"github.com/verte-zerg/reflex/internal/viamhw"
)

func main() {
	module.ModularMain(
		resource.APIModel{generic.API, viamhw.Tester},
	)
}
