// version.go - build identification
//
// Grounded on features.go's version/feature-flag constants.

package main

const (
	Version   = "0.1.0"
	BuildName = "emos"
)
