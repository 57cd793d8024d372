// Package device and its software subpackage together form the device &
// resource layer of spec.md §4.1: this package is the backend-agnostic
// contract (Device, Buffer, Image, Work, CommandBuffer, Queue); device/
// software is the one concrete, CPU-executed backend this module ships.
package device
