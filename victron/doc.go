// Package victron implements a host-side driver for the Victron
// MK2/MK3 serial interface, the USB-attached adapter that bridges a
// host computer to a VE.Bus inverter/charger (e.g. a Multiplus II).
//
// The protocol documentation is "Interfacing with VE.Bus products:
// MK2 Protocol" (Victron Energy, revision 3.14). This package covers
// the wire-level engine only: framing, checksums, the variable-scale
// bootstrap, request/response correlation, and the typed response
// model. Opening the actual serial port, application polling policy,
// and configuration loading are left to callers; see Open for one
// concrete way to obtain a transport.
package victron
