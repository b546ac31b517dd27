// Package services holds the small line protocols sockserve can run on a
// listener: echo, discard, zero, chargen and daytime. Each is an
// engine.Handler looked up by the name used in the config file.
package services
