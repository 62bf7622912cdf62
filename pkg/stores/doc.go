// Package stores persists the local install history: one row per
// install/uninstall run and an append-only event per action attempt within
// it. The history lives next to the receipt and never leaves the host.
package stores
