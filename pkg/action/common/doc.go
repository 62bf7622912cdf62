// Package common holds the composite actions: actions whose execution is a
// fan-out over child StatefulActions. A composite's state is carried by its
// children; the composite itself only decides ordering (sequential chain,
// parallel join-all, or a spawned background task) and how child failures
// are contained.
package common
