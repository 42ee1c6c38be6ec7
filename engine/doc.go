/*
Package engine defines the interface to the embedded storage engines that back
a record-store environment.  This interface is intended to be agnostic to the
actual mechanism used for backend data storage.  The RegisterDriver function
can be used to add a new backend data storage method.

An engine models a shared environment holding any number of named files.  Each
file is an independent key/value record store supporting point operations,
cursor iteration, and ACID transactions.  The engine is assumed correct for
committed transactions; this package only specifies the contract, it does not
implement storage.

All errors returned from this package and conforming drivers are of type
Error.  Callers can use the IsErrorCode function to inspect the specific
failure, for example to distinguish a missing key from a hard failure.
*/
package engine
