// Package wopi implements the host side of the WOPI protocol: the file,
// container and ecosystem operations a WOPI client (an online document
// editor) invokes to read, lock and write documents the host stores.
//
// Handlers are mounted on a gin router group (usually "/wopi") behind the
// access-token and proof middleware. Each handler resolves its target through
// a resource.Provider, consults the lock.Manager for anything that writes, and
// answers with the status codes and X-WOPI-* headers WOPI clients retry on:
//
//	200  success
//	400  invalid name, malformed header
//	401  principal may not perform the operation
//	404  resource absent
//	409  lock or name conflict (X-WOPI-Lock, X-WOPI-LockFailureReason,
//	     X-WOPI-ValidRelativeTarget)
//	412  file larger than X-WOPI-MaxExpectedSize
//	500  internal failure
//	501  unsupported header combination or missing optional collaborator
package wopi
