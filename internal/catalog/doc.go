// Package catalog records completed separations in SQLite.
//
// Each row remembers what was separated (input path and content hash), with
// which model, and where the stems landed. The separate command consults the
// catalog to skip work it has already done, and the history command group
// browses and prunes it.
package catalog
